package analyzers

import (
	"context"
	"go/parser"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aperturehq/aperture/internal/model"
	"github.com/aperturehq/aperture/internal/registry"
)

// StructureAnalyzer walks the Snapshot's tracked files, assigns each a
// LanguageTag, LOC, and architectural Layer, groups them into ModuleFacts by
// directory, and records directory-to-directory import edges on the
// DependencyGraph.
type StructureAnalyzer struct{}

func (StructureAnalyzer) Name() string        { return "structure" }
func (StructureAnalyzer) DependsOn() []string { return nil }

func (StructureAnalyzer) Run(ctx context.Context, ac *registry.AnalysisContext) error {
	return runStructure(ac)
}

func runStructure(ac *registry.AnalysisContext) error {
	modulePrefix := modulePathOf(ac)
	moduleDirs := make(map[string][]string) // dir -> file paths
	fileImports := make(map[string][]string) // file path -> local import dirs

	for _, f := range ac.Snapshot.Files {
		lang := model.LanguageTag(f.Language)
		layer := inferLayer(f.Path)
		loc := 0
		var imports []string

		content, err := os.ReadFile(filepath.Join(ac.Snapshot.Root, f.Path))
		parseFailed := false
		if err == nil {
			loc = countLOC(content)
			if lang == model.LangGo {
				imports, err = parseGoImports(content)
				if err != nil {
					parseFailed = true
				}
			}
		} else {
			parseFailed = true
		}

		ac.Model.SetFile(model.FileFacts{
			Path:        f.Path,
			Language:    lang,
			LOC:         loc,
			Layer:       layer,
			ParseFailed: parseFailed,
		})

		dir := path.Dir(filepath.ToSlash(f.Path))
		moduleDirs[dir] = append(moduleDirs[dir], f.Path)

		var localDirs []string
		for _, imp := range imports {
			if modulePrefix != "" && strings.HasPrefix(imp, modulePrefix) {
				rel := strings.TrimPrefix(strings.TrimPrefix(imp, modulePrefix), "/")
				if rel != "" {
					localDirs = append(localDirs, rel)
				}
			}
		}
		fileImports[f.Path] = localDirs
	}

	for dir, files := range moduleDirs {
		sort.Strings(files)
		layer := model.LayerUnassigned
		if len(files) > 0 {
			if ff, ok := ac.Model.File(files[0]); ok {
				layer = ff.Layer
			}
		}
		loc := 0
		var complexitySum float64
		for _, fp := range files {
			if ff, ok := ac.Model.File(fp); ok {
				loc += ff.LOC
				complexitySum += ff.Complexity
			}
		}
		mean := 0.0
		if len(files) > 0 {
			mean = complexitySum / float64(len(files))
		}
		ac.Model.SetModule(model.ModuleFacts{
			Path:           dir,
			Files:          files,
			TotalLOC:       loc,
			MeanComplexity: mean,
			Layer:          layer,
		})
	}

	for file, dirs := range fileImports {
		fromDir := path.Dir(filepath.ToSlash(file))
		for _, toDir := range dirs {
			if toDir != fromDir {
				ac.Model.DependencyGraph.AddEdge(fromDir, toDir)
			}
		}
	}

	return nil
}

func countLOC(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := strings.Count(string(content), "\n")
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

func parseGoImports(content []byte) ([]string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", content, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}
	var imports []string
	for _, imp := range file.Imports {
		imports = append(imports, strings.Trim(imp.Path.Value, `"`))
	}
	return imports, nil
}

// modulePathOf reads the module path from the go.mod file at the Snapshot
// root, falling back to "" (no local-import resolution) if absent.
func modulePathOf(ac *registry.AnalysisContext) string {
	data, err := os.ReadFile(filepath.Join(ac.Snapshot.Root, "go.mod"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "module "))
		}
	}
	return ""
}

// inferLayer assigns one of the four architectural layers by directory
// naming convention.
func inferLayer(filePath string) model.Layer {
	lower := strings.ToLower(filePath)
	switch {
	case containsAny(lower, "cmd/", "handler", "controller", "api/", "cli/"):
		return model.LayerPresentation
	case containsAny(lower, "service", "usecase", "domain", "logic"):
		return model.LayerBusiness
	case containsAny(lower, "repository", "repo/", "dao", "store", "db/", "model"):
		return model.LayerData
	case containsAny(lower, "infra", "internal/config", "internal/logging", "pkg/", "util", "platform"):
		return model.LayerInfrastructure
	default:
		return model.LayerUnassigned
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
