package analyzers

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/aperturehq/aperture/internal/model"
	"github.com/aperturehq/aperture/internal/registry"
)

// DocCodeSyncAnalyzer parses function doc comments and compares their
// declared parameter set against the actual signature as multisets.
// Private (unexported, or leading-underscore) symbols are skipped; a
// constructor-style symbol (Go's New* convention) is still checked; nested
// function literals are never visited since only top-level FuncDecl nodes
// are considered.
type DocCodeSyncAnalyzer struct{}

func (DocCodeSyncAnalyzer) Name() string        { return "doccodesync" }
func (DocCodeSyncAnalyzer) DependsOn() []string { return []string{"structure"} }

func (DocCodeSyncAnalyzer) Run(ctx context.Context, ac *registry.AnalysisContext) error {
	for _, f := range ac.Snapshot.Files {
		ff, ok := ac.Model.File(f.Path)
		if !ok || ff.Language != model.LangGo || ff.ParseFailed {
			continue
		}
		content, err := os.ReadFile(filepath.Join(ac.Snapshot.Root, f.Path))
		if err != nil {
			continue
		}
		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, f.Path, content, parser.ParseComments)
		if err != nil {
			continue
		}

		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			if isPrivateSymbol(fn.Name.Name) {
				continue
			}
			checkDocSync(ac, f.Path, fset, fn)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

func isPrivateSymbol(name string) bool {
	if strings.HasPrefix(name, "_") {
		return true
	}
	r := []rune(name)
	return len(r) > 0 && unicode.IsLower(r[0])
}

func checkDocSync(ac *registry.AnalysisContext, path string, fset *token.FileSet, fn *ast.FuncDecl) {
	line := fset.Position(fn.Pos()).Line

	if fn.Doc == nil || strings.TrimSpace(fn.Doc.Text()) == "" {
		ac.Model.AddIssue(model.NewIssue("doccodesync", model.IssueMissingDocstring, model.SeverityMinor,
			path, line, fmt.Sprintf("%s has no doc comment", fn.Name.Name)))
		return
	}

	docText := fn.Doc.Text()

	if containsTodoToken(docText) {
		ac.Model.AddIssue(model.NewIssue("doccodesync", model.IssueOutdatedDoc, model.SeverityMinor,
			path, line, fmt.Sprintf("%s doc comment contains an open TODO/FIXME", fn.Name.Name)))
	}

	declared := parseDocumentedParams(docText)
	if declared == nil {
		return // no structured parameter list to compare against
	}

	actual := actualParamNames(fn)
	missing, extra := multisetDiff(actual, declared)
	if len(missing) == 0 && len(extra) == 0 {
		return
	}
	ac.Model.AddIssue(model.NewIssue("doccodesync", model.IssueSignatureMismatch, model.SeverityMajor,
		path, line, fmt.Sprintf("%s: missing documented parameter(s) %v, extra documented parameter(s) %v",
			fn.Name.Name, missing, extra)))
}

// parseDocumentedParams looks for a "Parameters:" or "Params:" line in the
// doc comment and returns its comma-separated parameter names, or nil if no
// such line is present (nothing to compare).
func parseDocumentedParams(doc string) []string {
	for _, line := range strings.Split(doc, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		for _, prefix := range []string{"parameters:", "params:"} {
			if strings.HasPrefix(lower, prefix) {
				rest := trimmed[len(prefix):]
				var names []string
				for _, tok := range strings.Split(rest, ",") {
					if name := strings.TrimSpace(tok); name != "" {
						names = append(names, name)
					}
				}
				return names
			}
		}
	}
	return nil
}

// actualParamNames returns the function's parameter names, excluding the
// receiver (Go's analogue of an implicit self parameter).
func actualParamNames(fn *ast.FuncDecl) []string {
	var names []string
	if fn.Type.Params == nil {
		return names
	}
	for _, field := range fn.Type.Params.List {
		for _, n := range field.Names {
			names = append(names, n.Name)
		}
	}
	return names
}

// multisetDiff compares two name lists as multisets, returning names present
// in actual but absent from documented (missing from the doc comment), and
// vice versa (extra: documented but not an actual parameter).
func multisetDiff(actual, documented []string) (missing, extra []string) {
	actualCount := make(map[string]int)
	for _, n := range actual {
		actualCount[n]++
	}
	docCount := make(map[string]int)
	for _, n := range documented {
		docCount[n]++
	}
	for n, c := range actualCount {
		if docCount[n] < c {
			missing = append(missing, n)
		}
	}
	for n, c := range docCount {
		if actualCount[n] < c {
			extra = append(extra, n)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

func containsTodoToken(text string) bool {
	upper := strings.ToUpper(text)
	return strings.Contains(upper, "TODO") || strings.Contains(upper, "FIXME")
}
