package analyzers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperturehq/aperture/internal/config"
	"github.com/aperturehq/aperture/internal/model"
	"github.com/aperturehq/aperture/internal/registry"
	"github.com/aperturehq/aperture/internal/snapshot"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

func structureContext(t *testing.T, root string, entries []snapshot.FileEntry) *registry.AnalysisContext {
	t.Helper()
	snap := snapshot.New(root, ".", entries, nil, nil, "test")
	return &registry.AnalysisContext{Snapshot: snap, Policy: config.DefaultPolicy(), Model: model.NewBuilder(snap.ID())}
}

func TestStructurePartitionsFilesIntoDirectoryModules(t *testing.T) {
	root := writeTree(t, map[string]string{
		"go.mod":                  "module example.com/app\n\ngo 1.25\n",
		"cmd/app/main.go":         "package main\n\nimport _ \"example.com/app/internal/service\"\n\nfunc main() {}\n",
		"internal/service/svc.go": "package service\n\nfunc Do() {}\n",
	})
	ac := structureContext(t, root, []snapshot.FileEntry{
		{Path: "go.mod", Language: "unknown"},
		{Path: "cmd/app/main.go", Language: "go"},
		{Path: "internal/service/svc.go", Language: "go"},
	})

	require.NoError(t, StructureAnalyzer{}.Run(context.Background(), ac))

	modules := ac.Model.Modules()
	require.Len(t, modules, 3) // ".", "cmd/app", "internal/service"

	// Property P11: every file lands in exactly one module.
	seen := map[string]int{}
	for _, mf := range modules {
		for _, f := range mf.Files {
			seen[f]++
		}
	}
	assert.Len(t, seen, 3)
	for path, n := range seen {
		assert.Equal(t, 1, n, "file %s assigned to %d modules", path, n)
	}

	mainFacts, ok := ac.Model.File("cmd/app/main.go")
	require.True(t, ok)
	assert.Equal(t, model.LangGo, mainFacts.Language)
	assert.Equal(t, model.LayerPresentation, mainFacts.Layer)
	assert.Greater(t, mainFacts.LOC, 0)

	svcFacts, _ := ac.Model.File("internal/service/svc.go")
	assert.Equal(t, model.LayerBusiness, svcFacts.Layer)
}

func TestStructureRecordsLocalImportEdges(t *testing.T) {
	root := writeTree(t, map[string]string{
		"go.mod":                  "module example.com/app\n\ngo 1.25\n",
		"cmd/app/main.go":         "package main\n\nimport (\n\t\"fmt\"\n\t_ \"example.com/app/internal/service\"\n)\n\nfunc main() { fmt.Println() }\n",
		"internal/service/svc.go": "package service\n",
	})
	ac := structureContext(t, root, []snapshot.FileEntry{
		{Path: "cmd/app/main.go", Language: "go"},
		{Path: "internal/service/svc.go", Language: "go"},
	})

	require.NoError(t, StructureAnalyzer{}.Run(context.Background(), ac))

	succ := ac.Model.DependencyGraph.Successors("cmd/app")
	require.Len(t, succ, 1, "only module-local imports become edges; fmt does not")
	assert.Equal(t, "internal/service", succ[0])
}

func TestStructureMarksUnparsableGoFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"bad.go": "package \n}{ not go at all",
	})
	ac := structureContext(t, root, []snapshot.FileEntry{{Path: "bad.go", Language: "go"}})

	require.NoError(t, StructureAnalyzer{}.Run(context.Background(), ac))

	ff, ok := ac.Model.File("bad.go")
	require.True(t, ok)
	assert.True(t, ff.ParseFailed)
}

func TestStructureMarksMissingFilesAsUnreadable(t *testing.T) {
	ac := structureContext(t, t.TempDir(), []snapshot.FileEntry{{Path: "ghost.go", Language: "go"}})

	require.NoError(t, StructureAnalyzer{}.Run(context.Background(), ac))

	ff, ok := ac.Model.File("ghost.go")
	require.True(t, ok, "the entry survives with zeroed facts")
	assert.True(t, ff.ParseFailed)
	assert.Equal(t, 0, ff.LOC)
}

func TestInferLayerHeuristics(t *testing.T) {
	cases := []struct {
		path string
		want model.Layer
	}{
		{"cmd/tool/main.go", model.LayerPresentation},
		{"api/handler.go", model.LayerPresentation},
		{"internal/service/billing.go", model.LayerBusiness},
		{"internal/domain/order.go", model.LayerBusiness},
		{"internal/repository/users.go", model.LayerData},
		{"internal/store/kv.go", model.LayerData},
		{"pkg/retry/retry.go", model.LayerInfrastructure},
		{"internal/logging/log.go", model.LayerInfrastructure},
		{"README.md", model.LayerUnassigned},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, inferLayer(c.path), "path %s", c.path)
	}
}
