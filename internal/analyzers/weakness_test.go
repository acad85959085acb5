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

func weaknessContext(t *testing.T, source string) *registry.AnalysisContext {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte(source), 0o644))

	snap := snapshot.New(dir, ".", []snapshot.FileEntry{{Path: "a.go", Language: "go"}}, nil, nil, "test")
	b := model.NewBuilder(snap.ID())
	b.SetFile(model.FileFacts{Path: "a.go", Language: model.LangGo})
	return &registry.AnalysisContext{Snapshot: snap, Policy: config.DefaultPolicy(), Model: b}
}

func TestWeaknessCountsCommentMarkers(t *testing.T) {
	ac := weaknessContext(t, `package pkg

// TODO: tighten the retry loop.
func A() {}

// FIXME this leaks on shutdown.
func B() {}

// HACK around the upstream parser bug.
func C() {}
`)
	require.NoError(t, WeaknessAnalyzer{}.Run(context.Background(), ac))

	ff, ok := ac.Model.File("a.go")
	require.True(t, ok)
	assert.Equal(t, 3, ff.TodoMarkerCount)

	issues := ac.Model.Issues()
	require.Len(t, issues, 3)
	for _, iss := range issues {
		assert.Equal(t, model.IssueTodoMarker, iss.Type)
		assert.Equal(t, model.SeverityMinor, iss.Severity)
		assert.Equal(t, "a.go", iss.File)
		assert.Greater(t, iss.Line, 0)
	}
}

func TestWeaknessIgnoresMarkersOutsideComments(t *testing.T) {
	ac := weaknessContext(t, `package pkg

var label = "TODO"

func TODOList() {}
`)
	require.NoError(t, WeaknessAnalyzer{}.Run(context.Background(), ac))

	ff, _ := ac.Model.File("a.go")
	assert.Equal(t, 0, ff.TodoMarkerCount, "markers in string literals or identifiers are not weaknesses")
	assert.Empty(t, ac.Model.Issues())
}

func TestWeaknessOneIssuePerLine(t *testing.T) {
	ac := weaknessContext(t, `package pkg

// TODO first thing, and FIXME second thing on the same line.
func A() {}
`)
	require.NoError(t, WeaknessAnalyzer{}.Run(context.Background(), ac))
	assert.Len(t, ac.Model.Issues(), 1)
}
