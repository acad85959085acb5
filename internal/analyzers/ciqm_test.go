package analyzers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperturehq/aperture/internal/config"
	"github.com/aperturehq/aperture/internal/model"
	"github.com/aperturehq/aperture/internal/registry"
	"github.com/aperturehq/aperture/internal/snapshot"
)

func ciqmContext(t *testing.T, files map[string]string) *registry.AnalysisContext {
	t.Helper()
	dir := writeTree(t, files)
	var entries []snapshot.FileEntry
	for rel := range files {
		entries = append(entries, snapshot.FileEntry{Path: rel, Language: "unknown"})
	}
	snap := snapshot.New(dir, ".", entries, nil, nil, "test")
	return &registry.AnalysisContext{Snapshot: snap, Policy: config.DefaultPolicy(), Model: model.NewBuilder(snap.ID())}
}

func TestCIQMReportsAbsentCI(t *testing.T) {
	ac := ciqmContext(t, map[string]string{"main.go": "package main\n"})
	require.NoError(t, CIQMAnalyzer{}.Run(context.Background(), ac))

	issues := ac.Model.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, model.IssueOther, issues[0].Type)
	assert.Equal(t, model.SeverityMajor, issues[0].Severity)
	assert.Contains(t, issues[0].Message, "continuous-integration")
}

func TestCIQMDetectsWorkflowConfig(t *testing.T) {
	ac := ciqmContext(t, map[string]string{
		".github/workflows/ci.yml": "name: ci\n",
		"main.go":                  "package main\n",
	})
	require.NoError(t, CIQMAnalyzer{}.Run(context.Background(), ac))
	assert.Empty(t, ac.Model.Issues())
}

func TestCIQMParsesJUnitReport(t *testing.T) {
	const report = `<?xml version="1.0"?>
<testsuites>
  <testsuite tests="10" failures="2" errors="1"></testsuite>
  <testsuite tests="5" failures="0" errors="0"></testsuite>
</testsuites>`
	ac := ciqmContext(t, map[string]string{
		".github/workflows/ci.yml": "name: ci\n",
		"reports/junit.xml":        report,
	})
	require.NoError(t, CIQMAnalyzer{}.Run(context.Background(), ac))

	issues := ac.Model.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, model.SeverityMajor, issues[0].Severity, "failing tests escalate the report finding")
	assert.Contains(t, issues[0].Message, "12/15 passed")
}

func TestCIQMPassingReportIsInfo(t *testing.T) {
	const report = `<testsuites><testsuite tests="4" failures="0" errors="0"></testsuite></testsuites>`
	ac := ciqmContext(t, map[string]string{
		".github/workflows/ci.yml": "name: ci\n",
		"junit-results.xml":        report,
	})
	require.NoError(t, CIQMAnalyzer{}.Run(context.Background(), ac))

	issues := ac.Model.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, model.SeverityInfo, issues[0].Severity)
}

func TestCIQMIgnoresMalformedReport(t *testing.T) {
	ac := ciqmContext(t, map[string]string{
		".github/workflows/ci.yml": "name: ci\n",
		"junit.xml":                "not xml at all",
	})
	require.NoError(t, CIQMAnalyzer{}.Run(context.Background(), ac))
	assert.Empty(t, ac.Model.Issues())
}

func TestCIQMMissingReportFileIsSkipped(t *testing.T) {
	dir := writeTree(t, map[string]string{".github/workflows/ci.yml": "name: ci\n"})
	snap := snapshot.New(dir, ".", []snapshot.FileEntry{
		{Path: ".github/workflows/ci.yml", Language: "unknown"},
		{Path: "junit.xml", Language: "unknown"}, // listed but absent on disk
	}, nil, nil, "test")
	ac := &registry.AnalysisContext{Snapshot: snap, Policy: config.DefaultPolicy(), Model: model.NewBuilder(snap.ID())}

	require.NoError(t, CIQMAnalyzer{}.Run(context.Background(), ac))
	assert.Empty(t, ac.Model.Issues())
}
