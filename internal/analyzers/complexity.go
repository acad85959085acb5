package analyzers

import (
	"context"
	"os"
	"path/filepath"

	"github.com/aperturehq/aperture/internal/model"
	"github.com/aperturehq/aperture/internal/registry"
)

// ComplexityAnalyzer fills in per-file Complexity, FunctionCount, and
// Maintainability using a pluggable Measurer (default: GoASTMeasurer).
// It runs in the same stage as History and Weakness, so every write goes
// through MergeFile/MergeModule and touches only this analyzer's fields.
type ComplexityAnalyzer struct {
	Measurer Measurer
}

// NewComplexityAnalyzer returns a ComplexityAnalyzer backed by
// GoASTMeasurer, the default measurer.
func NewComplexityAnalyzer() *ComplexityAnalyzer {
	return &ComplexityAnalyzer{Measurer: GoASTMeasurer{}}
}

func (*ComplexityAnalyzer) Name() string        { return "complexity" }
func (*ComplexityAnalyzer) DependsOn() []string { return []string{"structure"} }

func (a *ComplexityAnalyzer) Run(ctx context.Context, ac *registry.AnalysisContext) error {
	for _, f := range ac.Snapshot.Files {
		existing, ok := ac.Model.File(f.Path)
		if !ok {
			continue
		}
		if existing.ParseFailed {
			a.markUnmeasurable(ac, f.Path, existing.Language)
			continue
		}
		content, err := os.ReadFile(filepath.Join(ac.Snapshot.Root, f.Path))
		if err != nil {
			continue
		}
		m, measured := a.Measurer.Measure(content, string(existing.Language))
		if !measured {
			a.markUnmeasurable(ac, f.Path, existing.Language)
			continue
		}
		ac.Model.MergeFile(f.Path, func(ff *model.FileFacts) {
			ff.Complexity = m.Complexity
			ff.FunctionCount = m.FunctionCount
			ff.Maintainability = m.Maintainability
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	recomputeModuleComplexity(ac)
	return nil
}

// markUnmeasurable records an invalid-syntax file: complexity stays 0 and an
// Issue is emitted. Languages the configured measurer does not support are
// skipped silently; only a supported language that fails to parse is a
// finding.
func (a *ComplexityAnalyzer) markUnmeasurable(ac *registry.AnalysisContext, path string, lang model.LanguageTag) {
	if lang != model.LangGo {
		return
	}
	ac.Model.MergeFile(path, func(ff *model.FileFacts) {
		ff.Complexity = 0
		ff.FunctionCount = 0
	})
	ac.Model.AddIssue(model.NewIssue("complexity", model.IssueOther, model.SeverityMinor,
		path, 0, "file does not parse; complexity recorded as 0"))
}

// recomputeModuleComplexity refreshes MeanComplexity now that per-file
// Complexity is populated (structure ran before any file had a measured
// complexity value). Only this one aggregate is merged: History refreshes
// TotalChurn on the same ModuleFacts concurrently.
func recomputeModuleComplexity(ac *registry.AnalysisContext) {
	for _, mf := range ac.Model.Modules() {
		var sum float64
		for _, fp := range mf.Files {
			if ff, ok := ac.Model.File(fp); ok {
				sum += ff.Complexity
			}
		}
		mean := 0.0
		if len(mf.Files) > 0 {
			mean = sum / float64(len(mf.Files))
		}
		ac.Model.MergeModule(mf.Path, func(m *model.ModuleFacts) {
			m.MeanComplexity = mean
		})
	}
}
