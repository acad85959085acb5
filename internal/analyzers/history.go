package analyzers

import (
	"context"

	"github.com/aperturehq/aperture/internal/model"
	"github.com/aperturehq/aperture/internal/registry"
)

// HistoryAnalyzer folds the Snapshot's commit history into per-file churn,
// contributor count, and last-commit timestamp, and builds the CoChangeGraph
// from commits that touch more than one tracked file. internal/snapshot
// already performs the git log scan; this analyzer only aggregates its
// output.
type HistoryAnalyzer struct{}

func (HistoryAnalyzer) Name() string        { return "history" }
func (HistoryAnalyzer) DependsOn() []string { return []string{"structure"} }

func (HistoryAnalyzer) Run(ctx context.Context, ac *registry.AnalysisContext) error {
	churn := ac.Snapshot.ChurnByPath()
	contributors := ac.Snapshot.ContributorsByPath()
	lastCommit := ac.Snapshot.LastCommitByPath()

	for _, f := range ac.Snapshot.Files {
		if _, ok := ac.Model.File(f.Path); !ok {
			continue
		}
		path := f.Path
		ac.Model.MergeFile(path, func(ff *model.FileFacts) {
			ff.Churn = churn[path]
			ff.Contributors = len(contributors[path])
			ff.LastCommitUnix = lastCommit[path]
		})
	}

	for _, c := range ac.Snapshot.Commits {
		if len(c.Touched) < 2 {
			continue
		}
		for i := 0; i < len(c.Touched); i++ {
			for j := i + 1; j < len(c.Touched); j++ {
				ac.Model.CoChangeGraph.Increment(c.Touched[i].Path, c.Touched[j].Path)
			}
		}
	}

	recomputeModuleChurn(ac)
	return nil
}

// recomputeModuleChurn merges only TotalChurn: Complexity refreshes
// MeanComplexity on the same ModuleFacts concurrently.
func recomputeModuleChurn(ac *registry.AnalysisContext) {
	for _, mf := range ac.Model.Modules() {
		total := 0
		for _, fp := range mf.Files {
			if ff, ok := ac.Model.File(fp); ok {
				total += ff.Churn
			}
		}
		ac.Model.MergeModule(mf.Path, func(m *model.ModuleFacts) {
			m.TotalChurn = total
		})
	}
}
