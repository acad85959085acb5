// Package registry schedules the fixed analyzer family into dependency
// ordered, partially parallel stages via a Kahn's-algorithm topological
// stage split.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/aperturehq/aperture/internal/apperrors"
	"github.com/aperturehq/aperture/internal/config"
	"github.com/aperturehq/aperture/internal/model"
	"github.com/aperturehq/aperture/internal/snapshot"
)

// AnalysisContext is the shared, read-mostly state one analyzer run sees:
// the immutable Snapshot and Policy, plus the in-progress ResultModel
// builder it writes its findings into.
type AnalysisContext struct {
	Snapshot *snapshot.Snapshot
	Policy   *config.Policy
	Model    *model.ResultModel
}

// Analyzer is one member of the fixed analyzer family. Name must be stable
// across runs: it is used as a scheduling key, a cache key component, and
// the FailedAnalyzers map key.
type Analyzer interface {
	Name() string
	DependsOn() []string
	Run(ctx context.Context, ac *AnalysisContext) error
}

// Registry holds the full set of known analyzers, keyed by Name().
type Registry struct {
	analyzers map[string]Analyzer
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{analyzers: make(map[string]Analyzer)}
}

// Register adds a analyzer. Re-registering the same name overwrites it.
func (r *Registry) Register(a Analyzer) {
	r.analyzers[a.Name()] = a
}

// All returns every registered analyzer's name, sorted.
func (r *Registry) All() []string {
	names := make([]string, 0, len(r.analyzers))
	for n := range r.analyzers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Stages resolves the enabled subset of r into dependency-ordered stages via
// Kahn's algorithm: every analyzer in stage i depends only on analyzers in
// stages 0..i-1, and analyzers within one stage have no dependency relation
// between them, so the executor may run them concurrently.
func (r *Registry) Stages(p *config.Policy) ([][]Analyzer, error) {
	enabled := make(map[string]Analyzer)
	for name, a := range r.analyzers {
		if p.AnalyzerEnabled(name) {
			enabled[name] = a
		}
	}

	indegree := make(map[string]int)
	dependents := make(map[string][]string)
	for name, a := range enabled {
		indegree[name] = 0
		for _, dep := range a.DependsOn() {
			if _, ok := enabled[dep]; !ok {
				continue // disabled dependency: treated as always-satisfied
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var stages [][]Analyzer
	remaining := len(enabled)
	for remaining > 0 {
		var ready []string
		for name, deg := range indegree {
			if deg == 0 {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			return nil, fmt.Errorf("%w: among %v", apperrors.ErrDependencyCycle, sortedKeys(indegree))
		}
		sort.Strings(ready)

		stage := make([]Analyzer, len(ready))
		for i, name := range ready {
			stage[i] = enabled[name]
			delete(indegree, name)
		}
		stages = append(stages, stage)
		remaining -= len(ready)

		for _, name := range ready {
			for _, dep := range dependents[name] {
				if _, stillPending := indegree[dep]; stillPending {
					indegree[dep]--
				}
			}
		}
	}
	return stages, nil
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
