// Package pipeline wires the Loader, Registry, fixed analyzer family, and
// Quality Engine into the single entry point the core exposes to external
// collaborators: analyze(snapshot, policy) -> ResultModel.
package pipeline

import (
	"context"
	"encoding/json"

	"github.com/aperturehq/aperture/internal/analyzers"
	"github.com/aperturehq/aperture/internal/cache"
	"github.com/aperturehq/aperture/internal/config"
	"github.com/aperturehq/aperture/internal/logging"
	"github.com/aperturehq/aperture/internal/model"
	"github.com/aperturehq/aperture/internal/quality"
	"github.com/aperturehq/aperture/internal/registry"
	"github.com/aperturehq/aperture/internal/snapshot"
	"github.com/aperturehq/aperture/internal/stratify"
)

// Pipeline bundles the long-lived collaborators of one analysis process: a
// fully populated Registry and an optional Cache. Both are safe to reuse
// across many Analyze calls; the Snapshot and Policy vary per call.
type Pipeline struct {
	Registry *registry.Registry
	Cache    *cache.Cache // nil disables caching
	Guard    *stratify.Guard
}

// New returns a Pipeline with the fixed analyzer family registered:
// Structure, Complexity, History, Weakness, CI/QM, Hotspots, Architecture,
// DocCodeSync.
func New(c *cache.Cache) *Pipeline {
	r := registry.NewRegistry()
	r.Register(analyzers.StructureAnalyzer{})
	r.Register(analyzers.NewComplexityAnalyzer())
	r.Register(analyzers.HistoryAnalyzer{})
	r.Register(analyzers.WeaknessAnalyzer{})
	r.Register(analyzers.CIQMAnalyzer{})
	r.Register(analyzers.HotspotsAnalyzer{})
	r.Register(analyzers.ArchitectureAnalyzer{})
	r.Register(analyzers.DocCodeSyncAnalyzer{})

	return &Pipeline{
		Registry: r,
		Cache:    c,
		Guard:    stratify.NewGuard(stratify.DefaultMaxRecursionDepth),
	}
}

// Analyze runs the scheduler over snap under policy and returns a sealed
// ResultModel with its QualityReport populated. This is the core's
// `analyze(snapshot, policy) -> ResultModel` contract.
func (p *Pipeline) Analyze(ctx context.Context, snap *snapshot.Snapshot, policy *config.Policy) (*model.ResultModel, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if err := p.Guard.CheckSelfAnalysis(snap.Root, stratify.LevelMetrics); err != nil {
		return nil, err
	}

	log := logging.Get(logging.CategoryScheduler)
	timer := logging.StartTimer(logging.CategoryScheduler, "Analyze")
	defer timer.StopWithInfo()

	stages, err := p.Registry.Stages(policy)
	if err != nil {
		return nil, err
	}

	builder := model.NewBuilder(snap.ID())
	ac := &registry.AnalysisContext{Snapshot: snap, Policy: policy, Model: builder}

	if p.Cache != nil {
		p.runCachedStages(ctx, stages, ac, policy)
	} else {
		registry.RunStages(ctx, stages, ac)
	}

	sealed := builder.Seal()

	engine := quality.NewEngine()
	sealed.Quality = engine.Evaluate(sealed, policy)

	log.Info("analysis complete: snapshot=%s files=%d issues=%d q=%.2f pcq=%.2f",
		snap.ID(), len(sealed.Files()), len(sealed.Issues()), sealed.Quality.Q, sealed.Quality.PCQ)

	return sealed, nil
}

// cachedEntry is the serializable slice of ResultModel state attributable to
// one analyzer's stage, keyed for later replay on a cache hit. The fixed
// family writes directly into the shared builder rather than returning a
// typed value, so the cache is keyed per analyzer but snapshots the whole
// model's state as of the end of the run (entries are written once every
// stage has finished); replaying it on a later run re-applies the same facts
// (SetFile/SetModule are last-write-wins, AddIssue dedups by identity, and
// replayCachedEntry skips a hotspot whose file is already present, so replay
// is idempotent).
type cachedEntry struct {
	Files    []model.FileFacts  `json:"files,omitempty"`
	Modules  []model.ModuleFacts `json:"modules,omitempty"`
	Issues   []model.Issue      `json:"issues,omitempty"`
	Hotspots []model.Hotspot    `json:"hotspots,omitempty"`
}

// runCachedStages executes stages like registry.RunStages, but consults the
// Cache before invoking an analyzer whose (snapshot, name, policy, version)
// key is already present, skipping its
// recomputation and replaying its last recorded contribution instead.
func (p *Pipeline) runCachedStages(ctx context.Context, stages [][]registry.Analyzer, ac *registry.AnalysisContext, policy *config.Policy) {
	policyHash := cache.HashPolicy(policy)
	log := logging.Get(logging.CategoryCache)

	var toRun [][]registry.Analyzer
	for _, stage := range stages {
		var pending []registry.Analyzer
		for _, a := range stage {
			key := cache.Key{SnapshotID: ac.Snapshot.ID(), Analyzer: a.Name(), PolicyHash: policyHash, Version: analyzerVersion(a.Name())}
			raw, ok := p.Cache.Get(key)
			if !ok {
				pending = append(pending, a)
				continue
			}
			var entry cachedEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				log.Warn("analyzer %s cache entry undecodable, recomputing: %v", a.Name(), err)
				pending = append(pending, a)
				continue
			}
			replayCachedEntry(ac, entry)
			log.Debug("analyzer %s served from cache", a.Name())
		}
		toRun = append(toRun, pending)
	}

	registry.RunStages(ctx, toRun, ac)

	for _, stage := range stages {
		for _, a := range stage {
			if _, failed := ac.Model.FailedAnalyzers[a.Name()]; failed {
				continue
			}
			key := cache.Key{SnapshotID: ac.Snapshot.ID(), Analyzer: a.Name(), PolicyHash: policyHash, Version: analyzerVersion(a.Name())}
			if _, hit := p.Cache.Get(key); hit {
				continue
			}
			entry := cachedEntry{
				Files:    ac.Model.Files(),
				Modules:  ac.Model.Modules(),
				Issues:   ac.Model.Issues(),
				Hotspots: ac.Model.Hotspots(),
			}
			raw, err := json.Marshal(entry)
			if err != nil {
				log.Warn("analyzer %s result unmarshalable, not cached: %v", a.Name(), err)
				continue
			}
			if err := p.Cache.Put(key, raw); err != nil {
				log.Warn("cache put failed for analyzer %s: %v", a.Name(), err)
			}
		}
	}
}

func replayCachedEntry(ac *registry.AnalysisContext, entry cachedEntry) {
	for _, f := range entry.Files {
		ac.Model.SetFile(f)
	}
	for _, mf := range entry.Modules {
		ac.Model.SetModule(mf)
	}
	for _, iss := range entry.Issues {
		ac.Model.AddIssue(iss)
	}
	seen := make(map[string]bool)
	for _, h := range ac.Model.Hotspots() {
		seen[h.File] = true
	}
	for _, h := range entry.Hotspots {
		if seen[h.File] {
			continue
		}
		seen[h.File] = true
		ac.Model.AddHotspot(h)
	}
}

// analyzerVersion is the version tag a cache entry is validated against.
// The fixed family has no independent release cadence yet, so every analyzer
// shares one tag tied to this build.
func analyzerVersion(name string) string {
	return "family-v1:" + name
}
