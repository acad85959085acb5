// Package model defines the data shapes computed by the analysis pipeline:
// per-file and per-module facts, issues, hotspots, the dependency and
// co-change graphs, and the sealed, immutable ResultModel that aggregates
// them.
package model

import (
	"sort"
	"sync"

	"github.com/aperturehq/aperture/internal/types"
)

// ResultModel is the aggregated, immutable output of one analysis run. It is
// created atomically at the end of the pipeline and never mutated afterward.
type ResultModel struct {
	SnapshotID string

	// mu guards every staging mutator below: analyzers within one
	// scheduler stage run concurrently and may write distinct files of
	// the same map.
	mu      sync.Mutex
	files   map[string]FileFacts
	modules map[string]ModuleFacts
	issues  []Issue
	hotspots []Hotspot

	DependencyGraph *DependencyGraph
	CoChangeGraph   *CoChangeGraph
	Quality         QualityReport

	// FailedAnalyzers records which analyzers in the family did not
	// complete, and why, under the scheduler's containment error policy.
	FailedAnalyzers map[string]string
	Diagnostics     []Issue

	sealed bool
}

// NewBuilder returns a mutable staging area used by the scheduler while
// stages are still running; call Seal to produce the immutable ResultModel.
func NewBuilder(snapshotID string) *ResultModel {
	return &ResultModel{
		SnapshotID:      snapshotID,
		files:           make(map[string]FileFacts),
		modules:         make(map[string]ModuleFacts),
		DependencyGraph: NewDependencyGraph(),
		CoChangeGraph:   NewCoChangeGraph(),
		FailedAnalyzers: make(map[string]string),
	}
}

// SetFile records or replaces the facts for a path.
func (m *ResultModel) SetFile(f FileFacts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sealed {
		panic("model: SetFile on sealed ResultModel")
	}
	m.files[f.Path] = f
}

// MergeFile applies fn to the stored facts for path under the model lock,
// creating the entry if absent. Analyzers scheduled into the same stage own
// disjoint fields of FileFacts; merging one field at a time keeps their
// concurrent updates from clobbering each other, which a whole-struct
// SetFile racing against another analyzer's read-modify-write would do.
func (m *ResultModel) MergeFile(path string, fn func(*FileFacts)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sealed {
		panic("model: MergeFile on sealed ResultModel")
	}
	f := m.files[path]
	f.Path = path
	fn(&f)
	m.files[path] = f
}

// SetModule records or replaces the facts for a module path.
func (m *ResultModel) SetModule(mf ModuleFacts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sealed {
		panic("model: SetModule on sealed ResultModel")
	}
	m.modules[mf.Path] = mf
}

// MergeModule is MergeFile's module-level counterpart, for analyzers that
// refresh a single aggregate on ModuleFacts concurrently with a sibling
// refreshing another.
func (m *ResultModel) MergeModule(path string, fn func(*ModuleFacts)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sealed {
		panic("model: MergeModule on sealed ResultModel")
	}
	mf := m.modules[path]
	mf.Path = path
	fn(&mf)
	m.modules[path] = mf
}

// AddIssue appends an issue during an analyzer's own stage. Duplicate
// identities (same type/file/line) collapse to a single entry.
func (m *ResultModel) AddIssue(iss Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sealed {
		panic("model: AddIssue on sealed ResultModel")
	}
	for _, existing := range m.issues {
		if existing.ID == iss.ID {
			return
		}
	}
	m.issues = append(m.issues, iss)
}

// AddHotspot appends a hotspot record.
func (m *ResultModel) AddHotspot(h Hotspot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sealed {
		panic("model: AddHotspot on sealed ResultModel")
	}
	m.hotspots = append(m.hotspots, h)
}

// MarkFailed records that an analyzer failed to produce output.
func (m *ResultModel) MarkFailed(analyzer, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailedAnalyzers[analyzer] = reason
}

// Seal freezes staged issues/hotspots into their defined iteration order and
// marks the model immutable. Called once, at the end of the pipeline.
func (m *ResultModel) Seal() *ResultModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	sort.Slice(m.issues, func(i, j int) bool { return IssueLess(m.issues[i], m.issues[j]) })
	sort.Slice(m.hotspots, func(i, j int) bool {
		if m.hotspots[i].Hotness != m.hotspots[j].Hotness {
			return m.hotspots[i].Hotness > m.hotspots[j].Hotness
		}
		if m.hotspots[i].Churn != m.hotspots[j].Churn {
			return m.hotspots[i].Churn > m.hotspots[j].Churn
		}
		return m.hotspots[i].File < m.hotspots[j].File
	})
	m.sealed = true
	return m
}

// Files returns every FileFacts, sorted by path.
// Safe to call while sibling analyzers in the same stage are still writing.
func (m *ResultModel) Files() []FileFacts {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]FileFacts, len(paths))
	for i, p := range paths {
		out[i] = m.files[p]
	}
	return out
}

// File returns the facts for one path and whether it was found.
func (m *ResultModel) File(path string) (FileFacts, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	return f, ok
}

// Modules returns every ModuleFacts, sorted by path.
func (m *ResultModel) Modules() []ModuleFacts {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.modules))
	for p := range m.modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]ModuleFacts, len(paths))
	for i, p := range paths {
		out[i] = m.modules[p]
	}
	return out
}

// Module returns the facts for one module path and whether it was found.
func (m *ResultModel) Module(path string) (ModuleFacts, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mf, ok := m.modules[path]
	return mf, ok
}

// Issues returns every Issue in (file path, line, type) order.
func (m *ResultModel) Issues() []Issue {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Issue, len(m.issues))
	copy(out, m.issues)
	return out
}

// Hotspots returns every Hotspot in hotness/churn/path tie-break order.
func (m *ResultModel) Hotspots() []Hotspot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Hotspot, len(m.hotspots))
	copy(out, m.hotspots)
	return out
}

// ToFacts exports every computed fact as the flat []types.Fact shape the
// downstream RDF serializer consumes, one atom per entity.
func (m *ResultModel) ToFacts() []types.Fact {
	var facts []types.Fact
	for _, f := range m.Files() {
		facts = append(facts, types.Fact{Predicate: "file_entry", Args: []interface{}{
			f.Path, types.MangleAtom("/" + string(f.Language)), f.LOC,
		}})
	}
	for _, mf := range m.Modules() {
		for _, file := range mf.Files {
			facts = append(facts, types.Fact{Predicate: "module_member", Args: []interface{}{mf.Path, file}})
		}
	}
	for _, iss := range m.Issues() {
		facts = append(facts, types.Fact{Predicate: "issue", Args: []interface{}{
			iss.ID, types.MangleAtom("/" + string(iss.Type)), types.MangleAtom("/" + string(iss.Severity)), iss.File, iss.Line,
		}})
	}
	for _, h := range m.Hotspots() {
		facts = append(facts, types.Fact{Predicate: "hotspot", Args: []interface{}{h.File, h.Hotness}})
	}
	for _, from := range m.DependencyGraph.Nodes() {
		for _, to := range m.DependencyGraph.Successors(from) {
			facts = append(facts, types.Fact{Predicate: "dependency_edge", Args: []interface{}{from, to}})
		}
	}
	pairs := make([][2]string, 0, len(m.CoChangeGraph.weights))
	for pair := range m.CoChangeGraph.weights {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	for _, pair := range pairs {
		facts = append(facts, types.Fact{Predicate: "cochange_edge", Args: []interface{}{pair[0], pair[1], m.CoChangeGraph.weights[pair]}})
	}
	facts = append(facts, types.Fact{Predicate: "quality_score", Args: []interface{}{m.Quality.Q, m.Quality.PCQ}})
	return facts
}
