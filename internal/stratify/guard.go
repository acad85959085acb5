// Package stratify implements the Stratification Guard: it
// bounds how much semantic reasoning a self-analysis pass may perform on the
// analyzer's own source tree, and bounds recursion depth across any "meta"
// analysis invocation path (an analysis run that itself triggers another
// analysis run, e.g. a campaign evaluating its own evaluator).
package stratify

import (
	"sync"

	"github.com/aperturehq/aperture/internal/apperrors"
	"github.com/aperturehq/aperture/internal/logging"
)

// Level is a self-analysis universe level.
type Level int

const (
	// LevelParseOnly permits only syntactic parsing, no metric computation.
	LevelParseOnly Level = 0
	// LevelMetrics permits metric computation (complexity, churn, etc).
	LevelMetrics Level = 1
	// LevelOntological permits mapping facts into the semantic (RDF) export.
	LevelOntological Level = 2
	// LevelFullReasoning is forbidden on the analyzer's own code path.
	LevelFullReasoning Level = 3
)

func (l Level) String() string {
	switch l {
	case LevelParseOnly:
		return "parse-only"
	case LevelMetrics:
		return "metrics"
	case LevelOntological:
		return "ontological-mapping"
	case LevelFullReasoning:
		return "full-reasoning"
	default:
		return "unknown"
	}
}

// DefaultMaxRecursionDepth is the default bound on nested "meta" analysis
// invocations.
const DefaultMaxRecursionDepth = 5

// DefaultMaxSelfLevel is the highest Level a self-analysis pass may run at;
// LevelFullReasoning always exceeds it regardless of configuration.
const DefaultMaxSelfLevel = LevelOntological

// Guard enforces universe levels for self-analysis and bounds recursion
// depth. One Guard is shared across a Pipeline's lifetime and carried
// explicitly as context rather than held as a process-wide singleton.
type Guard struct {
	mu           sync.Mutex
	selfRoots    map[string]struct{}
	maxSelfLevel Level
	maxDepth     int
	depth        int
}

// NewGuard returns a Guard bounding recursion to maxDepth (DefaultMaxRecursionDepth
// if non-positive) and self-analysis to DefaultMaxSelfLevel.
func NewGuard(maxDepth int) *Guard {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxRecursionDepth
	}
	return &Guard{
		selfRoots:    make(map[string]struct{}),
		maxSelfLevel: DefaultMaxSelfLevel,
		maxDepth:     maxDepth,
	}
}

// RegisterSelfRoot marks root as one of the analyzer's own source trees: a
// Snapshot taken at this path is a self-analysis pass and is subject to the
// guard's level ceiling.
func (g *Guard) RegisterSelfRoot(root string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selfRoots[root] = struct{}{}
}

// IsSelfAnalysis reports whether root was previously registered as one of
// the analyzer's own source trees.
func (g *Guard) IsSelfAnalysis(root string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.selfRoots[root]
	return ok
}

// CheckSelfAnalysis validates a requested Level against the guard's ceiling
// whenever root is a registered self-root. It is a no-op for any other root.
// Exceeding the ceiling — or requesting LevelFullReasoning at all on a
// self-root — is a fatal StratificationBreach.
func (g *Guard) CheckSelfAnalysis(root string, requested Level) error {
	if !g.IsSelfAnalysis(root) {
		return nil
	}
	if requested >= LevelFullReasoning || requested > g.maxSelfLevel {
		logging.Get(logging.CategoryStratify).Error("self-analysis of %s requested level %s exceeds ceiling %s", root, requested, g.maxSelfLevel)
		return apperrors.ErrStratificationBreach
	}
	return nil
}

// Enter records one nested "meta" invocation (an analysis run triggered from
// within another analysis run) and fails once MaxDepth would be exceeded.
// The returned Leave must be called exactly once, however Enter's caller
// returns, to keep the depth counter balanced.
func (g *Guard) Enter() (leave func(), err error) {
	g.mu.Lock()
	if g.depth >= g.maxDepth {
		depth := g.depth
		g.mu.Unlock()
		logging.Get(logging.CategoryStratify).Error("recursion depth %d exceeds max %d", depth, g.maxDepth)
		return func() {}, apperrors.ErrStratificationBreach
	}
	g.depth++
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		g.depth--
		g.mu.Unlock()
	}, nil
}

// Depth returns the current nesting depth, for diagnostics.
func (g *Guard) Depth() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.depth
}
