package stratify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperturehq/aperture/internal/apperrors"
)

func TestCheckSelfAnalysisNoOpForUnregisteredRoot(t *testing.T) {
	g := NewGuard(0)
	err := g.CheckSelfAnalysis("/some/other/repo", LevelFullReasoning)
	assert.NoError(t, err, "non-self roots are never subject to the ceiling")
}

func TestCheckSelfAnalysisAllowsWithinCeiling(t *testing.T) {
	g := NewGuard(0)
	g.RegisterSelfRoot("/repo/self")
	assert.NoError(t, g.CheckSelfAnalysis("/repo/self", LevelParseOnly))
	assert.NoError(t, g.CheckSelfAnalysis("/repo/self", LevelMetrics))
	assert.NoError(t, g.CheckSelfAnalysis("/repo/self", LevelOntological))
}

func TestCheckSelfAnalysisBreachesAboveCeiling(t *testing.T) {
	g := NewGuard(0)
	g.RegisterSelfRoot("/repo/self")
	err := g.CheckSelfAnalysis("/repo/self", LevelFullReasoning)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStratificationBreach)
}

func TestEnterLeaveTracksDepth(t *testing.T) {
	g := NewGuard(2)
	leave1, err := g.Enter()
	require.NoError(t, err)
	assert.Equal(t, 1, g.Depth())

	leave2, err := g.Enter()
	require.NoError(t, err)
	assert.Equal(t, 2, g.Depth())

	_, err = g.Enter()
	assert.ErrorIs(t, err, apperrors.ErrStratificationBreach, "third nested invocation exceeds maxDepth=2")

	leave2()
	leave1()
	assert.Equal(t, 0, g.Depth())
}

func TestNewGuardDefaultsNonPositiveDepth(t *testing.T) {
	g := NewGuard(-1)
	assert.Equal(t, DefaultMaxRecursionDepth, g.maxDepth)
}
