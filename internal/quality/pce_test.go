package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePCEEmptyWhenAboveThreshold(t *testing.T) {
	plan := GeneratePCE(map[string]float64{"a": 0.9, "b": 0.85}, 0.8, 10)
	assert.Empty(t, plan.Tasks)
}

func TestGeneratePCEEmptyForNoModules(t *testing.T) {
	plan := GeneratePCE(map[string]float64{}, 0.8, 10)
	assert.Empty(t, plan.Tasks)
}

// TestGeneratePCEWitnessFeasibility: applying every task in the witness to
// the module set, under the declared per-action delta bound, raises the
// minimum module utility to at least tau.
func TestGeneratePCEWitnessFeasibility(t *testing.T) {
	utilities := map[string]float64{"a": 0.2, "b": 0.5, "c": 0.95}
	const tau = 0.8

	plan := GeneratePCE(utilities, tau, 100)
	require.NotEmpty(t, plan.Tasks)

	applied := map[string]float64{}
	for p, u := range utilities {
		applied[p] = u
	}
	for _, task := range plan.Tasks {
		assert.LessOrEqual(t, task.EstimatedDeltaQ, maxDeltaUPerAction)
		applied[task.Target] = clamp01(applied[task.Target] + task.EstimatedDeltaQ)
	}

	for path, u := range applied {
		assert.GreaterOrEqual(t, u, tau, "module %s still below tau after applying the witness", path)
	}
}

func TestGeneratePCERespectsTaskBudget(t *testing.T) {
	utilities := map[string]float64{"a": 0.0, "b": 0.1}
	plan := GeneratePCE(utilities, 0.9, 3)
	assert.Len(t, plan.Tasks, 3, "budget k must cap the plan even while min utility is below tau")
}

func TestGeneratePCETargetsLowestUtilityFirst(t *testing.T) {
	utilities := map[string]float64{"low": 0.1, "high": 0.7}
	plan := GeneratePCE(utilities, 0.8, 1)
	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "low", plan.Tasks[0].Target)
}

func TestGeneratePCETieBreaksByAscendingPath(t *testing.T) {
	utilities := map[string]float64{"zeta": 0.5, "alpha": 0.5}
	plan := GeneratePCE(utilities, 0.6, 1)
	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "alpha", plan.Tasks[0].Target)
}

func TestGeneratePCEChainsTaskDependencies(t *testing.T) {
	utilities := map[string]float64{"a": 0.0}
	plan := GeneratePCE(utilities, 0.4, 10)
	require.Greater(t, len(plan.Tasks), 1)

	assert.Empty(t, plan.Tasks[0].DependsOn)
	for i := 1; i < len(plan.Tasks); i++ {
		require.Len(t, plan.Tasks[i].DependsOn, 1)
		assert.Equal(t, plan.Tasks[i-1].ID, plan.Tasks[i].DependsOn[0])
	}
}

func TestGeneratePCEIsDeterministic(t *testing.T) {
	utilities := map[string]float64{"a": 0.3, "b": 0.3, "c": 0.6}
	p1 := GeneratePCE(utilities, 0.8, 5)
	p2 := GeneratePCE(utilities, 0.8, 5)
	assert.Equal(t, p1, p2)
}
