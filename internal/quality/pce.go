package quality

import (
	"fmt"

	"github.com/aperturehq/aperture/internal/model"
)

// maxDeltaUPerAction bounds how much a single RecommendationTask is assumed
// to raise a module's utility. Overlapping actions on the same module compose
// by taking the max of per-action delta u, since additive combination of
// bounded deltas on the same module is unsound (it can overshoot 1 or
// double-count shared root causes).
const maxDeltaUPerAction = 0.15

// GeneratePCE is the constructive k-witness generator: given
// per-module utilities, a PCQ threshold tau, and a task budget k, it greedily
// proposes remediation tasks for the lowest-utility modules until either the
// minimum utility reaches tau or k tasks have been proposed.
func GeneratePCE(utilities map[string]float64, tau float64, k int) model.RefactoringPlan {
	if len(utilities) == 0 || minUtility(utilities) >= tau {
		return model.RefactoringPlan{}
	}

	working := make(map[string]float64, len(utilities))
	for p, u := range utilities {
		working[p] = u
	}

	var tasks []model.RecommendationTask
	for len(tasks) < k {
		if minUtility(working) >= tau {
			break
		}
		order := sortedModulePaths(working)
		target := order[0] // lowest utility, ascending path tie-break

		deficit := tau - working[target]
		delta := maxDeltaUPerAction
		if delta > deficit {
			delta = deficit
		}

		task := model.RecommendationTask{
			ID:              fmt.Sprintf("pce-%d", len(tasks)+1),
			Target:          target,
			Action:          "refactor_reduce_complexity_and_churn",
			EstimatedDeltaQ: delta,
		}
		if len(tasks) > 0 {
			task.DependsOn = []string{tasks[len(tasks)-1].ID}
		}
		tasks = append(tasks, task)

		// Overlapping actions on the same module take the max observed
		// delta rather than summing: applying this one action raises the
		// module straight to working[target]+delta.
		working[target] = clamp01(working[target] + delta)
	}

	return model.RefactoringPlan{Tasks: tasks}
}
