package model

import "github.com/aperturehq/aperture/internal/config"

// Hotspot is a file ranked by hotness = normalize(complexity) * normalize(churn).
type Hotspot struct {
	File    string  `json:"file"`
	Hotness float64 `json:"hotness"`
	Churn   int     `json:"churn"` // tie-break key, descending
}

// RecommendationTask is one remediation step in a RefactoringPlan.
type RecommendationTask struct {
	ID          string   `json:"id"`
	Target      string   `json:"target"` // file or module path
	Action      string   `json:"action"`
	EstimatedDeltaQ float64 `json:"estimated_delta_q"`
	EstimatedEffortHours float64 `json:"estimated_effort_hours"`
	DependsOn   []string `json:"depends_on,omitempty"`
}

// RefactoringPlan is an ordered, reproducible list of RecommendationTask.
type RefactoringPlan struct {
	Tasks []RecommendationTask `json:"tasks"`
}

// QualityReport is the Quality Engine's total output for one ResultModel.
type QualityReport struct {
	Q          float64                        `json:"q"`
	QMax       float64                        `json:"q_max"`
	Risks      map[config.RiskIndex]float64    `json:"risks"`
	PCQ        float64                        `json:"pcq"`
	ModuleUtility map[string]float64           `json:"module_utility"`
	Plan       RefactoringPlan                `json:"plan"`
	Diagnostics []Issue                       `json:"diagnostics,omitempty"`
}

// RiskVector returns the risk vector x in the fixed order config.AllRiskIndices.
func (q QualityReport) RiskVector() []float64 {
	out := make([]float64, len(config.AllRiskIndices))
	for i, idx := range config.AllRiskIndices {
		out[i] = q.Risks[idx]
	}
	return out
}
