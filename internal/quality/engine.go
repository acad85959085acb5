// Package quality implements the Quality Engine: risk-vector
// computation, Q = clamp(Qmax - Σwᵢxᵢ - Φ(x), 0, Qmax), PCQ as the
// min-aggregated per-module utility, and the constructive PCE k-witness
// generator that produces refactoring recommendations.
package quality

import (
	"fmt"
	"sort"

	"github.com/aperturehq/aperture/internal/config"
	"github.com/aperturehq/aperture/internal/model"
)

// Engine computes a QualityReport for a sealed ResultModel under a Policy.
type Engine struct{}

// NewEngine returns an Engine.
func NewEngine() *Engine { return &Engine{} }

// Evaluate computes the full QualityReport for m under p. The engine is
// total: out-of-bound inputs are clamped and recorded as diagnostics rather
// than returned as errors.
func (Engine) Evaluate(m *model.ResultModel, p *config.Policy) model.QualityReport {
	risks := computeRiskVector(m, p)
	q := scoreQ(risks, p)

	utilities := computeModuleUtilities(m)
	pcq := minUtility(utilities)

	report := model.QualityReport{
		Q:             q,
		QMax:          p.QMax,
		Risks:         risks,
		PCQ:           pcq,
		ModuleUtility: utilities,
		Diagnostics:   boundDiagnostics(m),
	}
	report.Plan = GeneratePCE(utilities, p.Tau, p.KWitnessMax)
	return report
}

// maxDeclaredComplexity is the upper bound a per-file cyclomatic complexity
// is declared to stay within; larger measurements are still usable (the risk
// normalization saturates far below this) but worth surfacing.
const maxDeclaredComplexity = 1000.0

// boundDiagnostics reports every file whose measured facts fall outside
// their declared bounds, as non-fatal diagnostics.
func boundDiagnostics(m *model.ResultModel) []model.Issue {
	var diags []model.Issue
	for _, f := range m.Files() {
		if f.Complexity > maxDeclaredComplexity {
			diags = append(diags, model.NewIssue("quality", model.IssueOther, model.SeverityInfo, f.Path, 0,
				fmt.Sprintf("complexity %.0f exceeds declared bound %.0f, clamped", f.Complexity, maxDeclaredComplexity)))
		}
		if f.Maintainability < 0 || f.Maintainability > 100 {
			diags = append(diags, model.NewIssue("quality", model.IssueOther, model.SeverityInfo, f.Path, 0,
				fmt.Sprintf("maintainability %.1f outside [0,100], clamped", f.Maintainability)))
		}
	}
	return diags
}

// computeRiskVector maps a ResultModel's measured quantities into the
// normalized, saturating [0,1] risk vector x, one component per
// config.RiskIndex.
func computeRiskVector(m *model.ResultModel, p *config.Policy) map[config.RiskIndex]float64 {
	files := m.Files()
	risks := make(map[config.RiskIndex]float64, len(config.AllRiskIndices))
	if len(files) == 0 {
		for _, idx := range config.AllRiskIndices {
			risks[idx] = 0
		}
		return risks
	}

	const (
		maxComplexity = 200.0
		maxTodoPerLOC = 0.05
	)

	var sumComplexity, sumTodoDensity float64
	hotspotCount := 0
	coveredFiles, totalCoverable := 0, 0
	for _, f := range files {
		sumComplexity += clamp01(f.Complexity / maxComplexity)
		if f.LOC > 0 {
			sumTodoDensity += clamp01((float64(f.TodoMarkerCount) / float64(f.LOC)) / maxTodoPerLOC)
		}
		if f.TestCoverageRatio != nil {
			totalCoverable++
			if *f.TestCoverageRatio >= 0.5 {
				coveredFiles++
			}
		}
	}
	for _, h := range m.Hotspots() {
		if h.Hotness > 0 {
			hotspotCount++
		}
	}

	testDeficit := 0.0
	if totalCoverable > 0 {
		testDeficit = 1 - float64(coveredFiles)/float64(totalCoverable)
	}

	criticalCount, circularCount, layeringCount := 0, 0, 0
	for _, iss := range m.Issues() {
		switch iss.Type {
		case model.IssueCircularDependency:
			circularCount++
		case model.IssueLayeringViolation:
			layeringCount++
		}
		if iss.Severity == model.SeverityCritical {
			criticalCount++
		}
	}

	ciAbsence := 0.0
	for _, iss := range m.Issues() {
		if iss.Type == model.IssueOther && iss.Severity == model.SeverityMajor && iss.File == "" {
			ciAbsence = 1
		}
	}

	risks[config.RiskComplexity] = sumComplexity / float64(len(files))
	risks[config.RiskHotspotRatio] = clamp01(float64(hotspotCount) / float64(len(files)))
	risks[config.RiskTodoDensity] = clamp01(sumTodoDensity / float64(len(files)))
	risks[config.RiskTestDeficit] = clamp01(testDeficit)
	risks[config.RiskCIAbsence] = ciAbsence
	risks[config.RiskLayeringViol] = clamp01(float64(layeringCount) / 10.0)
	risks[config.RiskCircularDeps] = clamp01(float64(circularCount) / 10.0)
	risks[config.RiskCriticalIssues] = clamp01(float64(criticalCount) / 10.0)
	return risks
}

// scoreQ is Q = clamp(Qmax - Σᵢ wᵢ·xᵢ - Φ(x), 0, Qmax). The weighted sum
// runs over config.AllRiskIndices in its fixed order so the float additions
// associate identically on every run.
func scoreQ(risks map[config.RiskIndex]float64, p *config.Policy) float64 {
	var weighted float64
	for _, idx := range config.AllRiskIndices {
		weighted += p.Weights[idx] * risks[idx]
	}
	q := p.QMax - weighted - phi(risks)
	if q < 0 {
		return 0
	}
	if q > p.QMax {
		return p.QMax
	}
	return q
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// phi is the piecewise-linear penalty with non-negative derivative in each
// component: every risk above 0.8 adds 5 times its overage (x - 0.8), summed
// over the risks, on top of the linear weighted sum.
func phi(risks map[config.RiskIndex]float64) float64 {
	const (
		dangerThreshold = 0.8
		overageWeight   = 5.0
	)
	var penalty float64
	for _, idx := range config.AllRiskIndices {
		x := risks[idx]
		if x > dangerThreshold {
			penalty += overageWeight * (x - dangerThreshold)
		}
	}
	return penalty
}

// computeModuleUtilities maps each module's facts into an isotone [0,1]
// utility: higher complexity/churn density lowers utility monotonically.
func computeModuleUtilities(m *model.ResultModel) map[string]float64 {
	out := make(map[string]float64)
	for _, mf := range m.Modules() {
		if len(mf.Files) == 0 {
			out[mf.Path] = 1
			continue
		}
		complexityPenalty := clamp01(mf.MeanComplexity / 200.0)
		churnPenalty := clamp01(float64(mf.TotalChurn) / (500.0 * float64(len(mf.Files))))
		issuePenalty := 0.0
		for _, iss := range m.Issues() {
			if fileInModule(iss.File, mf) {
				switch iss.Severity {
				case model.SeverityCritical:
					issuePenalty += 0.25
				case model.SeverityMajor:
					issuePenalty += 0.10
				case model.SeverityMinor:
					issuePenalty += 0.02
				}
			}
		}
		util := 1 - 0.4*complexityPenalty - 0.3*churnPenalty - clamp01(issuePenalty)
		out[mf.Path] = clamp01(util)
	}
	return out
}

func fileInModule(file string, mf model.ModuleFacts) bool {
	for _, f := range mf.Files {
		if f == file {
			return true
		}
	}
	return false
}

// minUtility returns PCQ = min over modules of uⱼ, or 1 for a moduleless
// (e.g. empty) ResultModel, so an empty repository scores perfectly.
func minUtility(utilities map[string]float64) float64 {
	if len(utilities) == 0 {
		return 1
	}
	min := 1.0
	for _, u := range utilities {
		if u < min {
			min = u
		}
	}
	return min
}

// sortedModulePaths returns utility map keys in deterministic ascending-
// utility, then ascending-path order, matching the PCE generator's required
// processing order.
func sortedModulePaths(utilities map[string]float64) []string {
	paths := make([]string, 0, len(utilities))
	for p := range utilities {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		if utilities[paths[i]] != utilities[paths[j]] {
			return utilities[paths[i]] < utilities[paths[j]]
		}
		return paths[i] < paths[j]
	})
	return paths
}
