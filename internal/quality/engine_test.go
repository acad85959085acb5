package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperturehq/aperture/internal/config"
	"github.com/aperturehq/aperture/internal/model"
)

// TestEvaluateEmptyModel: an empty snapshot scores Q = Qmax, PCQ = 1, and
// yields an empty plan.
func TestEvaluateEmptyModel(t *testing.T) {
	m := model.NewBuilder("empty").Seal()
	report := NewEngine().Evaluate(m, config.DefaultPolicy())

	assert.Equal(t, 100.0, report.Q)
	assert.Equal(t, 1.0, report.PCQ)
	assert.Empty(t, report.Plan.Tasks)
}

// TestScoreQMonotoneUnderRiskReduction: lowering any risk component never
// lowers Q.
func TestScoreQMonotoneUnderRiskReduction(t *testing.T) {
	p := config.DefaultPolicy()

	base := map[config.RiskIndex]float64{}
	for _, idx := range config.AllRiskIndices {
		base[idx] = 0.9
	}

	qBase := scoreQ(base, p)
	for _, idx := range config.AllRiskIndices {
		reduced := map[config.RiskIndex]float64{}
		for k, v := range base {
			reduced[k] = v
		}
		reduced[idx] = 0.1

		qReduced := scoreQ(reduced, p)
		assert.GreaterOrEqual(t, qReduced, qBase, "reducing %s must not lower Q", idx)
	}
}

func TestScoreQClampsToRange(t *testing.T) {
	p := config.DefaultPolicy()
	p.QMax = 10
	for idx := range p.Weights {
		p.Weights[idx] = 100 // force the weighted sum far past Qmax
	}

	worst := map[config.RiskIndex]float64{}
	for _, idx := range config.AllRiskIndices {
		worst[idx] = 1
	}
	assert.Equal(t, 0.0, scoreQ(worst, p))

	clean := map[config.RiskIndex]float64{}
	assert.Equal(t, 10.0, scoreQ(clean, p))
}

func modelWithModules(t *testing.T, modules ...model.ModuleFacts) *model.ResultModel {
	t.Helper()
	b := model.NewBuilder("snap")
	for _, mf := range modules {
		b.SetModule(mf)
	}
	return b.Seal()
}

// TestPCQIsLowerBoundOfEveryModuleUtility: PCQ is the min over module
// utilities, so no module may score below it.
func TestPCQIsLowerBoundOfEveryModuleUtility(t *testing.T) {
	m := modelWithModules(t,
		model.ModuleFacts{Path: "clean", Files: []string{"clean/a.go"}, MeanComplexity: 2},
		model.ModuleFacts{Path: "hairy", Files: []string{"hairy/b.go"}, MeanComplexity: 180, TotalChurn: 900},
		model.ModuleFacts{Path: "mid", Files: []string{"mid/c.go"}, MeanComplexity: 40, TotalChurn: 100},
	)

	report := NewEngine().Evaluate(m, config.DefaultPolicy())
	require.NotEmpty(t, report.ModuleUtility)
	for path, u := range report.ModuleUtility {
		assert.GreaterOrEqual(t, u, report.PCQ, "module %s utility below PCQ", path)
	}
}

func TestModuleUtilityDropsWithIssueSeverity(t *testing.T) {
	clean := modelWithModules(t,
		model.ModuleFacts{Path: "m", Files: []string{"m/a.go"}, MeanComplexity: 10})

	b := model.NewBuilder("snap")
	b.SetModule(model.ModuleFacts{Path: "m", Files: []string{"m/a.go"}, MeanComplexity: 10})
	b.AddIssue(model.NewIssue("architecture", model.IssueLayeringViolation, model.SeverityCritical, "m/a.go", 0, "bad edge"))
	dirty := b.Seal()

	p := config.DefaultPolicy()
	uClean := NewEngine().Evaluate(clean, p).ModuleUtility["m"]
	uDirty := NewEngine().Evaluate(dirty, p).ModuleUtility["m"]
	assert.Less(t, uDirty, uClean)
}

func TestEvaluateRecordsOutOfBoundDiagnostics(t *testing.T) {
	b := model.NewBuilder("snap")
	b.SetFile(model.FileFacts{Path: "huge.go", Language: model.LangGo, Complexity: 1500, LOC: 10, Maintainability: 50})
	m := b.Seal()

	report := NewEngine().Evaluate(m, config.DefaultPolicy())
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, model.IssueOther, report.Diagnostics[0].Type)
	assert.Equal(t, "huge.go", report.Diagnostics[0].File)
}

func TestRiskVectorComponentsStayInUnitInterval(t *testing.T) {
	b := model.NewBuilder("snap")
	b.SetFile(model.FileFacts{Path: "a.go", Language: model.LangGo, Complexity: 950, LOC: 10, TodoMarkerCount: 40})
	for i := 0; i < 15; i++ {
		b.AddIssue(model.NewIssue("architecture", model.IssueCircularDependency, model.SeverityCritical, "a.go", i, "cycle"))
	}
	m := b.Seal()

	report := NewEngine().Evaluate(m, config.DefaultPolicy())
	for _, idx := range config.AllRiskIndices {
		x := report.Risks[idx]
		assert.GreaterOrEqual(t, x, 0.0, "%s below 0", idx)
		assert.LessOrEqual(t, x, 1.0, "%s above 1", idx)
	}
}
