// Package config defines the version-tagged Policy document that drives one
// analysis run: a single YAML-backed struct with a DefaultPolicy constructor
// and a Validate pass consulted before analysis starts.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aperturehq/aperture/internal/apperrors"
)

// RiskIndex names one component of the normalized risk vector x.
type RiskIndex string

const (
	RiskComplexity       RiskIndex = "complexity"
	RiskHotspotRatio     RiskIndex = "hotspot_ratio"
	RiskTodoDensity      RiskIndex = "todo_density"
	RiskTestDeficit      RiskIndex = "test_deficit"
	RiskCIAbsence        RiskIndex = "ci_absence"
	RiskLayeringViol     RiskIndex = "layering_violations"
	RiskCircularDeps     RiskIndex = "circular_dependencies"
	RiskCriticalIssues   RiskIndex = "critical_issues"
)

// AllRiskIndices is the fixed order risk vector components are computed and
// serialized in.
var AllRiskIndices = []RiskIndex{
	RiskComplexity,
	RiskHotspotRatio,
	RiskTodoDensity,
	RiskTestDeficit,
	RiskCIAbsence,
	RiskLayeringViol,
	RiskCircularDeps,
	RiskCriticalIssues,
}

// Timeouts bounds per-analyzer and whole-pipeline execution time. Zero means
// "no timeout", the default.
type Timeouts struct {
	PerAnalyzer time.Duration            `yaml:"per_analyzer"`
	PerName     map[string]time.Duration `yaml:"per_name,omitempty"`
	Pipeline    time.Duration            `yaml:"pipeline"`
}

// LayerRules overrides the default architectural layering matrix.
// Keys and values are layer names; a missing source layer falls back to the
// built-in default for that layer.
type LayerRules struct {
	Allowed map[string][]string `yaml:"allowed"`
}

// Policy is the structured, version-tagged document that parameterizes one
// analysis or gate evaluation.
type Policy struct {
	Version string `yaml:"version"`

	Weights          map[RiskIndex]float64 `yaml:"weights"`
	HardConstraints  []RiskIndex           `yaml:"hard_constraints"`
	Epsilon          float64               `yaml:"epsilon"`
	Tau              float64               `yaml:"tau"`
	KWitnessMax      int                   `yaml:"k_witness_max"`
	QMax             float64               `yaml:"q_max"`
	EnabledAnalyzers []string              `yaml:"enabled_analyzers"`
	Timeouts         Timeouts              `yaml:"timeouts"`
	ExcludedGlobs    []string              `yaml:"excluded_globs"`
	MaxFiles         int                   `yaml:"max_files"`
	LayerRules       *LayerRules           `yaml:"layer_rules,omitempty"`
	LicenseAllowlist []string              `yaml:"license_allowlist"`
	SPDXProjectLicense string              `yaml:"spdx_project_license"`
	HotspotTopK      int                   `yaml:"hotspot_top_k"`
	NormalizerStepBudget int              `yaml:"normalizer_step_budget"`
	MaxRecursionDepth int                  `yaml:"max_recursion_depth"`
	MaxStratificationLevel int            `yaml:"max_stratification_level"`
}

// DefaultPolicy returns the built-in defaults: τ=0.80, ε=0.2, and a hard set
// of {test-coverage deficit, hotspot ratio, critical-issue count,
// circular-dependency count, layering-violation count}.
func DefaultPolicy() *Policy {
	return &Policy{
		Version: "1",
		Weights: map[RiskIndex]float64{
			RiskComplexity:     0.20,
			RiskHotspotRatio:   0.15,
			RiskTodoDensity:    0.10,
			RiskTestDeficit:    0.20,
			RiskCIAbsence:      0.10,
			RiskLayeringViol:   0.10,
			RiskCircularDeps:   0.10,
			RiskCriticalIssues: 0.05,
		},
		HardConstraints: []RiskIndex{
			RiskTestDeficit,
			RiskHotspotRatio,
			RiskCriticalIssues,
			RiskCircularDeps,
			RiskLayeringViol,
		},
		Epsilon: 0.2,
		Tau:     0.80,
		KWitnessMax: 10,
		QMax:    100,
		EnabledAnalyzers: []string{
			"structure", "complexity", "history", "weakness",
			"ciqm", "hotspots", "architecture", "doccodesync",
		},
		Timeouts:             Timeouts{PerAnalyzer: 0, Pipeline: 0},
		ExcludedGlobs:        []string{".git/*", "vendor/*", "node_modules/*"},
		MaxFiles:             200000,
		LicenseAllowlist:     []string{"MIT", "Apache-2.0", "BSD-3-Clause"},
		HotspotTopK:          20,
		NormalizerStepBudget: 10000,
		MaxRecursionDepth:    5,
		MaxStratificationLevel: 2,
	}
}

// Load reads and validates a Policy document from a YAML file.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPolicyInvalid, err)
	}
	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPolicyInvalid, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate rejects a Policy that cannot be executed safely, surfacing as the
// fatal input error PolicyInvalid before analysis starts.
func (p *Policy) Validate() error {
	if p.Tau < 0 || p.Tau > 1 {
		return fmt.Errorf("%w: tau %.3f out of [0,1]", apperrors.ErrPolicyInvalid, p.Tau)
	}
	if p.Epsilon < 0 {
		return fmt.Errorf("%w: epsilon %.3f must be non-negative", apperrors.ErrPolicyInvalid, p.Epsilon)
	}
	if p.QMax <= 0 {
		return fmt.Errorf("%w: q_max must be positive", apperrors.ErrPolicyInvalid)
	}
	if p.KWitnessMax < 0 {
		return fmt.Errorf("%w: k_witness_max must be non-negative", apperrors.ErrPolicyInvalid)
	}
	for _, h := range p.HardConstraints {
		if !validRiskIndex(h) {
			return fmt.Errorf("%w: unknown hard constraint risk index %q", apperrors.ErrPolicyInvalid, h)
		}
	}
	for idx := range p.Weights {
		if !validRiskIndex(idx) {
			return fmt.Errorf("%w: unknown weight risk index %q", apperrors.ErrPolicyInvalid, idx)
		}
	}
	return nil
}

func validRiskIndex(idx RiskIndex) bool {
	for _, r := range AllRiskIndices {
		if r == idx {
			return true
		}
	}
	return false
}

// IsHard reports whether idx is a member of the policy's hard set H.
func (p *Policy) IsHard(idx RiskIndex) bool {
	for _, h := range p.HardConstraints {
		if h == idx {
			return true
		}
	}
	return false
}

// AnalyzerEnabled reports whether name is in the policy's enabled set.
func (p *Policy) AnalyzerEnabled(name string) bool {
	for _, n := range p.EnabledAnalyzers {
		if n == name {
			return true
		}
	}
	return false
}

// AnalyzerTimeout resolves the effective timeout for a named analyzer,
// falling back to the blanket per-analyzer timeout.
func (p *Policy) AnalyzerTimeout(name string) time.Duration {
	if d, ok := p.Timeouts.PerName[name]; ok {
		return d
	}
	return p.Timeouts.PerAnalyzer
}
