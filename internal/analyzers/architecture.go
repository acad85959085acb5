package analyzers

import (
	"context"
	"fmt"

	"github.com/aperturehq/aperture/internal/config"
	"github.com/aperturehq/aperture/internal/model"
	"github.com/aperturehq/aperture/internal/registry"
)

// defaultLayerRules is the default layering matrix: each layer may only
// import the layers listed as its value.
var defaultLayerRules = map[model.Layer][]model.Layer{
	model.LayerPresentation:  {model.LayerBusiness, model.LayerInfrastructure},
	model.LayerBusiness:      {model.LayerData, model.LayerInfrastructure},
	model.LayerData:          {model.LayerInfrastructure},
	model.LayerInfrastructure: {},
}

// ArchitectureAnalyzer detects circular module dependencies via Tarjan's SCC
// algorithm and flags imports that cross layers in a disallowed direction,
// escalating Data->Presentation edges to Critical severity.
type ArchitectureAnalyzer struct{}

func (ArchitectureAnalyzer) Name() string        { return "architecture" }
func (ArchitectureAnalyzer) DependsOn() []string { return []string{"structure"} }

func (ArchitectureAnalyzer) Run(ctx context.Context, ac *registry.AnalysisContext) error {
	for _, comp := range model.TarjanSCCs(ac.Model.DependencyGraph) {
		ac.Model.AddIssue(model.NewIssue("architecture", model.IssueCircularDependency, model.SeverityMajor,
			comp[0], 0, fmt.Sprintf("circular dependency among modules: %v", comp)))
	}

	allowed := resolveLayerRules(ac.Policy)

	for _, from := range ac.Model.DependencyGraph.Nodes() {
		fromMF, ok := ac.Model.Module(from)
		if !ok || fromMF.Layer == model.LayerUnassigned {
			continue
		}
		for _, to := range ac.Model.DependencyGraph.Successors(from) {
			toMF, ok := ac.Model.Module(to)
			if !ok || toMF.Layer == model.LayerUnassigned || toMF.Layer == fromMF.Layer {
				continue
			}
			if layerAllowed(allowed, fromMF.Layer, toMF.Layer) {
				continue
			}
			sev := model.SeverityMajor
			if fromMF.Layer == model.LayerData && toMF.Layer == model.LayerPresentation {
				sev = model.SeverityCritical
			}
			ac.Model.AddIssue(model.NewIssue("architecture", model.IssueLayeringViolation, sev,
				from, 0, fmt.Sprintf("%s imports %s (%s -> %s not permitted)", from, to, fromMF.Layer, toMF.Layer)))
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func resolveLayerRules(p *config.Policy) map[model.Layer][]model.Layer {
	if p.LayerRules == nil {
		return defaultLayerRules
	}
	out := make(map[model.Layer][]model.Layer, len(defaultLayerRules))
	for from, tos := range defaultLayerRules {
		out[from] = tos
	}
	for from, tos := range p.LayerRules.Allowed {
		dests := make([]model.Layer, len(tos))
		for i, to := range tos {
			dests[i] = model.Layer(to)
		}
		out[model.Layer(from)] = dests
	}
	return out
}

func layerAllowed(rules map[model.Layer][]model.Layer, from, to model.Layer) bool {
	for _, allowed := range rules[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
