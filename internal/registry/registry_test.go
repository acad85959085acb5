package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/aperturehq/aperture/internal/config"
	"github.com/aperturehq/aperture/internal/model"
)

type fakeAnalyzer struct {
	name string
	deps []string
	run  func(ctx context.Context, ac *AnalysisContext) error
}

func (f *fakeAnalyzer) Name() string        { return f.name }
func (f *fakeAnalyzer) DependsOn() []string { return f.deps }
func (f *fakeAnalyzer) Run(ctx context.Context, ac *AnalysisContext) error {
	if f.run != nil {
		return f.run(ctx, ac)
	}
	return nil
}

func policyWith(names ...string) *config.Policy {
	p := config.DefaultPolicy()
	p.EnabledAnalyzers = names
	return p
}

func TestStagesOrdersByDependency(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeAnalyzer{name: "structure"})
	r.Register(&fakeAnalyzer{name: "complexity", deps: []string{"structure"}})
	r.Register(&fakeAnalyzer{name: "hotspots", deps: []string{"complexity", "history"}})
	r.Register(&fakeAnalyzer{name: "history"})

	stages, err := r.Stages(policyWith("structure", "complexity", "hotspots", "history"))
	if err != nil {
		t.Fatal(err)
	}
	if len(stages) != 3 {
		t.Fatalf("expected 3 stages, got %d: %+v", len(stages), stages)
	}
	if len(stages[0]) != 2 {
		t.Fatalf("expected stage 0 to hold structure+history in parallel, got %d", len(stages[0]))
	}
}

func TestStagesDetectsCycle(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeAnalyzer{name: "a", deps: []string{"b"}})
	r.Register(&fakeAnalyzer{name: "b", deps: []string{"a"}})

	_, err := r.Stages(policyWith("a", "b"))
	if err == nil {
		t.Fatal("expected dependency cycle error")
	}
}

func TestRunStagesContainsFailureAndSkipsDependents(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeAnalyzer{name: "structure", run: func(ctx context.Context, ac *AnalysisContext) error {
		return assertErr
	}})
	r.Register(&fakeAnalyzer{name: "complexity", deps: []string{"structure"}, run: func(ctx context.Context, ac *AnalysisContext) error {
		t.Error("complexity must not run: its dependency failed")
		return nil
	}})
	r.Register(&fakeAnalyzer{name: "history", run: func(ctx context.Context, ac *AnalysisContext) error {
		ac.Model.AddIssue(model.NewIssue("history", model.IssueOther, model.SeverityInfo, "f.go", 1, "ok"))
		return nil
	}})

	p := policyWith("structure", "complexity", "history")
	ac := &AnalysisContext{Policy: p, Model: model.NewBuilder("snap")}
	stages, err := r.Stages(p)
	if err != nil {
		t.Fatal(err)
	}
	RunStages(context.Background(), stages, ac)

	if _, failed := ac.Model.FailedAnalyzers["structure"]; !failed {
		t.Error("expected structure to be marked failed")
	}
	if _, failed := ac.Model.FailedAnalyzers["complexity"]; !failed {
		t.Error("expected complexity to be marked DependencyUnavailable")
	}
	if len(ac.Model.Issues()) != 1 {
		t.Errorf("expected history's issue to survive containment, got %d issues", len(ac.Model.Issues()))
	}
}

// TestRunStagesNeverInvokesBeforeDependencies: an analyzer only starts once
// every declared dependency has finished.
func TestRunStagesNeverInvokesBeforeDependencies(t *testing.T) {
	var mu sync.Mutex
	finished := make(map[string]bool)

	record := func(name string, deps ...string) *fakeAnalyzer {
		return &fakeAnalyzer{name: name, deps: deps, run: func(ctx context.Context, ac *AnalysisContext) error {
			mu.Lock()
			defer mu.Unlock()
			for _, dep := range deps {
				if !finished[dep] {
					t.Errorf("%s started before dependency %s finished", name, dep)
				}
			}
			finished[name] = true
			return nil
		}}
	}

	r := NewRegistry()
	r.Register(record("structure"))
	r.Register(record("history"))
	r.Register(record("complexity", "structure"))
	r.Register(record("hotspots", "complexity", "history"))

	p := policyWith("structure", "history", "complexity", "hotspots")
	ac := &AnalysisContext{Policy: p, Model: model.NewBuilder("snap")}
	stages, err := r.Stages(p)
	if err != nil {
		t.Fatal(err)
	}
	RunStages(context.Background(), stages, ac)

	for _, name := range []string{"structure", "history", "complexity", "hotspots"} {
		if !finished[name] {
			t.Errorf("%s never ran", name)
		}
	}
}

var assertErr = errTest("boom")

type errTest string

func (e errTest) Error() string { return string(e) }
