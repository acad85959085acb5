package registry

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aperturehq/aperture/internal/apperrors"
	"github.com/aperturehq/aperture/internal/logging"
)

// RunStages executes stages in order; within a stage every analyzer runs
// concurrently via errgroup.Group, at most GOMAXPROCS at a time. An analyzer failure is
// contained: it is recorded on ac.Model and does not abort sibling analyzers
// in the same stage, nor analyzers in later stages that do not depend on it.
// Every analyzer that (transitively) depends on a failed one is skipped and
// marked DependencyUnavailable without being invoked.
func RunStages(ctx context.Context, stages [][]Analyzer, ac *AnalysisContext) {
	log := logging.Get(logging.CategoryScheduler)
	unavailable := make(map[string]bool)
	var mu sync.Mutex // guards unavailable and ac.Model's shared maps across the stage's goroutines

	for stageIdx, stage := range stages {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		runnable := make([]Analyzer, 0, len(stage))

		for _, a := range stage {
			blocked := false
			for _, dep := range a.DependsOn() {
				if unavailable[dep] {
					blocked = true
					break
				}
			}
			if blocked {
				mu.Lock()
				ac.Model.MarkFailed(a.Name(), apperrors.ErrDependencyUnavailable.Error())
				unavailable[a.Name()] = true
				mu.Unlock()
				log.Warn("analyzer %s skipped: %v", a.Name(), apperrors.ErrDependencyUnavailable)
				continue
			}
			runnable = append(runnable, a)
		}

		for _, a := range runnable {
			a := a
			g.Go(func() error {
				timer := logging.StartTimer(logging.CategoryScheduler, a.Name())
				defer timer.StopWithInfo()

				runCtx := gctx
				var cancel context.CancelFunc
				timeout := ac.Policy.AnalyzerTimeout(a.Name())
				if timeout > 0 {
					runCtx, cancel = context.WithTimeout(gctx, timeout)
					defer cancel()
				}

				err := runAnalyzer(runCtx, a, ac)
				if err != nil {
					reason := err.Error()
					if runCtx.Err() != nil {
						reason = fmt.Sprintf("%v: %v", apperrors.ErrAnalyzerTimeout, err)
					}
					mu.Lock()
					ac.Model.MarkFailed(a.Name(), reason)
					unavailable[a.Name()] = true
					mu.Unlock()
					log.Warn("analyzer %s failed (contained): %v", a.Name(), err)
					return nil // contained: do not abort the stage's errgroup
				}
				return nil
			})
		}

		_ = g.Wait()
		log.Info("stage %d complete: %d analyzers ran", stageIdx, len(runnable))
	}
}

// runAnalyzer recovers a panicking analyzer into a contained
// ErrAnalyzerFailed rather than crashing the pipeline.
func runAnalyzer(ctx context.Context, a Analyzer, ac *AnalysisContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", apperrors.ErrAnalyzerFailed, a.Name(), r)
		}
	}()
	return a.Run(ctx, ac)
}
