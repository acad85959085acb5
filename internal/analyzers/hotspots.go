package analyzers

import (
	"context"
	"sort"

	"github.com/aperturehq/aperture/internal/model"
	"github.com/aperturehq/aperture/internal/registry"
)

// HotspotsAnalyzer ranks files by hotness = normalize(complexity) *
// normalize(churn), keeping the top K per policy. Each factor saturates at a
// fixed maximum before the product is taken.
type HotspotsAnalyzer struct{}

func (HotspotsAnalyzer) Name() string        { return "hotspots" }
func (HotspotsAnalyzer) DependsOn() []string { return []string{"complexity", "history"} }

const (
	hotspotMaxComplexity = 200.0
	hotspotMaxChurn      = 500.0
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type scoredFile struct {
	file    model.FileFacts
	hotness float64
}

func (HotspotsAnalyzer) Run(ctx context.Context, ac *registry.AnalysisContext) error {
	files := ac.Model.Files()
	if len(files) == 0 {
		return nil // empty repository: no hotspots, not an error
	}

	all := make([]scoredFile, 0, len(files))
	for _, f := range files {
		nComplexity := clamp01(f.Complexity / hotspotMaxComplexity)
		nChurn := clamp01(float64(f.Churn) / hotspotMaxChurn)
		all = append(all, scoredFile{f, nComplexity * nChurn})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].hotness != all[j].hotness {
			return all[i].hotness > all[j].hotness
		}
		if all[i].file.Churn != all[j].file.Churn {
			return all[i].file.Churn > all[j].file.Churn
		}
		return all[i].file.Path < all[j].file.Path
	})

	topK := ac.Policy.HotspotTopK
	if topK <= 0 || topK > len(all) {
		topK = len(all)
	}
	for i := 0; i < topK; i++ {
		s := all[i]
		if s.hotness <= 0 {
			continue
		}
		ac.Model.AddHotspot(model.Hotspot{File: s.file.Path, Hotness: s.hotness, Churn: s.file.Churn})
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
