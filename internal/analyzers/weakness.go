package analyzers

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aperturehq/aperture/internal/model"
	"github.com/aperturehq/aperture/internal/registry"
)

// todoMarkers are the comment prefixes counted as weakness markers, matching
// common conventions across the example pack.
var todoMarkers = []string{"TODO", "FIXME", "HACK", "XXX"}

// WeaknessAnalyzer scans tracked files line-by-line for TODO-style markers,
// recording a per-file count of marked lines and emitting one low-severity
// Issue per line that carries a marker (further markers on the same line are
// not counted separately).
type WeaknessAnalyzer struct{}

func (WeaknessAnalyzer) Name() string        { return "weakness" }
func (WeaknessAnalyzer) DependsOn() []string { return []string{"structure"} }

func (WeaknessAnalyzer) Run(ctx context.Context, ac *registry.AnalysisContext) error {
	for _, f := range ac.Snapshot.Files {
		if _, ok := ac.Model.File(f.Path); !ok {
			continue
		}
		content, err := os.ReadFile(filepath.Join(ac.Snapshot.Root, f.Path))
		if err != nil {
			continue
		}

		count := 0
		scanner := bufio.NewScanner(bytes.NewReader(content))
		line := 0
		for scanner.Scan() {
			line++
			text := scanner.Text()
			for _, marker := range todoMarkers {
				if idx := strings.Index(text, marker); idx >= 0 && looksLikeComment(text, idx) {
					count++
					ac.Model.AddIssue(model.NewIssue("weakness", model.IssueTodoMarker, model.SeverityMinor,
						f.Path, line, fmt.Sprintf("%s marker: %s", marker, strings.TrimSpace(text))))
					break
				}
			}
		}

		ac.Model.MergeFile(f.Path, func(ff *model.FileFacts) {
			ff.TodoMarkerCount = count
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// looksLikeComment is a coarse heuristic: the marker must appear after a
// comment-opening token earlier on the same line.
func looksLikeComment(line string, markerIdx int) bool {
	prefix := line[:markerIdx]
	return strings.Contains(prefix, "//") || strings.Contains(prefix, "#") || strings.Contains(prefix, "/*")
}
