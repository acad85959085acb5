package analyzers

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aperturehq/aperture/internal/model"
	"github.com/aperturehq/aperture/internal/registry"
)

// ciConfigPatterns are paths whose presence is treated as evidence of a CI
// pipeline, matching the conventions of the most common Go CI providers.
var ciConfigPatterns = []string{
	".github/workflows/", ".gitlab-ci.yml", ".circleci/config.yml", "Jenkinsfile", ".drone.yml",
}

// junitTestSuites is the minimal JUnit XML shape needed for a pass-rate
// summary; most CI tooling in the Go ecosystem (gotestsum, go-junit-report)
// emits this format.
type junitTestSuites struct {
	XMLName xml.Name        `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Tests    int `xml:"tests,attr"`
	Failures int `xml:"failures,attr"`
	Errors   int `xml:"errors,attr"`
}

// CIQMAnalyzer checks for CI pipeline presence and, when a JUnit-style test
// report is present in the tree, folds its pass rate into a diagnostic
// Issue. Absence of CI configuration is itself a finding.
type CIQMAnalyzer struct{}

func (CIQMAnalyzer) Name() string        { return "ciqm" }
func (CIQMAnalyzer) DependsOn() []string { return []string{"structure"} }

func (CIQMAnalyzer) Run(ctx context.Context, ac *registry.AnalysisContext) error {
	hasCI := false
	for _, f := range ac.Snapshot.Files {
		for _, pattern := range ciConfigPatterns {
			if strings.Contains(filepath.ToSlash(f.Path), pattern) {
				hasCI = true
				break
			}
		}
		if hasCI {
			break
		}
	}

	if !hasCI {
		ac.Model.AddIssue(model.NewIssue("ciqm", model.IssueOther, model.SeverityMajor,
			"", 0, "no continuous-integration configuration detected"))
	}

	for _, f := range ac.Snapshot.Files {
		base := strings.ToLower(filepath.Base(f.Path))
		if !strings.HasSuffix(base, ".xml") || !strings.Contains(base, "junit") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(ac.Snapshot.Root, f.Path))
		if err != nil {
			continue
		}
		var report junitTestSuites
		if err := xml.Unmarshal(content, &report); err != nil {
			continue
		}
		total, failed := 0, 0
		for _, s := range report.Suites {
			total += s.Tests
			failed += s.Failures + s.Errors
		}
		if total == 0 {
			continue
		}
		sev := model.SeverityInfo
		if failed > 0 {
			sev = model.SeverityMajor
		}
		ac.Model.AddIssue(model.NewIssue("ciqm", model.IssueOther, sev, f.Path, 0,
			fmt.Sprintf("test report: %d/%d passed", total-failed, total)))
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
