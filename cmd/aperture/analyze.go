package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aperturehq/aperture/internal/cache"
	"github.com/aperturehq/aperture/internal/config"
	"github.com/aperturehq/aperture/internal/model"
	"github.com/aperturehq/aperture/internal/pipeline"
	"github.com/aperturehq/aperture/internal/snapshot"
)

type analyzeFlags struct {
	ref      string
	out      string
	maxFiles int
}

func newAnalyzeCmd() *cobra.Command {
	f := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Run the analyzer family over a repository and print its quality report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runAnalyze(path, f)
		},
	}
	cmd.Flags().StringVar(&f.ref, "ref", ".", "git ref to snapshot (\".\" for the working copy)")
	cmd.Flags().StringVar(&f.out, "out", "", "output file path (default: stdout)")
	cmd.Flags().IntVar(&f.maxFiles, "max-files", 0, "override the policy's max_files bound (0: use policy default)")
	return cmd
}

func runAnalyze(path string, f *analyzeFlags) error {
	policy, err := loadPolicy()
	if err != nil {
		return exitError(exitInfra, "load policy: %v", err)
	}
	if f.maxFiles > 0 {
		policy.MaxFiles = f.maxFiles
	}

	snap, c, err := loadSnapshotAndCache(path, f.ref, policy)
	if err != nil {
		return exitError(exitInfra, "%v", err)
	}
	if c != nil {
		defer c.Close()
	}

	p := pipeline.New(c)
	result, err := p.Analyze(context.Background(), snap, policy)
	if err != nil {
		return exitError(exitInfra, "analyze: %v", err)
	}

	return writeReport(f.out, newAnalyzeReport(result))
}

type analyzeReport struct {
	SnapshotID string             `json:"snapshot_id"`
	Files      int                `json:"files"`
	Modules    int                `json:"modules"`
	Issues     []model.Issue      `json:"issues"`
	Hotspots   []model.Hotspot    `json:"hotspots"`
	Quality    model.QualityReport `json:"quality"`
	Failed     map[string]string  `json:"failed_analyzers,omitempty"`
}

func newAnalyzeReport(r *model.ResultModel) analyzeReport {
	return analyzeReport{
		SnapshotID: r.SnapshotID,
		Files:      len(r.Files()),
		Modules:    len(r.Modules()),
		Issues:     r.Issues(),
		Hotspots:   r.Hotspots(),
		Quality:    r.Quality,
		Failed:     r.FailedAnalyzers,
	}
}

func loadPolicy() (*config.Policy, error) {
	if flagPolicy == "" {
		return config.DefaultPolicy(), nil
	}
	return config.Load(flagPolicy)
}

func loadSnapshotAndCache(path, ref string, policy *config.Policy) (*snapshot.Snapshot, *cache.Cache, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve path %s: %w", path, err)
	}

	var c *cache.Cache
	dir := cacheDirFor(abs)
	if dir != "" {
		c, err = cache.Open(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
	}

	loader := snapshot.NewLoader()
	snap, err := loader.Load(context.Background(), abs, ref, snapshot.LoadOptions{
		ExcludedGlobs: policy.ExcludedGlobs,
		MaxFiles:      policy.MaxFiles,
		PolicyHash:    cache.HashPolicy(policy),
	})
	if err != nil {
		if c != nil {
			c.Close()
		}
		return nil, nil, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, c, nil
}

func cacheDirFor(workspace string) string {
	if flagCacheDir == "-" {
		return ""
	}
	if flagCacheDir != "" {
		return flagCacheDir
	}
	return filepath.Join(workspace, ".aperture", "cache")
}

func writeReport(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return exitError(exitInfra, "encode report: %v", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
