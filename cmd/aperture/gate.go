package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aperturehq/aperture/internal/gate"
	"github.com/aperturehq/aperture/internal/pipeline"
)

type gateFlags struct {
	baseRef string
	headRef string
	out     string
}

func newGateCmd() *cobra.Command {
	f := &gateFlags{}
	cmd := &cobra.Command{
		Use:   "gate <base-path> <head-path>",
		Short: "Admit or reject a head snapshot against a base snapshot",
		Long: `gate runs the analyzer family over two working trees and evaluates the
admission predicate (H) AND (P) AND (Q) over their quality reports. Exit code
0 means accepted, 1 means rejected, 2 means an infrastructure failure
prevented evaluation.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGate(args[0], args[1], f)
		},
	}
	cmd.Flags().StringVar(&f.baseRef, "base-ref", ".", "git ref to snapshot for the base path")
	cmd.Flags().StringVar(&f.headRef, "head-ref", ".", "git ref to snapshot for the head path")
	cmd.Flags().StringVar(&f.out, "out", "", "output file path for the verdict (default: stdout)")
	return cmd
}

func runGate(basePath, headPath string, f *gateFlags) error {
	policy, err := loadPolicy()
	if err != nil {
		return exitError(exitInfra, "load policy: %v", err)
	}

	baseSnap, baseCache, err := loadSnapshotAndCache(basePath, f.baseRef, policy)
	if err != nil {
		return exitError(exitInfra, "base: %v", err)
	}
	if baseCache != nil {
		defer baseCache.Close()
	}
	headSnap, headCache, err := loadSnapshotAndCache(headPath, f.headRef, policy)
	if err != nil {
		return exitError(exitInfra, "head: %v", err)
	}
	if headCache != nil {
		defer headCache.Close()
	}

	ctx := context.Background()
	baseResult, err := pipeline.New(baseCache).Analyze(ctx, baseSnap, policy)
	if err != nil {
		return exitError(exitInfra, "analyze base: %v", err)
	}
	headResult, err := pipeline.New(headCache).Analyze(ctx, headSnap, policy)
	if err != nil {
		return exitError(exitInfra, "analyze head: %v", err)
	}

	verdict := gate.NewGate().Admit(baseResult, headResult, policy)
	if err := writeReport(f.out, verdict); err != nil {
		return exitError(exitInfra, "write verdict: %v", err)
	}
	if !verdict.Accepted {
		return exitError(exitRejected, "rejected: %d reason(s), see verdict for detail", len(verdict.Reasons))
	}
	return nil
}
