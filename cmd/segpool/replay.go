package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/hupe1980/segpool"
	"github.com/hupe1980/segpool/internal/trace"
)

var (
	replayLookup   string
	replaySource   string
	replayCheck    bool
	replayLimit    int64
	replayVerify   bool
	replayKeepLive bool
	replayClasses  bool
	replayBlocks   bool
)

func init() {
	cmd := newReplayCmd()
	cmd.Flags().StringVar(&replayLookup, "lookup", "indexed", "Class lookup strategy (indexed, linear)")
	cmd.Flags().StringVar(&replaySource, "source", "heap", "Block source (heap, mmap)")
	cmd.Flags().BoolVar(&replayCheck, "check", false, "Reject mismatched and double frees")
	cmd.Flags().Int64Var(&replayLimit, "limit", 0, "Memory limit in bytes (0 = unlimited)")
	cmd.Flags().BoolVar(&replayVerify, "verify", true, "Stamp allocations and detect overlaps")
	cmd.Flags().BoolVar(&replayKeepLive, "keep-live", false, "Do not free allocations left live by the trace")
	cmd.Flags().BoolVar(&replayClasses, "classes", false, "Include per-class statistics")
	cmd.Flags().BoolVar(&replayBlocks, "blocks", false, "List reserved blocks, most recent first")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace>",
		Short: "Replay an allocation trace and report pool usage",
		Long: `The replay command applies every event of a trace to a fresh pool and
reports the memory the pool reserved. Compression is chosen from the file
extension.

Example:
  segpool replay workload.trace
  segpool replay workload.trace.zst --lookup linear --check
  segpool replay workload.trace --limit 1048576 --json
  segpool replay workload.trace --blocks`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runReplay(ctx, args)
		},
	}
	return cmd
}

type replayResult struct {
	Trace   string               `json:"trace"`
	Lookup  string               `json:"lookup"`
	Replay  trace.Report         `json:"replay"`
	Pool    segpool.Stats        `json:"pool"`
	Classes []segpool.ClassStats `json:"classes,omitempty"`
	Blocks  []segpool.BlockStats `json:"blocks,omitempty"`
}

func runReplay(ctx context.Context, args []string) error {
	path := args[0]

	lookup, err := segpool.ParseLookup(replayLookup)
	if err != nil {
		return err
	}
	source, err := segpool.ParseSource(replaySource)
	if err != nil {
		return err
	}

	opts := []segpool.Option{
		segpool.WithLookup(lookup),
		segpool.WithSource(source),
		segpool.WithMemoryLimit(replayLimit),
		segpool.WithLogLevel(logLevel()),
	}
	if replayCheck {
		opts = append(opts, segpool.WithContractChecks())
	}

	pool, err := segpool.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	defer pool.Close()

	r, err := trace.OpenFS(traceFS, path)
	if err != nil {
		return err
	}
	defer r.Close()

	printVerbose("Replaying %s (lookup=%s, source=%s)\n", path, lookup, source)

	if ctx == nil {
		ctx = context.Background()
	}
	rep, err := trace.Replay(ctx, r, pool, trace.ReplayOptions{
		Verify:   replayVerify,
		KeepLive: replayKeepLive,
	})
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	res := replayResult{
		Trace:  path,
		Lookup: lookup.String(),
		Replay: rep,
		Pool:   pool.Stats(),
	}
	if replayClasses {
		res.Classes = pool.SizeClasses()
	}
	if replayBlocks {
		res.Blocks = pool.Blocks()
	}

	if jsonOut {
		return printJSON(res)
	}

	s := res.Pool
	printInfo("\nReplay of %s:\n", path)
	printInfo("  Events: %d (%d allocations, %d frees)\n", rep.Events, rep.Allocations, rep.Frees)
	printInfo("  Requested: %s\n", formatBytes(uint64(rep.RequestedBytes)))
	printInfo("  Peak live: %d allocations, %s\n", rep.PeakLive, formatBytes(uint64(rep.PeakLiveBytes)))
	printInfo("  Duration: %s\n", rep.Duration)
	printInfo("\nPool (%s, %s lookup):\n", s.Source, lookup)
	printInfo("  Size classes: %d (largest %d bytes)\n", s.Classes, s.MaxClass)
	printInfo("  Blocks: %d\n", s.Blocks)
	printInfo("  Reserved: %s\n", formatBytes(s.BytesReserved))
	printInfo("  Peak budget: %s\n", formatBytes(uint64(s.PeakBytes)))
	printInfo("  Refills: %d\n", s.Refills)
	if rep.Verified {
		printInfo("  ✓ No overlapping allocations\n")
	}
	if rep.Leaked > 0 {
		printInfo("  %d allocations left live\n", rep.Leaked)
	}

	for _, c := range res.Classes {
		if c.Blocks == 0 {
			continue
		}
		printInfo("  class %4d: batch %2d, blocks %d, cells %d, free %d\n", c.Size, c.Batch, c.Blocks, c.Cells, c.Free)
	}
	for _, b := range res.Blocks {
		printInfo("  block %6d: %s\n", b.Seq, formatBytes(uint64(b.Payload)))
	}
	return nil
}
