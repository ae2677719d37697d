package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/segpool/internal/trace"
)

var genCfg = trace.DefaultGenConfig()

func init() {
	cmd := newGenCmd()
	cmd.Flags().IntVar(&genCfg.Events, "events", genCfg.Events, "Number of allocate/free events")
	cmd.Flags().Int64Var(&genCfg.Seed, "seed", genCfg.Seed, "Random seed")
	cmd.Flags().IntVar(&genCfg.MaxSize, "max-size", genCfg.MaxSize, "Largest allocation size in bytes")
	cmd.Flags().IntVar(&genCfg.Live, "live", genCfg.Live, "Number of live allocations to hover around")
	cmd.Flags().BoolVar(&genCfg.Drain, "drain", genCfg.Drain, "Free every remaining allocation at the end")
	rootCmd.AddCommand(cmd)
}

func newGenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen <out>",
		Short: "Write a synthetic allocation trace",
		Long: `The gen command writes a reproducible synthetic trace. Sizes are
log-uniform up to --max-size and the number of live allocations hovers
around --live. A .zst or .lz4 suffix compresses the output.

Example:
  segpool gen workload.trace
  segpool gen workload.trace.zst --events 1000000 --seed 7 --max-size 4096`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(args)
		},
	}
	return cmd
}

type genResult struct {
	Path        string `json:"path"`
	Compression string `json:"compression"`
	Events      int    `json:"events"`
	Seed        int64  `json:"seed"`
}

func runGen(args []string) error {
	path := args[0]

	if err := genCfg.Validate(); err != nil {
		return err
	}

	printVerbose("Writing trace: %s\n", path)

	w, err := trace.CreateFS(traceFS, path)
	if err != nil {
		return err
	}
	header := fmt.Sprintf("segpool trace: events=%d seed=%d max-size=%d live=%d",
		genCfg.Events, genCfg.Seed, genCfg.MaxSize, genCfg.Live)

	err = w.Comment(header)
	if err == nil {
		err = trace.GenerateTo(w, genCfg)
	}
	err = errors.Join(err, w.Close())
	if err != nil {
		// Do not leave a truncated trace behind.
		_ = traceFS.Remove(path)
		return fmt.Errorf("failed to write trace: %w", err)
	}

	res := genResult{
		Path:        path,
		Compression: trace.CompressionFromPath(path).String(),
		Events:      w.Events(),
		Seed:        genCfg.Seed,
	}
	if jsonOut {
		return printJSON(res)
	}

	printInfo("Wrote %d events to %s (%s)\n", res.Events, res.Path, res.Compression)
	return nil
}
