package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hupe1980/segpool"
)

func init() {
	rootCmd.AddCommand(newClassesCmd())
}

func newClassesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes <size>...",
		Short: "Show the size class and refill batch for request sizes",
		Long: `The classes command prints, for each request size, the class it is
served from, how many cells one refill carves for that class and the bytes
lost to rounding.

Example:
  segpool classes 13 128 129
  segpool classes 1 2 3 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses(args)
		},
	}
	return cmd
}

type classInfo struct {
	Request int `json:"request"`
	Class   int `json:"class"`
	Batch   int `json:"batch"`
	Waste   int `json:"waste"`
}

func runClasses(args []string) error {
	pool, err := segpool.New()
	if err != nil {
		return err
	}
	defer pool.Close()

	infos := make([]classInfo, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid size %q: must be a positive integer", arg)
		}
		class := pool.ClassFor(n)
		infos = append(infos, classInfo{
			Request: n,
			Class:   class,
			Batch:   pool.Batch(class),
			Waste:   class - n,
		})
	}

	if jsonOut {
		return printJSON(infos)
	}

	for _, info := range infos {
		printInfo("%6d -> class %6d  batch %2d  waste %d\n", info.Request, info.Class, info.Batch, info.Waste)
	}
	return nil
}
