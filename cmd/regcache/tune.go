package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/colorfulnotion/regcache/pvm/program"
	"github.com/colorfulnotion/regcache/storage"
	"github.com/colorfulnotion/regcache/tuning"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newTuneCmd() *cobra.Command {
	var (
		pf      profileFlags
		dbPath  string
		chart   string
		workers int
		top     int
		cached  bool
	)
	cmd := &cobra.Command{
		Use:   "tune <program>",
		Short: "Sweep eviction parameters over a program and rank them by register traffic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prof, err := pf.load()
			if err != nil {
				return err
			}
			p, err := program.Load(args[0])
			if err != nil {
				return err
			}
			ps, err := storage.NewPersistenceStore(dbPath)
			if err != nil {
				return err
			}
			defer ps.Close()
			store := tuning.NewResultStore(ps)
			h := tuning.ProgramHash(p)

			var results []tuning.Result
			if cached {
				results, err = store.List(h)
				if err != nil {
					return err
				}
			}
			if len(results) == 0 {
				results, err = tuning.Sweep(context.Background(), prof, p, tuning.DefaultGrid().Params(), workers)
				if err != nil {
					return err
				}
				if err := store.Save(h, results); err != nil {
					return err
				}
			}

			ranked := tuning.Rank(results)
			w := cmd.OutOrStdout()
			color.New(color.FgCyan, color.Bold).Fprintf(w, "program %s profile %s: %d parameter sets\n", h.Short(), prof.ID, len(ranked))
			best := color.New(color.FgGreen)
			for i, r := range ranked {
				if i >= top {
					break
				}
				line := fmt.Sprintf("%3d  %-28s traffic=%-5d evictions=%-5d bytes=%-6d p50=%.1f p90=%.1f p99=%.1f",
					i+1, r.Label(), r.Totals.Traffic(), r.Totals.Evictions, r.CodeBytes, r.P50, r.P90, r.P99)
				if i == 0 {
					best.Fprintln(w, line)
				} else {
					fmt.Fprintln(w, line)
				}
			}

			if chart == "" {
				return nil
			}
			f, err := os.Create(chart)
			if err != nil {
				return err
			}
			defer f.Close()
			return tuning.RenderChart(f, filepath.Base(args[0]), ranked)
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&dbPath, "db", "", "LevelDB directory for results (in-memory when empty)")
	cmd.Flags().StringVar(&chart, "chart", "", "Write an HTML chart of the best parameter sets to this file")
	cmd.Flags().IntVarP(&workers, "workers", "w", runtime.NumCPU(), "Concurrent translations")
	cmd.Flags().IntVar(&top, "top", 10, "Number of ranked results to print")
	cmd.Flags().BoolVar(&cached, "cached", false, "Reuse results stored for this program when present")
	return cmd
}
