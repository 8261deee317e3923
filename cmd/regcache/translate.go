package main

import (
	"fmt"
	"io"

	"github.com/colorfulnotion/regcache/jit"
	"github.com/colorfulnotion/regcache/pvm/program"
	"github.com/colorfulnotion/regcache/regcache"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newTranslateCmd() *cobra.Command {
	var (
		pf      profileFlags
		preload bool
		quiet   bool
	)
	cmd := &cobra.Command{
		Use:   "translate <program>",
		Short: "Translate a PVM program and print the emitted x86-64 code",
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
			ps, err := p.Analyze()
			if err != nil {
				return err
			}
			printProgramStats(cmd.OutOrStdout(), ps)
			tr, err := jit.NewTranslator(prof)
			if err != nil {
				return err
			}
			tr.SetPreload(preload)
			blocks, err := tr.Translate(p)
			printBlocks(cmd.OutOrStdout(), blocks, quiet)
			return err
		},
	}
	pf.register(cmd)
	cmd.Flags().BoolVar(&preload, "preload", false, "Load registers read before written at block entry")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only statistics")
	return cmd
}

func printBlocks(w io.Writer, blocks []*jit.Block, quiet bool) {
	header := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)
	var total regcache.Stats
	var code, modeled int
	for _, b := range blocks {
		total.Add(b.Stats)
		code += len(b.Code)
		modeled += b.Modeled
		if quiet {
			continue
		}
		header.Fprintf(w, "block %#x", b.PC)
		dim.Fprintf(w, "  %d insts, %d modeled, %d bytes\n", b.Instructions, b.Modeled, len(b.Code))
		fmt.Fprint(w, b.Disassemble())
		fmt.Fprintln(w, statsLine(b.Stats))
	}
	header.Fprintln(w, "total")
	fmt.Fprintf(w, "blocks=%d bytes=%d modeled=%d\n", len(blocks), code, modeled)
	fmt.Fprintln(w, statsLine(total))
}

func printProgramStats(w io.Writer, ps *program.ProgramStats) {
	fmt.Fprintf(w, "program: %d instructions in %d blocks, longest %d\n", ps.InstructionCount, ps.BasicBlockCount, ps.MaxBlockLength)
	fmt.Fprint(w, "reads/writes:")
	for r := 0; r < program.NumRegisters; r++ {
		fmt.Fprintf(w, " r%d=%d/%d", r, ps.RegisterReads[r], ps.RegisterWrites[r])
	}
	fmt.Fprintln(w)
}

func statsLine(s regcache.Stats) string {
	traffic := color.New(color.FgYellow).Sprintf("loads=%d stores=%d", s.Loads, s.Stores)
	return fmt.Sprintf("%s evictions=%d binds=%d scratches=%d", traffic, s.Evictions, s.Binds, s.Scratches)
}
