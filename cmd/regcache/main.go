// Command regcache translates PVM programs through the register cache,
// sweeps eviction parameters and offers an interactive cache console.
package main

import (
	"fmt"
	"os"

	"github.com/colorfulnotion/regcache/config"
	"github.com/colorfulnotion/regcache/log"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
)

type globalFlags struct {
	logLevel string
	modules  string
	record   string
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	rootCmd := &cobra.Command{
		Use:     "regcache",
		Short:   "PVM to x86-64 register cache tools",
		Version: fmt.Sprintf("%s (%s)", Version, Commit),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.InitLogger(g.logLevel)
			log.EnableModules(g.modules)
			if g.record != "" {
				log.RecordLogs()
			}
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if g.record == "" {
				return nil
			}
			data, err := log.GetRecordedLogs()
			if err != nil {
				return err
			}
			return os.WriteFile(g.record, data, 0o644)
		},
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&g.modules, "modules", "", "Comma separated log modules to enable (regcache,evict,jit,tuning or all)")
	rootCmd.PersistentFlags().StringVar(&g.record, "record", "", "Write recorded log records as JSON lines to this file")

	rootCmd.AddCommand(newTranslateCmd(), newTuneCmd(), newConsoleCmd())
	return rootCmd
}

type profileFlags struct {
	profile  string
	hostRegs hostRegList
}

func (p *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.profile, "profile", "p", config.DefaultProfile, fmt.Sprintf("Host profile id %v or JSON file", config.Profiles()))
	cmd.Flags().Var(&p.hostRegs, "host-regs", "Comma separated host allocation order, overriding the profile (e.g. rax,rcx,rdx)")
}

func (p *profileFlags) load() (*config.Profile, error) {
	prof, err := config.ReadProfile(p.profile)
	if err != nil {
		return nil, err
	}
	if len(p.hostRegs) > 0 {
		if err := prof.SetAllocationOrder(p.hostRegs); err != nil {
			return nil, err
		}
	}
	return prof, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
