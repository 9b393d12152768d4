// Command multipoly is the command-line front end to the Multipoly knowledge
// kernel: pattern queries, runtime knowledge, and tutor reports.
package main

import (
	"context"
	"fmt"
	"os"

	"multipoly/internal/config"
	"multipoly/internal/core"
	"multipoly/internal/logging"
	"multipoly/internal/tutor"

	"github.com/spf13/cobra"
)

// app carries the global flags and the kernel shared by every subcommand.
type app struct {
	// Global flags
	configPath string
	backend    string
	programDir string
	verbose    bool
	watch      bool
	pretty     bool

	cfg     *config.Config
	kernel  *core.Kernel
	tutor   *tutor.Tutor
	watcher *core.ProgramWatcher
}

// rootCmd builds the command tree. The caller owns shutdown, which must run
// after Execute whether or not boot or the command failed.
func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "multipoly",
		Short: "Multipoly knowledge kernel and game tutor",
		Long: `multipoly answers questions about the Multipoly board game from a
subject-predicate-object knowledge base.

Facts are loaded from the embedded seed program and any programs in the
program directory matching kb.program_pattern (default *.kb). Programs use
one record per line:

  (predicate subject object)

Quote values that contain spaces. Lines starting with ; or // are comments.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.boot,
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "multipoly.yaml", "Config file")
	rootCmd.PersistentFlags().StringVarP(&a.backend, "backend", "b", "", "Knowledge backend: auto, mangle, scan, off (overrides config)")
	rootCmd.PersistentFlags().StringVar(&a.programDir, "program-dir", "", "Directory of extra programs (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&a.watch, "watch", false, "Load new programs dropped into the program directory while running")
	rootCmd.PersistentFlags().BoolVar(&a.pretty, "pretty", false, "Render reports as styled terminal markdown")

	rootCmd.AddCommand(
		a.queryCmd(),
		a.loadCmd(),
		a.addCmd(),
		a.statsCmd(),
		a.relationCmd(),
		a.mechanicCmd(),
		a.purchaseCmd(),
		a.bestMoveCmd(),
		a.recommendCmd(),
		a.adviseCmd(),
		a.fingerprintCmd(),
		a.watchCmd(),
	)
	return rootCmd
}

// boot loads config, initializes logging, and builds the kernel.
func (a *app) boot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.KB.Backend = a.backend
	}
	if a.programDir != "" {
		cfg.KB.ProgramDir = a.programDir
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg

	if err := logging.Initialize(cfg.Logging); err != nil {
		return err
	}

	a.kernel, err = core.NewKernel(cfg)
	if err != nil {
		return fmt.Errorf("failed to start kernel: %w", err)
	}
	a.tutor = tutor.New(a.kernel)

	if a.watch {
		if cfg.KB.ProgramDir == "" {
			return fmt.Errorf("--watch requires a program directory (--program-dir or kb.program_dir)")
		}
		a.watcher, err = core.NewProgramWatcher(cfg.KB.ProgramDir, a.kernel)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := a.watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
	}
	return nil
}

// shutdown stops the watcher and closes the kernel. Safe to call more than
// once and after a failed boot.
func (a *app) shutdown() {
	if a.watcher != nil {
		a.watcher.Stop()
		a.watcher = nil
	}
	if a.kernel != nil {
		if err := a.kernel.Close(); err != nil {
			logging.KernelWarn("close failed: %v", err)
		}
		a.kernel = nil
	}
	_ = logging.Sync()
}

// executeCmd runs cmd, a tree built by rootCmd, and always shuts down
// afterwards.
func (a *app) executeCmd(cmd *cobra.Command) error {
	defer a.shutdown()
	return cmd.Execute()
}

func main() {
	a := &app{}
	if err := a.executeCmd(a.rootCmd()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
