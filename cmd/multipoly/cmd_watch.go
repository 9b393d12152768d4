package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"multipoly/internal/core"

	"github.com/spf13/cobra"
)

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Load programs dropped into the program directory until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.KB.ProgramDir
			if dir == "" {
				return fmt.Errorf("watch requires a program directory (--program-dir or kb.program_dir)")
			}

			base := cmd.Context()
			if base == nil {
				base = context.Background()
			}
			ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
			defer stop()

			watcher := a.watcher
			if watcher == nil {
				var err error
				watcher, err = core.NewProgramWatcher(dir, a.kernel)
				if err != nil {
					return err
				}
				if err := watcher.Start(ctx); err != nil {
					return err
				}
				defer watcher.Stop()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching %s for new programs (backend %s). Press Ctrl+C to stop.\n", dir, a.kernel.Backend())
			<-ctx.Done()

			stats := watcher.GetStats()
			fmt.Fprintf(out, "Loaded %d programs (%d triples); %d edits ignored, %d errors\n",
				stats.ProgramsLoaded, stats.TriplesLoaded, stats.Ignored, stats.Errors)
			return nil
		},
	}
}
