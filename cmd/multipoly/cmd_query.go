package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"multipoly/internal/kb"
	"multipoly/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func (a *app) queryCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "query [pattern]",
		Short: "Match a pattern against the knowledge base",
		Long: `Matches a pattern written like a program record. Slots starting with $
are variables; every other slot must match exactly.

Examples:
  multipoly query '(hasToken Red_Fort $t)'
  multipoly query '(hasToken $place token_red)'
  multipoly query '(riskLevel $place medium)'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bindings, err := kb.QueryString(a.kernel.Store(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(bindings)
			}
			if len(bindings) == 0 {
				fmt.Fprintln(out, "No matches")
				return nil
			}
			for _, b := range bindings {
				fmt.Fprintln(out, formatBinding(b))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print bindings as JSON")
	return cmd
}

// formatBinding renders a binding as "$a=x $b=y" in variable order; an empty
// binding (all-literal pattern) prints as "yes".
func formatBinding(b kb.Binding) string {
	if len(b) == 0 {
		return "yes"
	}
	vars := make([]string, 0, len(b))
	for v := range b {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	parts := make([]string, 0, len(vars))
	for _, v := range vars {
		parts = append(parts, v+"="+b[v])
	}
	return strings.Join(parts, " ")
}

func (a *app) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load [file...]",
		Short: "Load program files into the knowledge base",
		Long: `Loads .kb program files. Malformed lines are skipped. A file is loaded at
most once per process.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, path := range args {
				n, loaded, err := a.kernel.LoadFile(path)
				if err != nil {
					return err
				}
				if !loaded {
					fmt.Fprintf(out, "%s: already loaded\n", path)
					continue
				}
				fmt.Fprintf(out, "Loaded %d triples from %s\n", n, path)
			}
			return nil
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [relation] [subject] [value]",
		Short: "Add a fact at runtime",
		Long: `Adds (relation subject value) to the knowledge base. Any relation name is
accepted.

Example:
  multipoly add riskLevel Red_Fort very_low`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.tutor.AddDynamicKnowledge(args[0], args[1], args[2]))
			return nil
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	var withMetrics bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderStats(a.kernel.Store().Stats(), a.kernel.LoadedFiles()))
			if !withMetrics {
				return nil
			}
			samples, err := metrics.Snapshot(prometheus.DefaultGatherer)
			if err != nil {
				return fmt.Errorf("failed to gather metrics: %w", err)
			}
			fmt.Fprintln(out, renderMetrics(samples))
			return nil
		},
	}
	cmd.Flags().BoolVar(&withMetrics, "metrics", false, "Also print the process metrics")
	return cmd
}
