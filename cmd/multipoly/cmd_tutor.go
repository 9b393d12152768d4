package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"multipoly/internal/fingerprint"
	"multipoly/internal/logging"
	"multipoly/internal/metrics"
	"multipoly/internal/store"
	"multipoly/internal/tutor"

	"github.com/spf13/cobra"
)

// relationResult mirrors the knowledge query response of the tutor service.
type relationResult struct {
	Relation string   `json:"relation"`
	Subject  string   `json:"subject"`
	Results  []string `json:"results"`
	Count    int      `json:"count"`
}

func (a *app) relationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relation [kind] [subject]",
		Short: "Look up a relation: " + strings.Join(tutor.RelationKinds(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := a.tutor.QueryRelation(args[0], args[1])
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(relationResult{
				Relation: args[0],
				Subject:  args[1],
				Results:  results,
				Count:    len(results),
			})
		},
	}
}

func (a *app) mechanicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mechanic [name]",
		Short: "Look up a game mechanic: " + strings.Join(tutor.Mechanics(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			values := a.tutor.QueryMechanic(args[0])
			if len(values) == 0 {
				fmt.Fprintf(out, "No mechanic named %q\n", args[0])
				return nil
			}
			for _, v := range values {
				fmt.Fprintln(out, v)
			}
			return nil
		},
	}
}

func (a *app) purchaseCmd() *cobra.Command {
	var tokens map[string]int
	cmd := &cobra.Command{
		Use:   "purchase [property]",
		Short: "Check whether your tokens can buy a property",
		Long: `Example:
  multipoly purchase Red_Fort --tokens token_red=2,token_blue=1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(cmd, a.tutor.AnalyzePurchaseOpportunity(args[0], tokens))
		},
	}
	cmd.Flags().StringToIntVar(&tokens, "tokens", nil, "Token holdings, e.g. token_red=2")
	return cmd
}

func (a *app) bestMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "best-move [position]",
		Short: "Advise on the property at a board position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(cmd, a.tutor.GetBestMoveAdvice(args[0]))
		},
	}
}

// stateFlags binds the game-state flags shared by recommend and advise.
func stateFlags(cmd *cobra.Command, state *tutor.GameState) {
	cmd.Flags().StringVar(&state.Phase, "phase", tutor.DefaultPhase, "Game phase: early_game, mid_game, late_game")
	cmd.Flags().StringVar(&state.Position, "position", "", "Current board position (start or a property)")
	cmd.Flags().StringSliceVar(&state.OwnedEntities, "owned", nil, "Owned properties")
	cmd.Flags().StringToIntVar(&state.Tokens, "tokens", nil, "Token holdings, e.g. token_red=2")
}

func (a *app) recommendCmd() *cobra.Command {
	var state tutor.GameState
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Strategic report for a game state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(cmd, a.tutor.GetStrategicRecommendations(state))
		},
	}
	stateFlags(cmd, &state)
	return cmd
}

func (a *app) adviseCmd() *cobra.Command {
	var (
		state    tutor.GameState
		useCache bool
	)
	cmd := &cobra.Command{
		Use:   "advise",
		Short: "Full tutor answer for a game state",
		Long: `Combines the strategic report, a purchase analysis when standing on a
property with tokens in hand, and the airdrop rule when on start.

With --cache, answers are stored in the advice cache keyed by the state's
fingerprint and reused until they expire.

Example:
  multipoly advise --position Red_Fort --phase mid_game --owned JNU --tokens token_red=1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !useCache {
				advice, ok := a.tutor.Advise(state)
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "No position or knowledge backend; nothing to advise")
					return nil
				}
				return a.print(cmd, advice)
			}
			return a.adviseCached(cmd, state)
		},
	}
	stateFlags(cmd, &state)
	cmd.Flags().BoolVar(&useCache, "cache", false, "Reuse and store answers in the advice cache")
	return cmd
}

func (a *app) adviseCached(cmd *cobra.Command, state tutor.GameState) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fp, err := fingerprint.Of(state)
	if err != nil {
		return err
	}

	cache, err := store.OpenAdviceCache(a.cfg.Cache.DatabasePath, a.cfg.GetCacheTTL())
	if err != nil {
		return err
	}
	defer cache.Close()

	cached, hit, err := cache.Get(ctx, fp)
	if err != nil {
		logging.Get(logging.CategoryCache).Warn("cache lookup failed: %v", err)
	}
	metrics.RecordCacheLookup(hit)
	if hit {
		return a.print(cmd, cached.Text)
	}

	advice, ok := a.tutor.Advise(state)
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "No position or knowledge backend; nothing to advise")
		return nil
	}
	if err := cache.Upsert(ctx, fp, advice, a.tutor.Backend()); err != nil {
		logging.Get(logging.CategoryCache).Warn("cache store failed: %v", err)
	}
	return a.print(cmd, advice)
}

// print writes a report, rendered through glamour when --pretty is set.
func (a *app) print(cmd *cobra.Command, report string) error {
	out := cmd.OutOrStdout()
	if !a.pretty {
		_, err := fmt.Fprintln(out, report)
		return err
	}
	rendered, err := renderReport(report)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}
