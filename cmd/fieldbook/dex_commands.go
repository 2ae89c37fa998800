package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fieldbook/internal/config"
	"fieldbook/internal/store"
)

func newDexCommand(ctx *commandContext) *cobra.Command {
	dexCmd := &cobra.Command{
		Use:   "dex",
		Short: "Browse the cumulative species ledger",
	}

	dexCmd.AddCommand(newDexListCommand(ctx))
	dexCmd.AddCommand(newDexShowCommand(ctx))

	return dexCmd
}

func newDexListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every species ever recorded",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				entries, err := st.ListDexEntries(cmd.Context())
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Dex is empty; import some sightings first")
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.SpeciesName,
						formatTime(entry.FirstSeen),
						formatTime(entry.LastSeen),
						strconv.Itoa(entry.TotalOutings),
						strconv.Itoa(entry.TotalCount),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Species", "First seen", "Last seen", "Outings", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				))
				fmt.Fprintf(cmd.OutOrStdout(), "%d species\n", len(entries))
				return nil
			})
		},
	}
}

func newDexShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <species>",
		Short: "Show one species' ledger entry and sighting history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				normalizer, err := ctx.newNormalizer()
				if err != nil {
					return err
				}
				name := normalizer.Normalize(strings.Join(args, " "))

				entry, err := st.GetDexEntry(cmd.Context(), name)
				if err != nil {
					return err
				}
				if entry == nil {
					return fmt.Errorf("%q is not in your dex", name)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, entry.SpeciesName)
				fmt.Fprintf(out, "  First seen:    %s\n", formatTime(entry.FirstSeen))
				fmt.Fprintf(out, "  Last seen:     %s\n", formatTime(entry.LastSeen))
				fmt.Fprintf(out, "  Outings:       %d\n", entry.TotalOutings)
				fmt.Fprintf(out, "  Total counted: %d\n", entry.TotalCount)
				if entry.Notes != "" {
					fmt.Fprintf(out, "  Notes:         %s\n", entry.Notes)
				}

				observations, err := st.ObservationsForSpecies(cmd.Context(), entry.SpeciesName)
				if err != nil {
					return err
				}
				if len(observations) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(observations))
				for _, obs := range observations {
					rows = append(rows, []string{
						formatTime(obs.CreatedAt),
						obs.OutingID[:8],
						strconv.Itoa(obs.Count),
						string(obs.Certainty),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Recorded", "Outing", "Count", "Certainty"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}
