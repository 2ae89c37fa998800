package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fieldbook/internal/taxonomy"
)

func newSpeciesCommand(ctx *commandContext) *cobra.Command {
	speciesCmd := &cobra.Command{
		Use:         "species",
		Short:       "Search the reference taxonomy",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	speciesCmd.AddCommand(newSpeciesSearchCommand())
	speciesCmd.AddCommand(newSpeciesLookupCommand())

	return speciesCmd
}

func newSpeciesSearchCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search species by common or scientific name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := taxonomy.Default()
			if err != nil {
				return err
			}
			results := index.Search(strings.Join(args, " "), limit)
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches")
				return nil
			}
			rows := make([][]string, 0, len(results))
			for _, entry := range results {
				rows = append(rows, []string{entry.Common, entry.Scientific})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Common name", "Scientific name"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum results to show")
	return cmd
}

func newSpeciesLookupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <name>",
		Short: "Resolve a free-text name to its canonical form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := taxonomy.Default()
			if err != nil {
				return err
			}
			raw := strings.Join(args, " ")
			entry, ok := index.FindBestMatch(raw)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%q is not in the reference taxonomy; it would be kept as-is\n", raw)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), entry.Canonical())
			return nil
		},
	}
}
