package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fieldbook/internal/config"
	"fieldbook/internal/store"
)

func newOutingsCommand(ctx *commandContext) *cobra.Command {
	outingsCmd := &cobra.Command{
		Use:   "outings",
		Short: "Browse and edit recorded outings",
	}

	outingsCmd.AddCommand(newOutingsListCommand(ctx))
	outingsCmd.AddCommand(newOutingsShowCommand(ctx))
	outingsCmd.AddCommand(newOutingsEditCommand(ctx))

	return outingsCmd
}

func newOutingsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List outings in chronological order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				all, err := st.ListOutings(cmd.Context())
				if err != nil {
					return err
				}
				if len(all) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No outings recorded yet")
					return nil
				}

				rows := make([][]string, 0, len(all))
				for _, outing := range all {
					observations, err := st.ObservationsForOuting(cmd.Context(), outing.ID)
					if err != nil {
						return err
					}
					rows = append(rows, []string{
						outing.ID[:8],
						formatWindow(outing.StartTime, outing.EndTime),
						orDash(outing.DisplayName()),
						strconv.Itoa(len(observations)),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "When", "Where", "Observations"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newOutingsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <outing-id>",
		Short: "Show an outing and its observations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				outing, err := resolveOutingArg(cmd, st, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Outing %s\n", outing.ID)
				fmt.Fprintf(out, "  When:  %s\n", formatWindow(outing.StartTime, outing.EndTime))
				fmt.Fprintf(out, "  Where: %s\n", orDash(outing.DisplayName()))
				if outing.Location != nil {
					fmt.Fprintf(out, "  GPS:   %.4f, %.4f\n", outing.Location.Lat, outing.Location.Lon)
				}
				if outing.Notes != "" {
					fmt.Fprintf(out, "  Notes: %s\n", outing.Notes)
				}

				observations, err := st.ObservationsForOuting(cmd.Context(), outing.ID)
				if err != nil {
					return err
				}
				if len(observations) == 0 {
					fmt.Fprintln(out, "No observations recorded")
					return nil
				}
				rows := make([][]string, 0, len(observations))
				for _, obs := range observations {
					rows = append(rows, []string{
						obs.SpeciesName,
						strconv.Itoa(obs.Count),
						string(obs.Certainty),
						truncate(orDash(obs.Notes), 40),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Species", "Count", "Certainty", "Notes"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newOutingsEditCommand(ctx *commandContext) *cobra.Command {
	var name string
	var notes string

	cmd := &cobra.Command{
		Use:   "edit <outing-id>",
		Short: "Edit an outing's display name and notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("name") && !cmd.Flags().Changed("notes") {
				return fmt.Errorf("nothing to change; pass --name and/or --notes")
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				outing, err := resolveOutingArg(cmd, st, args[0])
				if err != nil {
					return err
				}

				newName := outing.EditableLocationName
				if cmd.Flags().Changed("name") {
					newName = name
				}
				newNotes := outing.Notes
				if cmd.Flags().Changed("notes") {
					newNotes = notes
				}
				if err := st.UpdateOutingDetails(cmd.Context(), outing.ID, newName, newNotes); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated outing %s\n", outing.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name for the outing location")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form outing notes")
	return cmd
}

// resolveOutingArg accepts a full outing id or an unambiguous prefix, as
// printed by `outings list`.
func resolveOutingArg(cmd *cobra.Command, st *store.Store, arg string) (*store.Outing, error) {
	outing, err := st.GetOuting(cmd.Context(), arg)
	if err != nil {
		return nil, err
	}
	if outing != nil {
		return outing, nil
	}

	all, err := st.ListOutings(cmd.Context())
	if err != nil {
		return nil, err
	}
	var match *store.Outing
	for _, candidate := range all {
		if len(arg) >= 4 && len(candidate.ID) >= len(arg) && candidate.ID[:len(arg)] == arg {
			if match != nil {
				return nil, fmt.Errorf("outing id prefix %q is ambiguous", arg)
			}
			match = candidate
		}
	}
	if match == nil {
		return nil, fmt.Errorf("outing %q not found", arg)
	}
	return match, nil
}
