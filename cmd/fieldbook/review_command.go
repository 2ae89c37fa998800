package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fieldbook/internal/geo"
	"fieldbook/internal/identify"
	"fieldbook/internal/store"
	"fieldbook/internal/workflow"
)

// runReviewLoop walks the session interactively on stdin: each cluster's
// proposed window is confirmed or edited first, then its photos are
// reviewed one by one. EOF or "q" closes the session, keeping everything
// already recorded.
func runReviewLoop(cmd *cobra.Command, session *workflow.Session) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())

	if session.DuplicateCount() > 0 {
		fmt.Fprintf(out, "Skipped %d duplicate uploads\n", session.DuplicateCount())
	}

	for {
		switch session.Phase() {
		case workflow.PhaseClosed:
			return nil
		case workflow.PhaseComplete:
			summary, err := session.Finish(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(out, summary, false)
			return nil
		case workflow.PhaseClusterReview:
			if err := runClusterPrompt(cmd, scanner, session); err != nil {
				return err
			}
		case workflow.PhaseReviewing:
			if err := runPhotoPrompt(cmd, scanner, session); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// runClusterPrompt shows the pending cluster's proposal and loops until
// the reviewer accepts it, edits it, or quits.
func runClusterPrompt(cmd *cobra.Command, scanner *bufio.Scanner, session *workflow.Session) error {
	out := cmd.OutOrStdout()
	for {
		proposal, ok := session.CurrentCluster()
		if !ok {
			return nil
		}

		fmt.Fprintf(out, "\nOuting %d/%d: %d photos, %s\n",
			proposal.Index+1, proposal.Total, proposal.Items,
			formatWindow(proposal.StartTime, proposal.EndTime))
		if proposal.Centroid != nil {
			fmt.Fprintf(out, "Location: %.5f, %.5f\n", proposal.Centroid.Lat, proposal.Centroid.Lon)
		}
		if proposal.Match != nil {
			fmt.Fprintf(out, "Merges into outing %s (%s)\n",
				proposal.Match.ID[:8], formatWindow(proposal.Match.StartTime, proposal.Match.EndTime))
		} else {
			fmt.Fprintln(out, "Creates a new outing")
		}
		fmt.Fprint(out, "[enter] accept, t <start> <end> edit window, g <lat> <lon> set location, q(uit) > ")

		if !scanner.Scan() {
			if err := closeEarly(cmd, session); err != nil {
				return err
			}
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			return session.ConfirmCluster(cmd.Context())
		}

		switch fields[0] {
		case "q":
			return closeEarly(cmd, session)
		case "t":
			if len(fields) != 3 {
				fmt.Fprintln(out, "usage: t <start> <end> (2026-05-02T08:00 or RFC3339)")
				continue
			}
			start, err := parseWindowTime(fields[1])
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			end, err := parseWindowTime(fields[2])
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			if err := session.EditCluster(workflow.ClusterEdit{StartTime: start, EndTime: end}); err != nil {
				fmt.Fprintln(out, err)
			}
		case "g":
			if len(fields) != 3 {
				fmt.Fprintln(out, "usage: g <lat> <lon>")
				continue
			}
			lat, latErr := strconv.ParseFloat(fields[1], 64)
			lon, lonErr := strconv.ParseFloat(fields[2], 64)
			if latErr != nil || lonErr != nil {
				fmt.Fprintln(out, "latitude and longitude must be decimal degrees")
				continue
			}
			if err := session.EditCluster(workflow.ClusterEdit{Location: &geo.Point{Lat: lat, Lon: lon}}); err != nil {
				fmt.Fprintln(out, err)
			}
		default:
			fmt.Fprintln(out, "press enter to accept, or: t <start> <end>, g <lat> <lon>, q")
		}
	}
}

// runPhotoPrompt reviews one photo of the confirmed cluster, or reconciles
// the cluster once its photos are exhausted.
func runPhotoPrompt(cmd *cobra.Command, scanner *bufio.Scanner, session *workflow.Session) error {
	out := cmd.OutOrStdout()

	item, ok := session.Current()
	if !ok {
		return session.FinishCluster(cmd.Context())
	}

	outingLabel := formatWindow(item.Outing.StartTime, item.Outing.EndTime)
	if name := item.Outing.DisplayName(); name != "" {
		outingLabel = name + ", " + outingLabel
	}
	fmt.Fprintf(out, "\nPhoto %d/%d: %s (outing: %s)\n", item.Index+1, item.Total, item.Item.Name, outingLabel)

	resp, err := session.Identify(cmd.Context())
	if err != nil {
		return err
	}
	if top, ok := session.AutoAdvance(resp); ok {
		fmt.Fprintf(out, "Auto-confirmed %s (%.0f%% confidence)\n", candidateLabel(top), top.Confidence*100)
		return session.Record(cmd.Context(), candidateLabel(top), 1, store.CertaintyConfirmed, "")
	}
	printCandidates(out, resp)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			// Input ended mid-batch. Keep what was recorded.
			if err := closeEarly(cmd, session); err != nil {
				return err
			}
			return scanner.Err()
		}

		advanced, err := handleReviewInput(cmd, session, resp, scanner.Text())
		if err != nil {
			return err
		}
		if advanced {
			return nil
		}
		// The command may have replaced the candidate list (crop).
		if refreshed, refreshErr := session.Identify(cmd.Context()); refreshErr == nil {
			resp = refreshed
		}
	}
}

func closeEarly(cmd *cobra.Command, session *workflow.Session) error {
	summary, err := session.Close(cmd.Context())
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), summary, true)
	return nil
}

func parseWindowTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a time (2026-05-02T08:00 or RFC3339)", value)
}

// handleReviewInput applies one line of reviewer input. It returns true
// when the cursor moved (record, skip, or back).
func handleReviewInput(cmd *cobra.Command, session *workflow.Session, resp *identify.Response, line string) (bool, error) {
	out := cmd.OutOrStdout()
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "s":
		return true, session.Skip()
	case "b":
		if err := session.Back(cmd.Context()); err != nil {
			fmt.Fprintln(out, err)
			return false, nil
		}
		return true, nil
	case "q":
		if err := closeEarly(cmd, session); err != nil {
			return false, err
		}
		return true, nil
	case "n", "p":
		if len(fields) < 2 {
			fmt.Fprintln(out, "usage: n <species name> (confirmed) or p <species name> (possible)")
			return false, nil
		}
		certainty := store.CertaintyConfirmed
		if fields[0] == "p" {
			certainty = store.CertaintyPossible
		}
		name := strings.Join(fields[1:], " ")
		if err := session.Record(cmd.Context(), name, 1, certainty, ""); err != nil {
			fmt.Fprintln(out, err)
			return false, nil
		}
		return true, nil
	case "c":
		if len(fields) != 5 {
			fmt.Fprintln(out, "usage: c <x> <y> <width> <height>")
			return false, nil
		}
		box, err := parseBox(fields[1:])
		if err != nil {
			fmt.Fprintln(out, err)
			return false, nil
		}
		cropped, err := session.IdentifyCropped(cmd.Context(), box)
		if err != nil {
			return false, err
		}
		printCandidates(out, cropped)
		return false, nil
	}

	// A bare number confirms that candidate; "p3" marks it possible.
	choice := fields[0]
	certainty := store.CertaintyConfirmed
	if strings.HasPrefix(choice, "p") {
		certainty = store.CertaintyPossible
		choice = choice[1:]
	}
	index, err := strconv.Atoi(choice)
	if err != nil || resp == nil || index < 1 || index > len(resp.Candidates) {
		fmt.Fprintln(out, "pick a candidate number, or: n <name>, p <name>, c(rop), s(kip), b(ack), q(uit)")
		return false, nil
	}
	candidate := resp.Candidates[index-1]
	if err := session.Record(cmd.Context(), candidateLabel(candidate), 1, certainty, ""); err != nil {
		fmt.Fprintln(out, err)
		return false, nil
	}
	return true, nil
}

func parseBox(fields []string) (identify.Box, error) {
	values := make([]int, 4)
	for i, field := range fields {
		v, err := strconv.Atoi(field)
		if err != nil || v < 0 {
			return identify.Box{}, fmt.Errorf("crop values must be non-negative integers")
		}
		values[i] = v
	}
	return identify.Box{X: values[0], Y: values[1], Width: values[2], Height: values[3]}, nil
}

func candidateLabel(c identify.Candidate) string {
	if c.ScientificName != "" {
		return fmt.Sprintf("%s (%s)", c.CommonName, c.ScientificName)
	}
	return c.CommonName
}

func printCandidates(out io.Writer, resp *identify.Response) {
	if resp == nil || len(resp.Candidates) == 0 {
		fmt.Fprintln(out, "No candidates; enter the species manually (n <name>) or skip (s)")
		return
	}
	for i, candidate := range resp.Candidates {
		fmt.Fprintf(out, "  %d. %s  %.0f%%\n", i+1, candidateLabel(candidate), candidate.Confidence*100)
	}
}

func printSummary(out io.Writer, summary *workflow.Summary, closed bool) {
	verb := "Batch complete"
	if closed {
		verb = "Batch closed early"
	}
	fmt.Fprintf(out, "\n%s: %d observations across %d outings (%d new)\n",
		verb, summary.Observations, summary.Outings, summary.NewOutings)
	if summary.Duplicates > 0 {
		fmt.Fprintf(out, "Duplicates skipped: %d\n", summary.Duplicates)
	}
	for _, name := range summary.NewSpecies {
		fmt.Fprintf(out, "New species: %s\n", name)
	}
}
