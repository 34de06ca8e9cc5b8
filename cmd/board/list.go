package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"statusboard/internal/models"
	"statusboard/internal/presence"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the board once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.close()
		records, err := s.client.ListWorkers(ctx)
		if err != nil {
			return err
		}
		printRecords(records, time.Now())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved token and session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.close()
		board, err := s.newBoard(presence.BoardDeps{})
		if err != nil {
			return err
		}
		board.Logout()
		return s.state.Delete(tokenKey)
	},
}

func printRecords(records []models.Worker, now time.Time) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].DisplayName < records[j].DisplayName })
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tREMAINING\tNOTE")
	for _, w := range records {
		remaining := "-"
		if w.BusyUntil != nil {
			if mins := presence.RemainingMinutes(*w.BusyUntil, now); mins > 0 {
				remaining = presence.FormatMinutes(mins)
			} else {
				remaining = "expired"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", w.DisplayName, w.Status, remaining, presence.NotePreview(w.Note()))
	}
	_ = tw.Flush()
}
