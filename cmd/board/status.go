package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"statusboard/internal/domain"
	"statusboard/internal/presence"
)

var (
	statusMinutes int
	statusNote    string
)

var statusCmd = &cobra.Command{
	Use:       "status <free|busy|important>",
	Short:     "Set your own status",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(domain.StatusFree), string(domain.StatusBusy), string(domain.StatusImportant)},
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := domain.ParseStatus(args[0])
		if err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		s, err := openSession(ctx, true)
		if err != nil {
			return err
		}
		defer s.close()

		board, err := s.newBoard(presence.BoardDeps{})
		if err != nil {
			return err
		}
		defer board.Shutdown()
		board.Login(s.me.ID)

		var note *string
		if cmd.Flags().Changed("note") {
			note = &statusNote
		}
		w, err := board.SetStatus(ctx, st, statusMinutes, note)
		if err != nil {
			return err
		}
		printRecords(board.Records(), time.Now())
		logger.Info().Str("status", string(w.Status)).Msg(presence.StatusMessage(w, time.Now()))
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusMinutes, "minutes", 30, "busy duration in minutes (1-1440)")
	statusCmd.Flags().StringVar(&statusNote, "note", "", "status note")
	statusCmd.Flags().StringVar(&username, "username", "", "log in with this username")
	statusCmd.Flags().StringVar(&password, "password", os.Getenv("STATUSBOARD_PASSWORD"), "password for --username")
}
