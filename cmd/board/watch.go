package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hako/durafmt"
	"github.com/spf13/cobra"

	"statusboard/internal/presence"
	"statusboard/internal/remote"
)

var noPush bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the board and print alerts as they arrive",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.close()

		expired := make(chan struct{})
		deps := presence.BoardDeps{
			OnAlert: func(a presence.Alert) {
				logger.Info().Str("worker", a.WorkerID).Str("kind", string(a.Kind)).Msg(a.Message)
			},
			OnWarning: func(remaining time.Duration) {
				logger.Warn().Str("remaining", presence.FormatRemaining(remaining)).Msg("session expires in " + humanDuration(remaining))
			},
			OnExpired: func() { close(expired) },
		}
		if !noPush {
			deps.Dialer = remote.NewWSDialer(cfg.Board.BaseURL, s.client.Token, cfg.Presence.FeedReadTimeout)
		}
		board, err := s.newBoard(deps)
		if err != nil {
			return err
		}
		defer board.Shutdown()

		if err := board.Start(ctx); err != nil {
			return err
		}
		if s.me.ID != "" {
			board.Login(s.me.ID)
		} else if id, ok := board.Resume(); ok {
			logger.Info().Str("worker", id).Str("expires_in", humanDuration(board.Session().Remaining())).Msg("session resumed")
		}
		printRecords(board.Records(), time.Now())
		logger.Info().Str("view", string(board.View())).Str("feed", board.FeedState()).Msg("watching")

		select {
		case <-ctx.Done():
			logger.Info().Msg("stopping")
		case <-expired:
			logger.Warn().Msg("session expired; log in again")
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&username, "username", "", "log in with this username")
	watchCmd.Flags().StringVar(&password, "password", os.Getenv("STATUSBOARD_PASSWORD"), "password for --username")
	watchCmd.Flags().BoolVar(&noPush, "no-push", false, "poll only, do not open the change feed")
}

// signalContext is used by the one-shot commands.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// humanDuration renders d as "1 minute 30 seconds", keeping the two largest units.
func humanDuration(d time.Duration) string {
	if d < time.Second {
		return "less than a second"
	}
	return durafmt.Parse(d.Truncate(time.Second)).LimitFirstN(2).String()
}
