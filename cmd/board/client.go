package main

import (
	"context"
	"fmt"
	"net/http"

	"statusboard/internal/localstore"
	"statusboard/internal/models"
	"statusboard/internal/presence"
	"statusboard/internal/remote"
)

const tokenKey = "board.token"

var (
	username string
	password string
)

// session bundles what every subcommand needs.
type session struct {
	client *remote.HTTPClient
	state  *localstore.Store
	me     models.Worker
}

// openSession connects to the server and authenticates. Credentials win
// over a configured token, which wins over a token saved by an earlier login.
func openSession(ctx context.Context, requireLogin bool) (*session, error) {
	state, err := localstore.Open(cfg.Board.StatePath)
	if err != nil {
		return nil, err
	}
	s := &session{
		client: remote.NewHTTPClient(cfg.Board.BaseURL, cfg.Board.Token, &http.Client{Timeout: cfg.Board.HTTPTimeout}),
		state:  state,
	}
	if err := s.authenticate(ctx); err != nil {
		_ = state.Close()
		return nil, err
	}
	if requireLogin && s.me.ID == "" {
		_ = state.Close()
		return nil, presence.ErrNotLoggedIn
	}
	return s, nil
}

func (s *session) authenticate(ctx context.Context) error {
	if username != "" {
		w, err := s.client.Login(ctx, username, password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		s.me = w
		return s.state.Put(tokenKey, s.client.Token())
	}
	if s.client.Token() == "" {
		saved, ok, err := s.state.Get(tokenKey)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		s.client.SetToken(saved)
	}
	w, err := s.client.Me(ctx)
	if err != nil {
		// A stale token falls back to the public view.
		logger.Debug().Err(err).Msg("token rejected")
		s.client.SetToken("")
		return nil
	}
	s.me = w
	return nil
}

func (s *session) newBoard(deps presence.BoardDeps) (*presence.Board, error) {
	deps.Store = s.client
	deps.KV = s.state
	deps.Logger = logger
	return presence.NewBoard(cfg, deps)
}

func (s *session) close() {
	_ = s.state.Close()
}
