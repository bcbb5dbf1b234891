package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/teamsync/internal/backend"
	"github.com/roach88/teamsync/internal/config"
	"github.com/roach88/teamsync/internal/localauth"
	"github.com/roach88/teamsync/internal/localstore"
	"github.com/roach88/teamsync/internal/reactive"
	"github.com/roach88/teamsync/internal/team"
)

// TokenEnv is read when --token is not given.
const TokenEnv = "TEAMSYNC_TOKEN"

// readyTimeout bounds how long a command waits for the first data.
const readyTimeout = 10 * time.Second

// SessionOptions holds flags for commands that act as a signed-in user.
type SessionOptions struct {
	*RootOptions
	Token string
}

func (o *SessionOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Token, "token", "", "ID token (defaults to $"+TokenEnv+")")
}

// session is a signed-in team service backed by the configured database,
// with its runtime running in the background.
type session struct {
	rt     *reactive.Runtime
	store  *localstore.Store
	svc    *team.Service
	cancel context.CancelFunc
	done   chan struct{}
}

func authConfig(cfg config.Config) localauth.Config {
	return localauth.Config{
		Secret: []byte(cfg.AuthSecret),
		Issuer: cfg.AuthIssuer,
	}
}

// openSession opens the database, signs in and waits until the profile
// and listings have loaded.
func openSession(ctx context.Context, opts *SessionOptions) (*session, error) {
	token := opts.Token
	if token == "" {
		token = os.Getenv(TokenEnv)
	}
	if token == "" {
		return nil, NewExitError(ExitCommandError, "a token is required: pass --token or set "+TokenEnv).
			WithErrCode(ErrCodeInvalidInput)
	}

	cfg := opts.Config
	slog.Debug("opening database", "path", cfg.Database)
	st, err := localstore.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err).WithErrCode(ErrCodeStore)
	}

	auth, err := localauth.New(authConfig(cfg))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to configure auth", err).WithErrCode(ErrCodeConfig)
	}

	bindingOpts := []reactive.Option{
		reactive.WithErrorHandler(func(err error) {
			slog.Error("subscription error", "error", err)
		}),
	}
	if cfg.IncludeMetadataChanges {
		bindingOpts = append(bindingOpts, reactive.WithMetadataChanges())
	}

	rt := reactive.NewRuntime()
	svc := team.New(rt, auth, st,
		team.WithCollections(cfg.UsersCollection, cfg.TeamsCollection),
		team.WithBindingOptions(bindingOpts...),
	)

	runCtx, cancel := context.WithCancel(ctx)
	s := &session{rt: rt, store: st, svc: svc, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		if err := rt.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("runtime stopped", "error", err)
		}
	}()

	if err := svc.SignIn(ctx, token); err != nil {
		s.close()
		exitErr := WrapExitError(ExitFailure, "sign in failed", err)
		if errors.Is(err, backend.ErrUnauthenticated) {
			exitErr.WithErrCode(ErrCodeAuth)
		}
		return nil, exitErr
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, readyTimeout)
	defer waitCancel()
	if err := svc.WaitReady(waitCtx); err != nil {
		s.close()
		return nil, WrapExitError(ExitFailure, "data did not load", err).WithErrCode(ErrCodeTimeout)
	}
	return s, nil
}

func (s *session) close() {
	s.svc.Close()
	s.rt.Stop()
	<-s.done
	s.cancel()
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// teamError maps domain errors to exit errors.
func teamError(message string, err error) error {
	exitErr := WrapExitError(ExitFailure, message, err)
	switch {
	case errors.Is(err, team.ErrInvalidTeamName), errors.Is(err, team.ErrInvalidTeamID),
		errors.Is(err, backend.ErrInvalidArgument):
		exitErr.Code = ExitCommandError
		exitErr.WithErrCode(ErrCodeInvalidInput)
	case errors.Is(err, backend.ErrNotFound), errors.Is(err, backend.ErrClosed):
		exitErr.WithErrCode(ErrCodeStore)
	}
	return exitErr
}
