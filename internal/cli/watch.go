package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/teamsync/internal/reactive"
	"github.com/roach88/teamsync/internal/team"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	SessionOptions
	For time.Duration
}

// WatchEvent is one published change.
type WatchEvent struct {
	Kind  string      `json:"kind"` // "profile", "users" or "teams"
	User  *team.User  `json:"user,omitempty"`
	Users []team.User `json:"users,omitempty"`
	Teams []TeamEntry `json:"teams,omitempty"`
}

func (e WatchEvent) Text() string {
	switch e.Kind {
	case "profile":
		if e.User == nil {
			return "profile: signed out"
		}
		return fmt.Sprintf("profile: %s", WhoamiOutput{UID: e.User.UID, Name: e.User.Name, Team: e.User.Team}.Text())
	case "users":
		return "users:\n" + UsersOutput{Users: e.Users}.Text()
	default:
		return "teams:\n" + TeamsOutput{Teams: e.Teams}.Text()
	}
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{SessionOptions: SessionOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream changes to your profile, users and teams",
		Long: `Print the current profile, users and teams, then every change as it
is published, until interrupted (Ctrl-C) or --for elapses.

In json format every event is one JSON line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().DurationVar(&opts.For, "for", 0, "stop after this long (0 waits for a signal)")
	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping watch", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	s, err := openSession(ctx, &opts.SessionOptions)
	if err != nil {
		return err
	}
	defer s.close()

	// Subscribers run on the runtime goroutine; printing stays on this one.
	events := make(chan WatchEvent, 16)
	stop := make(chan struct{})
	defer close(stop)
	send := func(e WatchEvent) {
		select {
		case events <- e:
		case <-stop:
		case <-ctx.Done():
		}
	}
	subs := []reactive.Disposable{
		s.svc.AuthState().Subscribe(func(st reactive.AuthState[team.User]) {
			send(WatchEvent{Kind: "profile", User: st.CurrentUserData})
		}),
		s.svc.UsersValue().OnChange(func() {
			send(WatchEvent{Kind: "users", Users: usersOrEmpty(s.svc.Users())})
		}),
		s.svc.TeamsValue().OnChange(func() {
			send(WatchEvent{Kind: "teams", Teams: teamEntries(s.svc.Teams())})
		}),
	}
	defer func() {
		for _, d := range subs {
			d.Dispose()
		}
	}()

	loopCtx := ctx
	if opts.For > 0 {
		var stopAfter context.CancelFunc
		loopCtx, stopAfter = context.WithTimeout(ctx, opts.For)
		defer stopAfter()
	}

	f := newFormatter(opts.RootOptions, cmd)
	initial := []WatchEvent{
		{Kind: "profile", User: s.svc.CurrentUser()},
		{Kind: "users", Users: usersOrEmpty(s.svc.Users())},
		{Kind: "teams", Teams: teamEntries(s.svc.Teams())},
	}
	for _, e := range initial {
		if err := f.Success(e); err != nil {
			return err
		}
	}

	for {
		select {
		case e := <-events:
			if err := f.Success(e); err != nil {
				return err
			}
		case <-loopCtx.Done():
			slog.Debug("watch stopped")
			return nil
		}
	}
}
