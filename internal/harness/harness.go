package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roach88/teamsync/internal/localauth"
	"github.com/roach88/teamsync/internal/localstore"
	"github.com/roach88/teamsync/internal/reactive"
	"github.com/roach88/teamsync/internal/team"
	"github.com/roach88/teamsync/internal/testutil"
)

// Issuer and secret of the tokens minted for sign_in steps.
const (
	harnessIssuer = "teamsync-harness"
	harnessSecret = "teamsync-harness-secret"
)

// settleTimeout bounds how long one step may take to quiesce.
const settleTimeout = 5 * time.Second

// Harness holds one scenario's backend.
type Harness struct {
	rt      *reactive.Runtime
	store   *localstore.Store
	auth    *localauth.Provider
	authCfg localauth.Config
	clock   *testutil.FixedClock
	svc     *team.Service

	lastTeam string
	// bindingErrs collects errors reported by the bindings during a step.
	bindingErrs []string
}

// Run executes a scenario in a fresh in-memory backend and returns the
// trace. The error is non-nil only if the harness itself fails; step and
// expectation failures are reported in the Result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness()
	if err != nil {
		return nil, err
	}
	defer h.close()

	if err := h.settle(ctx); err != nil {
		return nil, fmt.Errorf("initial settle: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.clock.Advance(time.Second)
		h.bindingErrs = nil

		stepErr := h.execute(ctx, step)
		if err := h.settle(ctx); err != nil {
			return nil, fmt.Errorf("step %d (%s): settle: %w", i, step.Action, err)
		}

		frame := h.frame(i, step.Action)
		switch {
		case step.ExpectError != "" && stepErr == nil:
			result.AddError(fmt.Sprintf("step %d (%s): expected error containing %q, got none", i, step.Action, step.ExpectError))
		case step.ExpectError != "" && !strings.Contains(stepErr.Error(), step.ExpectError):
			result.AddError(fmt.Sprintf("step %d (%s): expected error containing %q, got %q", i, step.Action, step.ExpectError, stepErr))
		case step.ExpectError == "" && stepErr != nil:
			result.AddError(fmt.Sprintf("step %d (%s): %v", i, step.Action, stepErr))
		}
		if stepErr != nil {
			frame.Error = stepErr.Error()
		}
		for _, msg := range h.bindingErrs {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i, step.Action, msg))
		}

		if step.Expect != nil {
			for _, msg := range h.check(step.Expect, frame) {
				result.AddError(fmt.Sprintf("step %d (expect): %s", i, msg))
			}
		}
		result.AddFrame(frame)
	}

	return result, nil
}

func newHarness() (*Harness, error) {
	clock := testutil.NewFixedClock(time.Time{})

	st, err := localstore.Open(":memory:",
		localstore.WithIDGenerator(testutil.NewSequentialIDGenerator("team")),
		localstore.WithNow(clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	authCfg := localauth.Config{
		Secret: []byte(harnessSecret),
		Issuer: harnessIssuer,
		Now:    clock.Now,
		NewUID: testutil.NewSequentialIDGenerator("anon").Generate,
	}
	auth, err := localauth.New(authCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}

	h := &Harness{
		rt:      reactive.NewRuntime(),
		store:   st,
		auth:    auth,
		authCfg: authCfg,
		clock:   clock,
	}
	h.svc = team.New(h.rt, auth, st, team.WithBindingOptions(
		reactive.WithErrorHandler(func(err error) {
			h.bindingErrs = append(h.bindingErrs, err.Error())
		}),
	))
	return h, nil
}

func (h *Harness) close() {
	h.svc.Close()
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()
	_ = h.settle(ctx)
	h.rt.Stop()
	h.store.Close()
}

func (h *Harness) settle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	return h.rt.Settle(ctx, h.store)
}

func (h *Harness) execute(ctx context.Context, step Step) error {
	switch step.Action {
	case ActionSignIn:
		token, err := localauth.Mint(h.authCfg, localauth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: step.UID},
			Name:             step.Name,
			Email:            step.Email,
			Picture:          step.Picture,
		}, time.Hour)
		if err != nil {
			return err
		}
		return h.svc.SignIn(ctx, token)

	case ActionSignOut:
		return h.svc.SignOut(ctx)

	case ActionCreateTeam:
		id, err := h.svc.CreateTeam(ctx, step.Name)
		if id != "" {
			h.lastTeam = id
		}
		return err

	case ActionJoinTeam:
		return h.svc.JoinTeam(ctx, h.resolveTeam(step.Team))

	case ActionExpect:
		return nil
	}
	return fmt.Errorf("unknown action %q", step.Action)
}

func (h *Harness) resolveTeam(team string) string {
	if team == LastTeam {
		return h.lastTeam
	}
	return team
}

func (h *Harness) frame(step int, action string) StateFrame {
	f := StateFrame{
		Step:     step,
		Action:   action,
		SignedIn: h.svc.SignedIn(),
		Ready:    h.svc.Ready(),
		User:     h.svc.CurrentUser(),
	}
	if users := h.svc.Users(); users != nil {
		f.Users = make([]string, 0, len(users))
		for _, u := range users {
			f.Users = append(f.Users, u.Name)
		}
	}
	if teams := h.svc.Teams(); teams != nil {
		f.Teams = make([]string, 0, len(teams))
		for _, t := range teams {
			f.Teams = append(f.Teams, t.Name)
		}
	}
	return f
}

func (h *Harness) check(e *Expectation, f StateFrame) []string {
	var errs []string
	if e.SignedIn != nil && *e.SignedIn != f.SignedIn {
		errs = append(errs, fmt.Sprintf("signed_in = %v, want %v", f.SignedIn, *e.SignedIn))
	}
	if e.Team != nil {
		want := h.resolveTeam(*e.Team)
		got := ""
		if f.User != nil {
			got = f.User.Team
		}
		if got != want {
			errs = append(errs, fmt.Sprintf("team = %q, want %q", got, want))
		}
	}
	if e.Users != nil && !slices.Equal(e.Users, f.Users) {
		errs = append(errs, fmt.Sprintf("users = %v, want %v", f.Users, e.Users))
	}
	if e.Teams != nil && !slices.Equal(e.Teams, f.Teams) {
		errs = append(errs, fmt.Sprintf("teams = %v, want %v", f.Teams, e.Teams))
	}
	return errs
}
