package harness

import "github.com/roach88/teamsync/internal/team"

// StateFrame is the published state after one step.
type StateFrame struct {
	Step     int        `json:"step"`
	Action   string     `json:"action"`
	SignedIn bool       `json:"signed_in"`
	Ready    bool       `json:"ready"`
	User     *team.User `json:"user"`
	// Users and Teams hold names in listing order; null while signed out.
	Users []string `json:"users"`
	Teams []string `json:"teams"`
	Error string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every step and expectation succeeded.
	Pass   bool         `json:"pass"`
	Trace  []StateFrame `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StateFrame{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddFrame appends a state frame to the trace.
func (r *Result) AddFrame(f StateFrame) {
	r.Trace = append(r.Trace, f)
}
