package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Step actions.
const (
	ActionSignIn     = "sign_in"
	ActionSignOut    = "sign_out"
	ActionCreateTeam = "create_team"
	ActionJoinTeam   = "join_team"
	ActionExpect     = "expect"
)

// LastTeam in a team field refers to the team created most recently in the
// scenario.
const LastTeam = "$last_team"

// Scenario is a sequence of steps run against a fresh backend.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step is one scenario action. Which fields apply depends on Action.
type Step struct {
	Action string `yaml:"action"`

	// sign_in
	UID     string `yaml:"uid,omitempty"`
	Email   string `yaml:"email,omitempty"`
	Picture string `yaml:"picture,omitempty"`

	// sign_in display name, create_team team name
	Name string `yaml:"name,omitempty"`

	// join_team
	Team string `yaml:"team,omitempty"`

	// expect
	Expect *Expectation `yaml:"expect,omitempty"`

	// ExpectError makes a step pass only if it fails with an error
	// containing this text.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Expectation checks the published state. Unset fields are not checked.
type Expectation struct {
	SignedIn *bool   `yaml:"signed_in,omitempty"`
	Team     *string `yaml:"team,omitempty"`
	// Users and Teams list names in listing order.
	Users []string `yaml:"users,omitempty"`
	Teams []string `yaml:"teams,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown keys are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	switch step.Action {
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	case ActionSignIn:
		if step.UID == "" {
			return fmt.Errorf("steps[%d]: uid is required for sign_in", index)
		}
	case ActionSignOut:
	case ActionCreateTeam:
		if step.Name == "" && step.ExpectError == "" {
			return fmt.Errorf("steps[%d]: name is required for create_team", index)
		}
	case ActionJoinTeam:
		if step.Team == "" && step.ExpectError == "" {
			return fmt.Errorf("steps[%d]: team is required for join_team", index)
		}
	case ActionExpect:
		if step.Expect == nil {
			return fmt.Errorf("steps[%d]: expect is required for expect", index)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}

	if step.Expect != nil && step.Action != ActionExpect {
		return fmt.Errorf("steps[%d]: expect is only allowed on expect steps", index)
	}
	return nil
}
