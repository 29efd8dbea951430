package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one merge scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Local names the account's own identifiers, if any.
	Local *Identity `yaml:"local,omitempty"`

	// Setup seeds the store before the steps run. No listener fires.
	Setup Setup `yaml:"setup,omitempty"`

	// Steps are observations fed through the merger, one transaction each.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and the learned associations.
	Assertions []Assertion `yaml:"assertions"`
}

// Identity is an optional identifier triple.
type Identity struct {
	Aci   string `yaml:"aci,omitempty"`
	Phone string `yaml:"phone,omitempty"`
	Pni   string `yaml:"pni,omitempty"`
}

// Setup lists rows inserted directly into the store.
type Setup struct {
	Recipients []Identity    `yaml:"recipients,omitempty"`
	Threads    []ThreadSetup `yaml:"threads,omitempty"`
}

// ThreadSetup seeds one thread. Group threads set Group (hex) and may list
// members; contact threads set Aci and/or Phone.
type ThreadSetup struct {
	Aci      string     `yaml:"aci,omitempty"`
	Phone    string     `yaml:"phone,omitempty"`
	Group    string     `yaml:"group,omitempty"`
	Visible  bool       `yaml:"visible,omitempty"`
	Members  []Identity `yaml:"members,omitempty"`
	Messages int        `yaml:"messages,omitempty"`
}

// Step is one observation. With Pni set it associates the PNI with Phone
// instead of merging.
type Step struct {
	Aci   string `yaml:"aci,omitempty"`
	Phone string `yaml:"phone,omitempty"`
	Pni   string `yaml:"pni,omitempty"`
	Trust string `yaml:"trust,omitempty"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	Type  string   `yaml:"type"`
	Pairs []string `yaml:"pairs,omitempty"`
	Group string   `yaml:"group,omitempty"`
	Kind  string   `yaml:"kind,omitempty"`
	Count *int     `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertRecipients       = "recipients"
	AssertMembers          = "members"
	AssertEventCount       = "event_count"
	AssertThreadCount      = "thread_count"
	AssertInteractionCount = "interaction_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a scenario held in memory.
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

// validateScenario checks that required fields are present and valid.
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
		if step.Aci == "" && step.Phone == "" {
			return fmt.Errorf("step %d: aci or phone is required", i)
		}
		if step.Pni != "" && (step.Phone == "" || step.Aci != "") {
			return fmt.Errorf("step %d: pni steps take a phone and no aci", i)
		}
		if step.Trust != "" && step.Trust != "high" && step.Trust != "low" {
			return fmt.Errorf("step %d: trust must be high or low, got %q", i, step.Trust)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertRecipients:
		case AssertMembers:
			if a.Group == "" {
				return fmt.Errorf("assertion %d: members requires group", i)
			}
		case AssertEventCount, AssertThreadCount, AssertInteractionCount:
			if a.Count == nil {
				return fmt.Errorf("assertion %d: %s requires count", i, a.Type)
			}
		default:
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
	}
	return nil
}
