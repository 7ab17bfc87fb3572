package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/courseswap/internal/ir"
)

// Scenario defines a conformance test scenario: engine commands to run,
// their expected outcomes, and assertions on the trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the initial clock reading (RFC 3339). Defaults to
	// testutil.Epoch.
	Start string `yaml:"start,omitempty"`

	// RefundOnAccept runs the engine with counter-offer refunds enabled.
	RefundOnAccept bool `yaml:"refund_on_accept,omitempty"`

	// Setup establishes initial state. Every setup step must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the main test flow.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step invokes one engine command.
type Step struct {
	// Op is the command name, e.g. "register_to_course".
	Op string `yaml:"op"`

	// As is the caller: a handle ("@alice") or a hex account id.
	// Query commands may omit it.
	As string `yaml:"as,omitempty"`

	// At sets the clock (RFC 3339) before the step runs.
	At string `yaml:"at,omitempty"`

	// Args are the command arguments. Accounts are handles or hex ids,
	// courses are names or hex ids.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect specifies the expected completion. If nil, the outcome is
	// recorded but not checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected completion behavior.
type ExpectClause struct {
	// Case is "ok" or an error kind such as "CourseCapacityFull".
	Case string `yaml:"case"`

	// Result is compared against the labelled command result. Maps match
	// as subsets; every other value must be equal.
	Result any `yaml:"result,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the command name (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// As optionally narrows trace_contains to one caller.
	As string `yaml:"as,omitempty"`

	// Args are expected command arguments (trace_contains, subset match).
	Args map[string]any `yaml:"args,omitempty"`

	// Ops is the expected command order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of invocations (trace_count).
	Count int `yaml:"count,omitempty"`

	// Table is one of members, courses, tokens, proposals (final_state).
	Table string `yaml:"table,omitempty"`

	// Key is the account or course the record belongs to (final_state).
	Key string `yaml:"key,omitempty"`

	// Expect is compared against the labelled record (final_state).
	Expect any `yaml:"expect,omitempty"`

	// Absent asserts that the record does not exist (final_state).
	Absent bool `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
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

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
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
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if s.Start != "" {
		if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Expect != nil && !validCase(step.Expect.Case) {
			return fmt.Errorf("flow[%d].expect: case must be %q or an error kind, got %q", i, CaseOK, step.Expect.Case)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Op == "" {
		return fmt.Errorf("op is required")
	}
	if _, ok := builders[step.Op]; !ok {
		return fmt.Errorf("unknown op %q", step.Op)
	}
	if step.At != "" {
		if _, err := time.Parse(time.RFC3339, step.At); err != nil {
			return fmt.Errorf("at: %w", err)
		}
	}
	return nil
}

func validCase(c string) bool {
	if c == CaseOK {
		return true
	}
	for _, k := range ir.Kinds {
		if string(k) == c {
			return true
		}
	}
	return false
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if _, ok := stateTables[a.Table]; !ok {
			return fmt.Errorf("assertions[%d]: unknown table %q for final_state", index, a.Table)
		}
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for final_state", index)
		}
		if a.Expect == nil && !a.Absent {
			return fmt.Errorf("assertions[%d]: expect or absent is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
