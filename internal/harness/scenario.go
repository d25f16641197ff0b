package harness

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flowdb/internal/kv"
)

// Scenario defines a flow scenario.
// A scenario runs a sequence of flows against a fresh token table and
// asserts on each step's outcome and on the final table contents.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Table is the token table name. Defaults to "crypto_values".
	Table string `yaml:"table,omitempty"`

	// NotFound is the lookup policy: "fail_fast" or "return_not_found".
	// Defaults to "return_not_found".
	NotFound string `yaml:"not_found,omitempty"`

	// UniqueKeys adds a UNIQUE index on token.
	UniqueKeys bool `yaml:"unique_keys,omitempty"`

	// NormalizeKeys applies Unicode NFC to tokens.
	NormalizeKeys bool `yaml:"normalize_keys,omitempty"`

	// Steps are executed in order, one flow each.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final table state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step represents one flow invocation.
type Step struct {
	// Action is "add", "update" or "query".
	Action string `yaml:"action"`

	// Token is the lookup key.
	Token string `yaml:"token"`

	// Value is the value to write (add and update only).
	Value *int64 `yaml:"value,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies an expected step outcome. Set at most one field.
type Expect struct {
	// Value is the expected query result.
	Value *int `yaml:"value,omitempty"`

	// Error is the expected error kind (ErrorKind values).
	Error string `yaml:"error,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": the token reads as Value
	// - "row_count": the token has exactly Count rows
	Type string `yaml:"type"`

	Token string `yaml:"token"`

	// Value is the expected value (final_state).
	Value *int `yaml:"value,omitempty"`

	// Count is the expected number of rows (row_count).
	Count *int `yaml:"count,omitempty"`
}

// Step actions.
const (
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionQuery  = "query"
)

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertRowCount   = "row_count"
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
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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

// FindScenarios returns the .yaml and .yml files under dir, sorted.
// A non-empty filter is a glob matched against the file name without
// extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.NotFound != "" {
		if _, err := kv.ParsePolicy(s.NotFound); err != nil {
			return err
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step based on its action.
func validateStep(index int, s *Step) error {
	switch s.Action {
	case ActionAdd, ActionUpdate:
		if s.Value == nil {
			return fmt.Errorf("steps[%d]: value is required for %s", index, s.Action)
		}
		if *s.Value < math.MinInt32 || *s.Value > math.MaxInt32 {
			return fmt.Errorf("steps[%d]: value %d out of int32 range", index, *s.Value)
		}
	case ActionQuery:
		if s.Value != nil {
			return fmt.Errorf("steps[%d]: value is not allowed for query", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, s.Action)
	}

	if s.Expect == nil {
		return nil
	}
	if s.Expect.Value != nil && s.Expect.Error != "" {
		return fmt.Errorf("steps[%d].expect: value and error are mutually exclusive", index)
	}
	if s.Expect.Value != nil && s.Action != ActionQuery {
		return fmt.Errorf("steps[%d].expect: value is only valid for query", index)
	}
	if s.Expect.Error != "" && !validErrorKind(s.Expect.Error) {
		return fmt.Errorf("steps[%d].expect: unknown error kind %q", index, s.Expect.Error)
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for final_state", index)
		}
	case AssertRowCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for row_count", index)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
