package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] step %d: %s %s -> %s\n", i+1, ev.Step, ev.Aci, ev.OldPhone, ev.NewPhone)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns one
// message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertRecipients:
		return assertPairs(result, a.Type, a.Pairs, result.Final.Recipients)
	case AssertMembers:
		return assertPairs(result, a.Type+" "+a.Group, a.Pairs, result.members[a.Group])
	case AssertEventCount:
		return assertCount(result, a.Type, *a.Count, len(result.Trace))
	case AssertThreadCount:
		return assertCount(result, a.Type, *a.Count, len(result.Final.Threads))
	case AssertInteractionCount:
		n := 0
		for _, line := range result.Final.Interactions {
			if a.Kind == "" || strings.Contains(line, ": "+a.Kind+": ") {
				n++
			}
		}
		label := a.Type
		if a.Kind != "" {
			label += " " + a.Kind
		}
		return assertCount(result, label, *a.Count, n)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertPairs(result *Result, label string, want, got []string) error {
	if want == nil {
		want = []string{}
	}
	if got == nil {
		got = []string{}
	}
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     label,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    result.Trace,
	}
}

func assertCount(result *Result, label string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     label,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", got),
		Trace:    result.Trace,
	}
}
