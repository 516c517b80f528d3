package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/erdsync/internal/view"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", ev)
		}
	}
	return buf.String()
}

// AssertionContext is the state assertions are evaluated against.
type AssertionContext struct {
	Result *Result
	Edges  []*view.Edge
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. An empty slice means all assertions held.
func EvaluateAssertions(actx *AssertionContext, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(actx, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i+1, err))
		}
	}
	return errs
}

func evaluate(actx *AssertionContext, a Assertion) error {
	switch a.Type {
	case AssertParentArea:
		return assertParentArea(actx, a)
	case AssertPosition:
		return assertPosition(actx, a)
	case AssertEdgeCount:
		n := countEdges(actx.Edges, view.EdgeKind(a.Kind))
		return compareCount(actx, a, n)
	case AssertRelationshipCount:
		return compareCount(actx, a, actx.Result.Summary.Relationships)
	case AssertWrites:
		return compareCount(actx, a, int(actx.Result.Summary.Writes))
	case AssertWarnings:
		return assertWarnings(actx, a)
	case AssertOverlap:
		return assertOverlap(actx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertParentArea(actx *AssertionContext, a Assertion) error {
	for _, t := range actx.Result.Final.Tables {
		if t.ID != a.ID {
			continue
		}
		if t.ParentAreaID != a.Expect {
			return &AssertionError{
				Type:     AssertParentArea,
				Expected: fmt.Sprintf("table %s in area %q", a.ID, a.Expect),
				Actual:   fmt.Sprintf("area %q", t.ParentAreaID),
				Trace:    actx.Result.Trace,
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertParentArea,
		Expected: fmt.Sprintf("table %s", a.ID),
		Actual:   "table not found",
	}
}

func assertPosition(actx *AssertionContext, a Assertion) error {
	d := actx.Result.Final
	var (
		x, y  float64
		found bool
	)
	for _, t := range d.Tables {
		if t.ID == a.ID {
			x, y, found = t.X, t.Y, true
		}
	}
	for _, ar := range d.Areas {
		if ar.ID == a.ID {
			x, y, found = ar.X, ar.Y, true
		}
	}
	for _, n := range d.Notes {
		if n.ID == a.ID {
			x, y, found = n.X, n.Y, true
		}
	}
	if !found {
		return &AssertionError{
			Type:     AssertPosition,
			Expected: fmt.Sprintf("entity %s", a.ID),
			Actual:   "not found",
		}
	}
	if x != *a.X || y != *a.Y {
		return &AssertionError{
			Type:     AssertPosition,
			Expected: fmt.Sprintf("%s at (%g, %g)", a.ID, *a.X, *a.Y),
			Actual:   fmt.Sprintf("(%g, %g)", x, y),
			Trace:    actx.Result.Trace,
		}
	}
	return nil
}

func compareCount(actx *AssertionContext, a Assertion, actual int) error {
	if actual == *a.Count {
		return nil
	}
	expected := fmt.Sprintf("%d", *a.Count)
	if a.Kind != "" {
		expected += " " + a.Kind
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   fmt.Sprintf("%d", actual),
		Trace:    actx.Result.Trace,
	}
}

func assertWarnings(actx *AssertionContext, a Assertion) error {
	got := actx.Result.Summary.Warnings
	want := a.Codes
	if len(got) == 0 && len(want) == 0 {
		return nil
	}
	if !reflect.DeepEqual(got, want) {
		return &AssertionError{
			Type:     AssertWarnings,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    actx.Result.Trace,
		}
	}
	return nil
}

func assertOverlap(actx *AssertionContext, a Assertion) error {
	clusters := actx.Result.Summary.Overlap
	has := len(clusters) > 0
	if a.Expect != "" && fmt.Sprintf("%t", has) != a.Expect {
		return &AssertionError{
			Type:     AssertOverlap,
			Expected: "overlap " + a.Expect,
			Actual:   fmt.Sprintf("%v", clusters),
		}
	}
	if a.Clusters != nil && !reflect.DeepEqual(normalizeClusters(a.Clusters), normalizeClusters(clusters)) {
		return &AssertionError{
			Type:     AssertOverlap,
			Expected: fmt.Sprintf("clusters %v", a.Clusters),
			Actual:   fmt.Sprintf("%v", clusters),
		}
	}
	return nil
}

func normalizeClusters(c [][]string) [][]string {
	if len(c) == 0 {
		return [][]string{}
	}
	return c
}
