package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/filter"
)

// Scenario is a scripted interaction session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Diagram is loaded before the first step. DiagramFile, if set, is read
	// relative to the scenario file and takes precedence.
	Diagram     *diagram.Diagram `yaml:"diagram,omitempty"`
	DiagramFile string           `yaml:"diagram_file,omitempty"`

	Options Options `yaml:"options,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Options configures the engine for a scenario.
type Options struct {
	ReadOnly      bool   `yaml:"read_only,omitempty"`
	HideViews     bool   `yaml:"hide_views,omitempty"`
	DefaultSchema string `yaml:"default_schema,omitempty"`
}

// Step is one gesture. Exactly one field is set.
type Step struct {
	Drag    *DragStep      `yaml:"drag,omitempty"`
	Resize  *ResizeStep    `yaml:"resize,omitempty"`
	Connect *ConnectStep   `yaml:"connect,omitempty"`
	Remove  *RemoveStep    `yaml:"remove,omitempty"`
	Select  *SelectStep    `yaml:"select,omitempty"`
	Advance Duration       `yaml:"advance,omitempty"`
	Filter  *filter.Filter `yaml:"filter,omitempty"`
}

// DragStep moves a node to To. Frames is the number of intermediate
// dragging positions sent before the settle; zero means 3.
type DragStep struct {
	ID     string        `yaml:"id"`
	To     diagram.Point `yaml:"to"`
	Frames int           `yaml:"frames,omitempty"`
}

// ResizeStep resizes a node.
type ResizeStep struct {
	ID     string  `yaml:"id"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// ConnectStep drags a connection from a source handle and releases it on
// a target. An empty To releases over empty canvas.
type ConnectStep struct {
	From         string          `yaml:"from"`
	Handle       string          `yaml:"handle"`
	To           string          `yaml:"to,omitempty"`
	TargetHandle string          `yaml:"target_handle,omitempty"`
	Via          []diagram.Point `yaml:"via,omitempty"`
}

// RemoveStep removes nodes and edges.
type RemoveStep struct {
	IDs     []string `yaml:"ids,omitempty"`
	EdgeIDs []string `yaml:"edge_ids,omitempty"`
}

// SelectStep selects a node, or an edge when Edge is set.
type SelectStep struct {
	ID       string `yaml:"id"`
	Edge     bool   `yaml:"edge,omitempty"`
	Selected bool   `yaml:"selected"`
}

// Duration parses "600ms"-style YAML scalars.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := time.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// ID is the entity (parent_area, position).
	ID string `yaml:"id,omitempty"`

	// Expect is the expected parent area id (parent_area) or overlap flag
	// (overlap, "true"/"false").
	Expect string `yaml:"expect,omitempty"`

	// X and Y are the expected position (position).
	X *float64 `yaml:"x,omitempty"`
	Y *float64 `yaml:"y,omitempty"`

	// Count is the expected number (edge_count, relationship_count, writes).
	Count *int `yaml:"count,omitempty"`

	// Kind restricts edge_count to one edge kind.
	Kind string `yaml:"kind,omitempty"`

	// Codes are the expected reject codes in order (warnings).
	Codes []string `yaml:"codes,omitempty"`

	// Clusters are the expected overlap clusters (overlap).
	Clusters [][]string `yaml:"clusters,omitempty"`
}

// Assertion type constants.
const (
	AssertParentArea        = "parent_area"
	AssertPosition          = "position"
	AssertEdgeCount         = "edge_count"
	AssertRelationshipCount = "relationship_count"
	AssertWarnings          = "warnings"
	AssertWrites            = "writes"
	AssertOverlap           = "overlap"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected. A diagram_file is resolved relative to the scenario.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.DiagramFile != "" {
		p := scenario.DiagramFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(path), p)
		}
		d, err := LoadDiagram(p)
		if err != nil {
			return nil, err
		}
		scenario.Diagram = &d
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDiagram reads a diagram fixture in YAML.
func LoadDiagram(path string) (diagram.Diagram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return diagram.Diagram{}, fmt.Errorf("failed to read diagram file: %w", err)
	}
	var d diagram.Diagram
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&d); err != nil {
		return diagram.Diagram{}, fmt.Errorf("failed to parse diagram %s: %w", path, err)
	}
	return d, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if s.Diagram == nil {
		return errors.New("diagram or diagram_file is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}
	for i, st := range s.Steps {
		if err := validateStep(st); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i+1, err)
		}
	}
	return nil
}

func validateStep(st Step) error {
	set := 0
	if st.Drag != nil {
		set++
		if st.Drag.ID == "" {
			return errors.New("drag requires id")
		}
	}
	if st.Resize != nil {
		set++
		if st.Resize.ID == "" {
			return errors.New("resize requires id")
		}
	}
	if st.Connect != nil {
		set++
		if st.Connect.From == "" || st.Connect.Handle == "" {
			return errors.New("connect requires from and handle")
		}
	}
	if st.Remove != nil {
		set++
		if len(st.Remove.IDs) == 0 && len(st.Remove.EdgeIDs) == 0 {
			return errors.New("remove requires ids or edge_ids")
		}
	}
	if st.Select != nil {
		set++
		if st.Select.ID == "" {
			return errors.New("select requires id")
		}
	}
	if st.Advance != 0 {
		set++
		if st.Advance < 0 {
			return errors.New("advance must be positive")
		}
	}
	if st.Filter != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one gesture per step, got %d", set)
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertParentArea:
		if a.ID == "" {
			return errors.New("parent_area requires id")
		}
	case AssertPosition:
		if a.ID == "" || a.X == nil || a.Y == nil {
			return errors.New("position requires id, x and y")
		}
	case AssertEdgeCount, AssertRelationshipCount, AssertWrites:
		if a.Count == nil {
			return fmt.Errorf("%s requires count", a.Type)
		}
	case AssertWarnings:
	case AssertOverlap:
		if a.Expect != "true" && a.Expect != "false" && a.Clusters == nil {
			return errors.New(`overlap requires expect "true"/"false" or clusters`)
		}
	case "":
		return errors.New("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
