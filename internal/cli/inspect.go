package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/erdsync/internal/bus"
	"github.com/roach88/erdsync/internal/config"
	"github.com/roach88/erdsync/internal/diagram"
	"github.com/roach88/erdsync/internal/engine"
	"github.com/roach88/erdsync/internal/harness"
	"github.com/roach88/erdsync/internal/store"
	"github.com/roach88/erdsync/internal/view"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	File string // read a YAML diagram file instead of the store
}

// InspectResult summarizes one diagram as the engine projects it.
type InspectResult struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	DatabaseType  string     `json:"databaseType"`
	Checksum      string     `json:"checksum"`
	Tables        int        `json:"tables"`
	Views         int        `json:"views"`
	Relationships int        `json:"relationships"`
	Dependencies  int        `json:"dependencies"`
	Areas         int        `json:"areas"`
	Notes         int        `json:"notes"`
	CustomTypes   int        `json:"customTypes"`
	VisibleNodes  int        `json:"visibleNodes"`
	VisibleEdges  int        `json:"visibleEdges"`
	Overlap       [][]string `json:"overlap"`
	// Members maps each area id to the tables it contains.
	Members map[string][]string `json:"members,omitempty"`
}

// RenderText implements TextRenderer.
func (r InspectResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Diagram: %s (%s)\n", r.ID, r.Name)
	fmt.Fprintf(w, "Database: %s\n", r.DatabaseType)
	fmt.Fprintf(w, "Checksum: %s\n", r.Checksum)
	fmt.Fprintf(w, "Tables: %d (%d views)\n", r.Tables, r.Views)
	fmt.Fprintf(w, "Relationships: %d\n", r.Relationships)
	fmt.Fprintf(w, "Dependencies: %d\n", r.Dependencies)
	fmt.Fprintf(w, "Areas: %d\n", r.Areas)
	fmt.Fprintf(w, "Notes: %d\n", r.Notes)
	fmt.Fprintf(w, "Custom types: %d\n", r.CustomTypes)
	fmt.Fprintf(w, "Visible: %d nodes, %d edges\n", r.VisibleNodes, r.VisibleEdges)
	areas := make([]string, 0, len(r.Members))
	for id := range r.Members {
		areas = append(areas, id)
	}
	sort.Strings(areas)
	for _, id := range areas {
		fmt.Fprintf(w, "Area %s: %s\n", id, strings.Join(r.Members[id], ", "))
	}
	if len(r.Overlap) == 0 {
		fmt.Fprintln(w, "Overlap: none")
		return
	}
	fmt.Fprintf(w, "Overlap: %d cluster(s)\n", len(r.Overlap))
	for _, c := range r.Overlap {
		fmt.Fprintf(w, "  - %s\n", strings.Join(c, ", "))
	}
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect [diagram-id]",
		Short: "Summarize a diagram and its overlap clusters",
		Long: `Load a diagram into a read-only engine and report its contents, its
checksum, which tables each area contains, and which tables are stacked on
top of each other.

Examples:
  erdsync inspect 0b6f8c1e
  erdsync inspect --file ./fixtures/shop.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutputFormatter(rootOpts, cmd)
			if opts.File != "" {
				d, err := harness.LoadDiagram(opts.File)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read diagram", err)
				}
				return report(out, d)
			}
			if len(args) == 0 {
				return NewExitError(ExitCommandError, "diagram id or --file is required")
			}
			return withStore(rootOpts, cmd, func(ctx context.Context, _ config.Config, st store.DiagramStore) error {
				d, err := st.GetDiagram(ctx, args[0])
				if err != nil {
					return notFound(args[0], err)
				}
				return report(out, d)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML diagram file")

	return cmd
}

func report(out *OutputFormatter, d diagram.Diagram) error {
	r, err := Inspect(d)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to inspect diagram", err)
	}
	return out.Success(r)
}

// Inspect projects d through a read-only engine and summarizes it.
func Inspect(d diagram.Diagram) (InspectResult, error) {
	sum, err := diagram.Checksum(d)
	if err != nil {
		return InspectResult{}, err
	}

	b := bus.New()
	m := diagram.NewModel(diagram.WithPublisher(b))
	m.Load(d)
	e := engine.New(m, b, engine.WithReadOnly(true))
	defer e.Close()

	r := InspectResult{
		ID:            d.ID,
		Name:          d.Name,
		DatabaseType:  d.DatabaseType,
		Checksum:      sum,
		Relationships: len(d.Relationships),
		Dependencies:  len(d.Dependencies),
		Areas:         len(d.Areas),
		Notes:         len(d.Notes),
		CustomTypes:   len(d.CustomTypes),
		Overlap:       e.OverlapClusters(),
	}
	if r.Overlap == nil {
		r.Overlap = [][]string{}
	}
	for _, t := range d.Tables {
		if t.IsView {
			r.Views++
			continue
		}
		r.Tables++
	}
	for _, t := range m.Tables() {
		if t.ParentAreaID == "" {
			continue
		}
		if r.Members == nil {
			r.Members = make(map[string][]string)
		}
		r.Members[t.ParentAreaID] = append(r.Members[t.ParentAreaID], t.ID)
	}
	for _, n := range e.Nodes() {
		if !n.Hidden && n.Kind != view.KindCursor {
			r.VisibleNodes++
		}
	}
	for _, ed := range e.Edges() {
		if !ed.Hidden {
			r.VisibleEdges++
		}
	}
	return r, nil
}
