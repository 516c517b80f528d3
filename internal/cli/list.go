package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/erdsync/internal/config"
	"github.com/roach88/erdsync/internal/store"
)

// ListEntry is one stored diagram.
type ListEntry struct {
	store.Summary
	Default bool `json:"default,omitempty"`
}

// ListResult holds the stored diagrams, most recently updated first.
type ListResult struct {
	Diagrams []ListEntry `json:"diagrams"`
}

// RenderText implements TextRenderer.
func (r ListResult) RenderText(w io.Writer) {
	if len(r.Diagrams) == 0 {
		fmt.Fprintln(w, "No diagrams stored.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tDATABASE\tTABLES\tUPDATED")
	for _, d := range r.Diagrams {
		mark := ""
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			mark, d.ID, d.Name, d.DatabaseType, d.Tables, d.UpdatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored diagrams",
		Long: `List the diagrams in the configured store, most recently updated first.
The default diagram is marked with *.

Examples:
  erdsync list
  erdsync list --db ./erdsync.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, cmd, func(ctx context.Context, _ config.Config, st store.DiagramStore) error {
				summaries, err := st.ListDiagrams(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to list diagrams", err)
				}
				sc, err := st.GetConfig(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read store config", err)
				}
				result := ListResult{Diagrams: make([]ListEntry, 0, len(summaries))}
				for _, s := range summaries {
					result.Diagrams = append(result.Diagrams, ListEntry{Summary: s, Default: s.ID == sc.DefaultDiagramID})
				}
				return NewOutputFormatter(rootOpts, cmd).Success(result)
			})
		},
	}
}
