package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/erdsync/internal/config"
	"github.com/roach88/erdsync/internal/store"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <diagram-id>",
		Short: "Delete a stored diagram",
		Long: `Delete a diagram from the configured store. If it was the default
diagram, the default is cleared.

Example:
  erdsync delete 0b6f8c1e`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withStore(rootOpts, cmd, func(ctx context.Context, _ config.Config, st store.DiagramStore) error {
				if err := st.DeleteDiagram(ctx, id); err != nil {
					return notFound(id, err)
				}
				out := NewOutputFormatter(rootOpts, cmd)
				if out.Format == "json" {
					return out.Success(map[string]string{"deleted": id})
				}
				return out.Success(fmt.Sprintf("Deleted diagram %s", id))
			})
		},
	}
}
