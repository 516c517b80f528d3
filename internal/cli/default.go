package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/erdsync/internal/config"
	"github.com/roach88/erdsync/internal/store"
)

// DefaultResult reports the store's default diagram.
type DefaultResult struct {
	DefaultDiagramID string `json:"defaultDiagramId"`
}

// RenderText implements TextRenderer.
func (r DefaultResult) RenderText(w io.Writer) {
	if r.DefaultDiagramID == "" {
		fmt.Fprintln(w, "No default diagram.")
		return
	}
	fmt.Fprintf(w, "Default diagram: %s\n", r.DefaultDiagramID)
}

// NewDefaultCommand creates the default command.
func NewDefaultCommand(rootOpts *RootOptions) *cobra.Command {
	var clearDefault bool

	cmd := &cobra.Command{
		Use:   "default [diagram-id]",
		Short: "Show or set the default diagram",
		Long: `Without arguments, print the diagram serve opens when none is given.
With a diagram id, make it the default. --clear removes the default.

Examples:
  erdsync default
  erdsync default 0b6f8c1e
  erdsync default --clear`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearDefault && len(args) > 0 {
				return NewExitError(ExitCommandError, "--clear does not take a diagram id")
			}
			return withStore(rootOpts, cmd, func(ctx context.Context, _ config.Config, st store.DiagramStore) error {
				sc, err := st.GetConfig(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read store config", err)
				}
				switch {
				case clearDefault:
					sc.DefaultDiagramID = ""
				case len(args) == 1:
					if _, err := st.GetDiagram(ctx, args[0]); err != nil {
						return notFound(args[0], err)
					}
					sc.DefaultDiagramID = args[0]
				default:
					return NewOutputFormatter(rootOpts, cmd).Success(DefaultResult{DefaultDiagramID: sc.DefaultDiagramID})
				}
				if err := st.UpdateConfig(ctx, sc); err != nil {
					return WrapExitError(ExitCommandError, "failed to update store config", err)
				}
				return NewOutputFormatter(rootOpts, cmd).Success(DefaultResult{DefaultDiagramID: sc.DefaultDiagramID})
			})
		},
	}

	cmd.Flags().BoolVar(&clearDefault, "clear", false, "clear the default diagram")

	return cmd
}
