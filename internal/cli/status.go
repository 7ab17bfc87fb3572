package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/courseswap/internal/store"
)

// StatusResult is the output of the status command.
type StatusResult struct {
	DB     string         `json:"db"`
	Tables map[string]int `json:"tables"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show how many records each table of the database holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				stats, err := a.store.Stats(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read database", err)
				}
				result := StatusResult{DB: a.cfg.DB, Tables: stats}
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(result, formatStatus(result))
			})
		},
	}
}

func formatStatus(r StatusResult) string {
	var b strings.Builder
	b.WriteString(r.DB)
	for _, table := range store.Tables {
		fmt.Fprintf(&b, "\n  %-10s %d", table, r.Tables[table])
	}
	return b.String()
}
