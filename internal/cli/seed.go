package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/courseswap/internal/seed"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   "seed <school.cue>",
		Short: "Populate a school from a CUE definition",
		Long: `Populate a school from a CUE definition: set the owner, admit teachers
and students, and create courses. Every step runs as an engine command,
so the caller must be allowed to initialize the school.

Example school.cue:
  owner: "@principal"
  teachers: ["@turing"]
  students: ["@alice", "@bob"]
  courses: [{name: "Algorithms", teacher: "@turing", capacity: 30, start: "2027-01-10T09:00:00Z"}]

Examples:
  courseswap seed ./school.cue --as @principal`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			school, err := seed.LoadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid school definition", err)
			}
			callerID, err := resolveAccount("--as", caller)
			if err != nil {
				return err
			}

			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				report, err := seed.Apply(ctx, a.engine, callerID, school)
				if err != nil {
					return commandError(err)
				}
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(report,
					fmt.Sprintf("✓ Seeded school: %d teacher(s), %d student(s), %d course(s)",
						report.Teachers, report.Students, len(report.Courses)))
			})
		},
	}

	callerFlag(cmd, &caller)
	return cmd
}
