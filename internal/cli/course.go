package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/courseswap/internal/engine"
	"github.com/roach88/courseswap/internal/ir"
)

// CourseCreateOptions holds flags for course create.
type CourseCreateOptions struct {
	*RootOptions
	ID       string
	Capacity uint32
	Start    string
	Caller   string
}

// NewCourseCommand creates the course command group.
func NewCourseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "course",
		Short: "Create and inspect courses",
	}
	cmd.AddCommand(newCourseCreateCommand(rootOpts))
	cmd.AddCommand(newCourseShowCommand(rootOpts))
	cmd.AddCommand(newCourseIDCommand(rootOpts))
	return cmd
}

func newCourseCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CourseCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a course taught by the caller",
		Long: `Create a course with the given capacity and start date. The course id
is derived from its name, or given directly with --id. Creating a course
under an existing id replaces it.

Examples:
  courseswap course create Algorithms --capacity 30 --start 2027-01-10T09:00:00Z --as @turing
  courseswap course create --id 3f...e1 --capacity 1 --start 2027-01-10T09:00:00Z --as @turing`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCourseCreate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "course id as 64 hex characters")
	cmd.Flags().Uint32Var(&opts.Capacity, "capacity", 0, "number of seats (required)")
	cmd.Flags().StringVar(&opts.Start, "start", "", "start date, RFC 3339 (required)")
	_ = cmd.MarkFlagRequired("capacity")
	_ = cmd.MarkFlagRequired("start")
	callerFlag(cmd, &opts.Caller)

	return cmd
}

func runCourseCreate(opts *CourseCreateOptions, args []string, cmd *cobra.Command) error {
	id, err := courseArg(opts.ID, args)
	if err != nil {
		return err
	}
	start, err := parseTime("--start", opts.Start)
	if err != nil {
		return err
	}
	caller, err := resolveAccount("--as", opts.Caller)
	if err != nil {
		return err
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		res, err := dispatch(ctx, a, engine.Call{Caller: caller}, engine.CreateCourse{
			Course:    id,
			Capacity:  opts.Capacity,
			StartDate: start,
		})
		if err != nil {
			return err
		}
		course := res.(ir.Course)
		return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(
			course, fmt.Sprintf("✓ Created course %s\n%s", course.ID, formatCourse(course)))
	})
}

func newCourseShowCommand(rootOpts *RootOptions) *cobra.Command {
	var idFlag string

	cmd := &cobra.Command{
		Use:   "show [name]",
		Short: "Show a course and its roster",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := courseArg(idFlag, args)
			if err != nil {
				return err
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				res, err := dispatch(ctx, a, engine.Call{}, engine.GetCourse{Course: id})
				if err != nil {
					return err
				}
				course := res.(ir.Course)
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(course, formatCourse(course))
			})
		},
	}

	cmd.Flags().StringVar(&idFlag, "id", "", "course id as 64 hex characters")
	return cmd
}

func newCourseIDCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "id <name>",
		Short: "Print the course id derived from a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ir.CourseIDFromName(args[0])
			return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(
				map[string]any{"name": args[0], "id": id}, id.String())
		},
	}
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	var caller, now string

	cmd := &cobra.Command{
		Use:   "register <course>",
		Short: "Register the caller to a course",
		Long: `Register the caller to a course and issue their registration token.

Fails when the caller is not a school member, the course does not exist,
is full, already lists the caller, or has started. --now overrides the
clock the start date is checked against.

Examples:
  courseswap register Algorithms --as @alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveCourse("course", args[0])
			if err != nil {
				return err
			}
			callerID, err := resolveAccount("--as", caller)
			if err != nil {
				return err
			}
			call := engine.Call{Caller: callerID}
			if now != "" {
				if call.Now, err = parseTime("--now", now); err != nil {
					return err
				}
			}

			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if _, err := dispatch(ctx, a, call, engine.RegisterToCourse{Course: id}); err != nil {
					return err
				}
				token := ir.RegistrationToken{Owner: callerID, CourseID: id}
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(
					token, fmt.Sprintf("✓ Registered %s to %s", callerID, id))
			})
		},
	}

	callerFlag(cmd, &caller)
	cmd.Flags().StringVar(&now, "now", "", "registration time, RFC 3339 (default: current time)")
	return cmd
}

// NewRegistrationsCommand creates the registrations command.
func NewRegistrationsCommand(rootOpts *RootOptions) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   "registrations",
		Short: "List the caller's registration tokens",
		Long: `List the registration tokens the caller holds. Tokens escrowed in a
swap proposal or counter-offer are not listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			callerID, err := resolveAccount("--as", caller)
			if err != nil {
				return err
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				res, err := dispatch(ctx, a, engine.Call{Caller: callerID}, engine.GetOwnRegistrations{})
				if err != nil {
					return err
				}
				tokens := res.([]ir.RegistrationToken)
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(tokens, formatTokens(tokens))
			})
		},
	}

	callerFlag(cmd, &caller)
	return cmd
}

// courseArg resolves a course from either --id or the single positional
// name argument.
func courseArg(idFlag string, args []string) (ir.CourseID, error) {
	switch {
	case idFlag != "" && len(args) > 0:
		return ir.CourseID{}, NewExitError(ExitCommandError, "give either a course name or --id, not both")
	case idFlag != "":
		id, err := ir.ParseCourseID(idFlag)
		if err != nil {
			return ir.CourseID{}, WrapExitError(ExitCommandError, "invalid --id", err)
		}
		return id, nil
	case len(args) == 1:
		return resolveCourse("course", args[0])
	}
	return ir.CourseID{}, NewExitError(ExitCommandError, "a course name or --id is required")
}

func parseTime(flag, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s", flag), err)
	}
	return t.UTC(), nil
}

func formatCourse(c ir.Course) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Course:   %s\n", c.ID)
	fmt.Fprintf(&b, "Teacher:  %s\n", c.Teacher)
	fmt.Fprintf(&b, "Starts:   %s\n", c.StartDate.Format(time.RFC3339))
	fmt.Fprintf(&b, "Seats:    %d/%d", len(c.Roster), c.Capacity)
	for _, a := range c.Roster {
		fmt.Fprintf(&b, "\n  - %s", a)
	}
	return b.String()
}

func formatTokens(tokens []ir.RegistrationToken) string {
	lines := make([]string, len(tokens))
	for i, t := range tokens {
		lines[i] = fmt.Sprintf("%s  %s", t.CourseID, t.Owner.Short())
	}
	return strings.Join(lines, "\n")
}
