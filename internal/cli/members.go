package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/courseswap/internal/engine"
	"github.com/roach88/courseswap/internal/ir"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var owner, caller string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set the school owner",
		Long: `Set the school owner and admit them as a teacher.

The first init may be run by anyone; afterwards only the current owner
may hand the school over.

Examples:
  courseswap init --owner @principal --as @principal`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				ownerID, err := resolveAccount("--owner", owner)
				if err != nil {
					return err
				}
				callerID, err := resolveAccount("--as", caller)
				if err != nil {
					return err
				}
				if _, err := dispatch(ctx, a, engine.Call{Caller: callerID}, engine.Init{Owner: ownerID}); err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(
					map[string]any{"owner": ownerID},
					fmt.Sprintf("✓ School owned by %s", ownerID),
				)
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "new owner account (required)")
	_ = cmd.MarkFlagRequired("owner")
	callerFlag(cmd, &caller)

	return cmd
}

// NewAdmitCommand creates the admit command.
func NewAdmitCommand(rootOpts *RootOptions) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   "admit <teacher|student> <account>",
		Short: "Admit a school member",
		Long: `Admit an account as a teacher or a student. Only the owner may admit;
re-admitting a member replaces their role.

Examples:
  courseswap admit teacher @turing --as @principal
  courseswap admit student @alice --as @principal`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(ir.RoleTeacher), string(ir.RoleStudent)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				account, err := resolveAccount("account", args[1])
				if err != nil {
					return err
				}
				callerID, err := resolveAccount("--as", caller)
				if err != nil {
					return err
				}

				var command engine.Command
				switch ir.Role(args[0]) {
				case ir.RoleTeacher:
					command = engine.AdmitTeacher{Account: account}
				case ir.RoleStudent:
					command = engine.AdmitStudent{Account: account}
				default:
					return NewExitError(ExitCommandError, fmt.Sprintf("role must be teacher or student, got %q", args[0]))
				}

				if _, err := dispatch(ctx, a, engine.Call{Caller: callerID}, command); err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(
					map[string]any{"account": account, "role": args[0]},
					fmt.Sprintf("✓ Admitted %s as %s", account, args[0]),
				)
			})
		},
	}

	callerFlag(cmd, &caller)
	return cmd
}

// memberStatus is the output of the member command.
type memberStatus struct {
	Account ir.AccountID `json:"account"`
	Member  bool         `json:"member"`
	Teacher bool         `json:"teacher"`
}

// NewMemberCommand creates the member command.
func NewMemberCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "member <account>",
		Short: "Show whether an account is a school member or teacher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				account, err := resolveAccount("account", args[0])
				if err != nil {
					return err
				}
				member, err := dispatch(ctx, a, engine.Call{}, engine.IsMember{Account: account})
				if err != nil {
					return err
				}
				teacher, err := dispatch(ctx, a, engine.Call{}, engine.IsTeacher{Account: account})
				if err != nil {
					return err
				}

				status := memberStatus{Account: account, Member: member.(bool), Teacher: teacher.(bool)}
				role := "not a member"
				switch {
				case status.Teacher:
					role = "teacher"
				case status.Member:
					role = "student"
				}
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(
					status, fmt.Sprintf("%s: %s", account, role))
			})
		},
	}
}
