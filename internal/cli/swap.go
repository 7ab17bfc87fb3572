package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/courseswap/internal/engine"
	"github.com/roach88/courseswap/internal/ir"
)

// NewSwapCommand creates the swap command group.
func NewSwapCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Negotiate seat swaps",
		Long: `Negotiate seat swaps between students.

A student proposes one of their registrations; other students counter with
one of theirs; the proposer accepts one counter-offer, which exchanges the
two roster entries atomically. Offered tokens are held in escrow until the
proposal is accepted or withdrawn.`,
	}
	cmd.AddCommand(newSwapProposeCommand(rootOpts))
	cmd.AddCommand(newSwapListCommand(rootOpts))
	cmd.AddCommand(newSwapCounterCommand(rootOpts))
	cmd.AddCommand(newSwapAcceptCommand(rootOpts))
	cmd.AddCommand(newSwapWithdrawCommand(rootOpts))
	cmd.AddCommand(newSwapWithdrawCounterCommand(rootOpts))
	return cmd
}

func newSwapProposeCommand(rootOpts *RootOptions) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   "propose <course>",
		Short: "Offer the caller's registration in a course for swap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			course, err := resolveCourse("course", args[0])
			if err != nil {
				return err
			}
			callerID, err := resolveAccount("--as", caller)
			if err != nil {
				return err
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if _, err := dispatch(ctx, a, engine.Call{Caller: callerID}, engine.ProposeSwap{Course: course}); err != nil {
					return err
				}
				offer := ir.RegistrationToken{Owner: callerID, CourseID: course}
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(
					offer, fmt.Sprintf("✓ Proposed %s for swap", offer))
			})
		},
	}

	callerFlag(cmd, &caller)
	return cmd
}

func newSwapListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <course>",
		Short: "List open swap proposals on a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			course, err := resolveCourse("course", args[0])
			if err != nil {
				return err
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				res, err := dispatch(ctx, a, engine.Call{}, engine.GetProposedSwaps{Course: course})
				if err != nil {
					return err
				}
				list := res.([]ir.SwapProposal)
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(list, formatProposals(list))
			})
		},
	}
}

// counterFlags are shared by swap counter and swap withdraw-counter.
type counterFlags struct {
	offerer string
	with    string
	caller  string
}

func (f *counterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.offerer, "offerer", "", "account that proposed the swap (required)")
	cmd.Flags().StringVar(&f.with, "with", "", "course of the caller's counter-offer (required)")
	_ = cmd.MarkFlagRequired("offerer")
	_ = cmd.MarkFlagRequired("with")
	callerFlag(cmd, &f.caller)
}

func (f *counterFlags) resolve(target string) (ir.CourseID, ir.AccountID, ir.CourseID, ir.AccountID, error) {
	targetID, err := resolveCourse("target course", target)
	if err != nil {
		return ir.CourseID{}, ir.AccountID{}, ir.CourseID{}, ir.AccountID{}, err
	}
	offerer, err := resolveAccount("--offerer", f.offerer)
	if err != nil {
		return ir.CourseID{}, ir.AccountID{}, ir.CourseID{}, ir.AccountID{}, err
	}
	with, err := resolveCourse("--with", f.with)
	if err != nil {
		return ir.CourseID{}, ir.AccountID{}, ir.CourseID{}, ir.AccountID{}, err
	}
	caller, err := resolveAccount("--as", f.caller)
	if err != nil {
		return ir.CourseID{}, ir.AccountID{}, ir.CourseID{}, ir.AccountID{}, err
	}
	return targetID, offerer, with, caller, nil
}

func newSwapCounterCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &counterFlags{}

	cmd := &cobra.Command{
		Use:   "counter <target-course>",
		Short: "Counter a proposal with one of the caller's registrations",
		Long: `Counter the offerer's proposal on target-course with the caller's
registration in the --with course. The counter-offered token is escrowed
until the proposal is accepted or withdrawn.

Examples:
  courseswap swap counter Algorithms --offerer @alice --with Compilers --as @bob`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, offerer, with, caller, err := flags.resolve(args[0])
			if err != nil {
				return err
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				_, err := dispatch(ctx, a, engine.Call{Caller: caller}, engine.CounterSwapProposal{
					TargetCourse:  target,
					Offerer:       offerer,
					CounterCourse: with,
				})
				if err != nil {
					return err
				}
				counter := ir.RegistrationToken{Owner: caller, CourseID: with}
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(
					counter, fmt.Sprintf("✓ Countered %s's proposal with %s", offerer.Short(), counter))
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newSwapAcceptCommand(rootOpts *RootOptions) *cobra.Command {
	var from, course, caller string

	cmd := &cobra.Command{
		Use:   "accept <offered-course>",
		Short: "Accept a counter-offer on the caller's proposal",
		Long: `Accept the counter-offer from --from for --course on the caller's
proposal for offered-course. Roster entries of both courses are exchanged;
the other counter-offers are forfeited, or refunded when
engine.refund_on_accept is set.

Examples:
  courseswap swap accept Algorithms --from @bob --course Compilers --as @alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offered, err := resolveCourse("offered course", args[0])
			if err != nil {
				return err
			}
			owner, err := resolveAccount("--from", from)
			if err != nil {
				return err
			}
			accepted, err := resolveCourse("--course", course)
			if err != nil {
				return err
			}
			callerID, err := resolveAccount("--as", caller)
			if err != nil {
				return err
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				res, err := dispatch(ctx, a, engine.Call{Caller: callerID}, engine.AcceptCounterOffer{
					OfferedCourse:  offered,
					AcceptedCourse: accepted,
					AcceptedOwner:  owner,
				})
				if err != nil {
					return err
				}
				result := res.(engine.AcceptResult)
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(result, formatAccept(result))
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "owner of the accepted counter-offer (required)")
	cmd.Flags().StringVar(&course, "course", "", "course of the accepted counter-offer (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("course")
	callerFlag(cmd, &caller)
	return cmd
}

func newSwapWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   "withdraw <course>",
		Short: "Withdraw the caller's proposal and refund every escrowed token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			course, err := resolveCourse("course", args[0])
			if err != nil {
				return err
			}
			callerID, err := resolveAccount("--as", caller)
			if err != nil {
				return err
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				res, err := dispatch(ctx, a, engine.Call{Caller: callerID}, engine.WithdrawProposal{Course: course})
				if err != nil {
					return err
				}
				result := res.(engine.WithdrawResult)
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(result, formatRefunds(result.Refunded))
			})
		},
	}

	callerFlag(cmd, &caller)
	return cmd
}

func newSwapWithdrawCounterCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &counterFlags{}

	cmd := &cobra.Command{
		Use:   "withdraw-counter <target-course>",
		Short: "Withdraw the caller's counter-offer and refund it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, offerer, with, caller, err := flags.resolve(args[0])
			if err != nil {
				return err
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				res, err := dispatch(ctx, a, engine.Call{Caller: caller}, engine.WithdrawCounterOffer{
					TargetCourse:  target,
					Offerer:       offerer,
					CounterCourse: with,
				})
				if err != nil {
					return err
				}
				result := res.(engine.WithdrawResult)
				return newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr()).Success(result, formatRefunds(result.Refunded))
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func formatProposals(list []ir.SwapProposal) string {
	var b strings.Builder
	for i, p := range list {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s offers %s", p.Offer.Owner, p.Offer.CourseID)
		for _, c := range p.CounterOffers {
			fmt.Fprintf(&b, "\n  ← %s with %s", c.Owner, c.CourseID)
		}
	}
	return b.String()
}

func formatAccept(r engine.AcceptResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Swap accepted\n")
	fmt.Fprintf(&b, "  received:  %s\n", r.Received)
	fmt.Fprintf(&b, "  delivered: %s", r.Delivered)
	for _, t := range r.Refunded {
		fmt.Fprintf(&b, "\n  refunded:  %s", t)
	}
	for _, t := range r.Forfeited {
		fmt.Fprintf(&b, "\n  forfeited: %s", t)
	}
	return b.String()
}

func formatRefunds(tokens []ir.RegistrationToken) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Withdrawn, %d token(s) refunded", len(tokens))
	for _, t := range tokens {
		fmt.Fprintf(&b, "\n  %s", t)
	}
	return b.String()
}
