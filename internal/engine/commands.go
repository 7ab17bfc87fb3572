package engine

import (
	"context"
	"time"

	"github.com/roach88/courseswap/internal/ir"
)

// Call carries the host-supplied caller identity and current time.
// A zero Now is replaced by the engine clock.
type Call struct {
	Caller ir.AccountID
	Now    time.Time
}

// Command is one engine operation. The set is closed: only this package
// can implement it.
type Command interface {
	// Name is the operation name used in logs, spans and errors.
	Name() string

	apply(ctx context.Context, s *scope, call Call) (any, error)
}

// Init records the school owner and admits them as a teacher.
type Init struct {
	Owner ir.AccountID
}

// AdmitTeacher admits Account as a teacher. Owner only.
type AdmitTeacher struct {
	Account ir.AccountID
}

// AdmitStudent admits Account as a student. Owner only.
type AdmitStudent struct {
	Account ir.AccountID
}

// IsMember reports whether Account is a school member. Result: bool.
type IsMember struct {
	Account ir.AccountID
}

// IsTeacher reports whether Account is a teacher. Result: bool.
type IsTeacher struct {
	Account ir.AccountID
}

// CreateCourse creates a course taught by the caller. Result: ir.Course.
type CreateCourse struct {
	Course    ir.CourseID
	Capacity  uint32
	StartDate time.Time
}

// GetCourse returns a course. Result: ir.Course.
type GetCourse struct {
	Course ir.CourseID
}

// RegisterToCourse registers the caller and issues their token.
type RegisterToCourse struct {
	Course ir.CourseID
}

// GetOwnRegistrations lists the caller's Active tokens.
// Result: []ir.RegistrationToken.
type GetOwnRegistrations struct{}

// ProposeSwap escrows the caller's token for Course into a new proposal.
type ProposeSwap struct {
	Course ir.CourseID
}

// GetProposedSwaps lists the open proposals on Course.
// Result: []ir.SwapProposal.
type GetProposedSwaps struct {
	Course ir.CourseID
}

// CounterSwapProposal escrows the caller's token for CounterCourse into
// Offerer's proposal on TargetCourse.
type CounterSwapProposal struct {
	TargetCourse  ir.CourseID
	Offerer       ir.AccountID
	CounterCourse ir.CourseID
}

// AcceptCounterOffer accepts AcceptedOwner's counter-offer for
// AcceptedCourse on the caller's proposal for OfferedCourse.
// Result: AcceptResult.
type AcceptCounterOffer struct {
	OfferedCourse  ir.CourseID
	AcceptedCourse ir.CourseID
	AcceptedOwner  ir.AccountID
}

// WithdrawProposal removes the caller's proposal on Course and refunds
// its offer and every counter-offer. Result: WithdrawResult.
type WithdrawProposal struct {
	Course ir.CourseID
}

// WithdrawCounterOffer removes the caller's counter-offer for
// CounterCourse from Offerer's proposal on TargetCourse and refunds it.
// Result: WithdrawResult.
type WithdrawCounterOffer struct {
	TargetCourse  ir.CourseID
	Offerer       ir.AccountID
	CounterCourse ir.CourseID
}

// AcceptResult describes the token movements of an accepted swap.
type AcceptResult struct {
	// Received is the token minted for the proposer.
	Received ir.RegistrationToken `json:"received"`

	// Delivered is the token minted for the counter-offerer.
	Delivered ir.RegistrationToken `json:"delivered"`

	// Refunded lists non-accepted counter-offers returned to their owners.
	Refunded []ir.RegistrationToken `json:"refunded"`

	// Forfeited lists non-accepted counter-offers that were consumed
	// without refund.
	Forfeited []ir.RegistrationToken `json:"forfeited"`
}

// WithdrawResult lists the tokens returned to their owners.
type WithdrawResult struct {
	Refunded []ir.RegistrationToken `json:"refunded"`
}

// query marks commands that never write. Only queries may read through a
// cache; every other command reads the backend directly.
type query interface {
	query()
}

func (IsMember) query()            {}
func (IsTeacher) query()           {}
func (GetCourse) query()           {}
func (GetOwnRegistrations) query() {}
func (GetProposedSwaps) query()    {}

func (Init) Name() string                 { return "init" }
func (AdmitTeacher) Name() string         { return "admit_as_teacher" }
func (AdmitStudent) Name() string         { return "admit_as_student" }
func (IsMember) Name() string             { return "is_school_member" }
func (IsTeacher) Name() string            { return "is_teacher" }
func (CreateCourse) Name() string         { return "create_course" }
func (GetCourse) Name() string            { return "get_course" }
func (RegisterToCourse) Name() string     { return "register_to_course" }
func (GetOwnRegistrations) Name() string  { return "get_own_registrations" }
func (ProposeSwap) Name() string          { return "propose_swap" }
func (GetProposedSwaps) Name() string     { return "get_proposed_swaps" }
func (CounterSwapProposal) Name() string  { return "counter_swap_proposal" }
func (AcceptCounterOffer) Name() string   { return "accept_counter_offer" }
func (WithdrawProposal) Name() string     { return "withdraw_proposal" }
func (WithdrawCounterOffer) Name() string { return "withdraw_counter_offer" }

// Compile-time checks that every command is in the closed set.
var (
	_ Command = Init{}
	_ Command = AdmitTeacher{}
	_ Command = AdmitStudent{}
	_ Command = IsMember{}
	_ Command = IsTeacher{}
	_ Command = CreateCourse{}
	_ Command = GetCourse{}
	_ Command = RegisterToCourse{}
	_ Command = GetOwnRegistrations{}
	_ Command = ProposeSwap{}
	_ Command = GetProposedSwaps{}
	_ Command = CounterSwapProposal{}
	_ Command = AcceptCounterOffer{}
	_ Command = WithdrawProposal{}
	_ Command = WithdrawCounterOffer{}
)
