package engine

import (
	"context"
	"errors"
	"slices"

	"github.com/roach88/courseswap/internal/ir"
)

func (c ProposeSwap) apply(ctx context.Context, s *scope, call Call) (any, error) {
	found, err := s.ledger.RemoveToken(ctx, call.Caller, c.Course)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ir.Errorf(ir.KindNoSwappableRegistrations, c.Name(), "no active token for %s", c.Course.Short())
	}

	list, err := s.proposals.load(ctx, c.Course)
	if err != nil {
		return nil, err
	}
	list = append(list, ir.SwapProposal{
		Offer:         ir.RegistrationToken{Owner: call.Caller, CourseID: c.Course},
		CounterOffers: []ir.RegistrationToken{},
	})
	return nil, s.proposals.save(ctx, c.Course, list)
}

func (c CounterSwapProposal) apply(ctx context.Context, s *scope, call Call) (any, error) {
	found, err := s.ledger.RemoveToken(ctx, call.Caller, c.CounterCourse)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ir.Errorf(ir.KindNoProposedSwap, c.Name(), "no active token for %s", c.CounterCourse.Short())
	}

	list, err := s.proposals.load(ctx, c.TargetCourse)
	if err != nil {
		return nil, err
	}
	i := findByOfferer(list, c.Offerer)
	if i < 0 {
		return nil, ir.Errorf(ir.KindNoProposedSwap, c.Name(), "%s has no proposal on %s", c.Offerer.Short(), c.TargetCourse.Short())
	}
	list[i].CounterOffers = append(list[i].CounterOffers, ir.RegistrationToken{Owner: call.Caller, CourseID: c.CounterCourse})
	return nil, s.proposals.save(ctx, c.TargetCourse, list)
}

func (c AcceptCounterOffer) apply(ctx context.Context, s *scope, call Call) (any, error) {
	list, err := s.proposals.load(ctx, c.OfferedCourse)
	if err != nil {
		return nil, err
	}
	i := findByOfferer(list, call.Caller)
	if i < 0 {
		return nil, ir.Errorf(ir.KindNoProposedSwap, c.Name(), "no proposal on %s", c.OfferedCourse.Short())
	}
	proposal := list[i]
	list = slices.Delete(list, i, i+1)

	j := proposal.FindCounterOffer(c.AcceptedOwner, c.AcceptedCourse)
	if j < 0 {
		return nil, ir.Errorf(ir.KindNoProposedSwap, c.Name(), "no counter-offer from %s for %s", c.AcceptedOwner.Short(), c.AcceptedCourse.Short())
	}
	if proposal.Offer.CourseID != c.OfferedCourse {
		return nil, ir.Invariantf(c.Name(), "proposal under %s offers %s", c.OfferedCourse.Short(), proposal.Offer.CourseID.Short())
	}

	if err := c.checkRosters(ctx, s, call.Caller); err != nil {
		return nil, err
	}

	result := AcceptResult{
		Received:  ir.RegistrationToken{Owner: call.Caller, CourseID: c.AcceptedCourse},
		Delivered: ir.RegistrationToken{Owner: c.AcceptedOwner, CourseID: c.OfferedCourse},
		Refunded:  []ir.RegistrationToken{},
		Forfeited: []ir.RegistrationToken{},
	}
	for k, other := range proposal.CounterOffers {
		if k == j {
			continue
		}
		if !s.refundOnAccept {
			result.Forfeited = append(result.Forfeited, other)
			continue
		}
		if err := s.ledger.Deposit(ctx, other); err != nil {
			return nil, err
		}
		result.Refunded = append(result.Refunded, other)
	}

	if err := s.ledger.Deposit(ctx, result.Received); err != nil {
		return nil, err
	}
	if err := s.ledger.Deposit(ctx, result.Delivered); err != nil {
		return nil, err
	}
	if err := s.catalog.ReplaceRosterEntry(ctx, c.AcceptedCourse, c.AcceptedOwner, call.Caller); err != nil {
		return nil, err
	}
	if err := s.catalog.ReplaceRosterEntry(ctx, c.OfferedCourse, call.Caller, c.AcceptedOwner); err != nil {
		return nil, err
	}
	if err := s.proposals.save(ctx, c.OfferedCourse, list); err != nil {
		return nil, err
	}
	return result, nil
}

// checkRosters rejects swaps that would put an account on a roster twice.
// A missing course is left for ReplaceRosterEntry to report.
func (c AcceptCounterOffer) checkRosters(ctx context.Context, s *scope, caller ir.AccountID) error {
	checks := []struct {
		course  ir.CourseID
		account ir.AccountID
	}{
		{c.AcceptedCourse, caller},
		{c.OfferedCourse, c.AcceptedOwner},
	}
	for _, chk := range checks {
		course, err := s.catalog.GetCourse(ctx, chk.course)
		if errors.Is(err, ir.ErrNonexistentCourse) {
			continue
		}
		if err != nil {
			return err
		}
		if course.HasMember(chk.account) {
			return ir.Errorf(ir.KindAlreadyRegistered, c.Name(), "%s already on roster of %s", chk.account.Short(), chk.course.Short())
		}
	}
	return nil
}

func (c WithdrawProposal) apply(ctx context.Context, s *scope, call Call) (any, error) {
	list, err := s.proposals.load(ctx, c.Course)
	if err != nil {
		return nil, err
	}
	i := findByOfferer(list, call.Caller)
	if i < 0 {
		return nil, ir.Errorf(ir.KindNoProposedSwap, c.Name(), "no proposal on %s", c.Course.Short())
	}
	proposal := list[i]
	list = slices.Delete(list, i, i+1)

	refunded := append([]ir.RegistrationToken{proposal.Offer}, proposal.CounterOffers...)
	for _, tok := range refunded {
		if err := s.ledger.Deposit(ctx, tok); err != nil {
			return nil, err
		}
	}
	if err := s.proposals.save(ctx, c.Course, list); err != nil {
		return nil, err
	}
	return WithdrawResult{Refunded: refunded}, nil
}

func (c WithdrawCounterOffer) apply(ctx context.Context, s *scope, call Call) (any, error) {
	list, err := s.proposals.load(ctx, c.TargetCourse)
	if err != nil {
		return nil, err
	}
	i := findByOfferer(list, c.Offerer)
	if i < 0 {
		return nil, ir.Errorf(ir.KindNoProposedSwap, c.Name(), "%s has no proposal on %s", c.Offerer.Short(), c.TargetCourse.Short())
	}
	j := list[i].FindCounterOffer(call.Caller, c.CounterCourse)
	if j < 0 {
		return nil, ir.Errorf(ir.KindNoProposedSwap, c.Name(), "no counter-offer for %s", c.CounterCourse.Short())
	}
	tok := list[i].CounterOffers[j]
	list[i].CounterOffers = slices.Delete(list[i].CounterOffers, j, j+1)

	if err := s.ledger.Deposit(ctx, tok); err != nil {
		return nil, err
	}
	if err := s.proposals.save(ctx, c.TargetCourse, list); err != nil {
		return nil, err
	}
	return WithdrawResult{Refunded: []ir.RegistrationToken{tok}}, nil
}
