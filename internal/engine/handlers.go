package engine

import (
	"context"

	"github.com/roach88/courseswap/internal/ir"
)

func (c Init) apply(ctx context.Context, s *scope, call Call) (any, error) {
	if s.members == nil {
		return nil, errExternalDirectory(c.Name())
	}
	return nil, s.members.Init(ctx, call.Caller, c.Owner)
}

func (c AdmitTeacher) apply(ctx context.Context, s *scope, call Call) (any, error) {
	if s.members == nil {
		return nil, errExternalDirectory(c.Name())
	}
	return nil, s.members.Admit(ctx, call.Caller, c.Account, ir.RoleTeacher)
}

func (c AdmitStudent) apply(ctx context.Context, s *scope, call Call) (any, error) {
	if s.members == nil {
		return nil, errExternalDirectory(c.Name())
	}
	return nil, s.members.Admit(ctx, call.Caller, c.Account, ir.RoleStudent)
}

func (c IsMember) apply(ctx context.Context, s *scope, _ Call) (any, error) {
	return s.dir.IsMember(ctx, c.Account)
}

func (c IsTeacher) apply(ctx context.Context, s *scope, _ Call) (any, error) {
	return s.dir.IsTeacher(ctx, c.Account)
}

func (c CreateCourse) apply(ctx context.Context, s *scope, call Call) (any, error) {
	return s.catalog.CreateCourse(ctx, call.Caller, c.Course, c.Capacity, c.StartDate)
}

func (c GetCourse) apply(ctx context.Context, s *scope, _ Call) (any, error) {
	return s.catalog.GetCourse(ctx, c.Course)
}

func (c RegisterToCourse) apply(ctx context.Context, s *scope, call Call) (any, error) {
	return nil, s.catalog.RegisterStudent(ctx, c.Course, call.Caller, call.Now)
}

func (c GetOwnRegistrations) apply(ctx context.Context, s *scope, call Call) (any, error) {
	return s.ledger.ListTokens(ctx, call.Caller)
}

func (c GetProposedSwaps) apply(ctx context.Context, s *scope, _ Call) (any, error) {
	list, err := s.proposals.load(ctx, c.Course)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ir.Errorf(ir.KindNoProposedSwap, c.Name(), "no open proposals on %s", c.Course.Short())
	}
	return list, nil
}

func errExternalDirectory(op string) error {
	return ir.Errorf(ir.KindInsufficientPermissions, op, "membership is managed by an external directory")
}
