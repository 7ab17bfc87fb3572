package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/courseswap/internal/engine"
	"github.com/roach88/courseswap/internal/ir"
)

// Report summarizes an applied school definition.
type Report struct {
	Owner    ir.AccountID  `json:"owner"`
	Teachers int           `json:"teachers"`
	Students int           `json:"students"`
	Courses  []ir.CourseID `json:"courses"`
}

// Apply replays s against e as caller.
//
// The caller must be able to initialize the school: either nobody owns it
// yet, or the caller is the current owner. Steps run in file order; the
// first failing step stops the seed with the earlier steps committed.
func Apply(ctx context.Context, e *engine.Engine, caller ir.AccountID, s *School) (*Report, error) {
	owner, err := ir.ResolveAccount(s.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	call := engine.Call{Caller: caller}
	// The new owner performs every admission and the teachers create courses.
	asOwner := engine.Call{Caller: owner}

	if err := e.Init(ctx, call, owner); err != nil {
		return nil, fmt.Errorf("init school: %w", err)
	}
	report := &Report{Owner: owner, Courses: []ir.CourseID{}}

	admit := func(handles []string, role ir.Role) (int, error) {
		for _, h := range handles {
			acct, err := ir.ResolveAccount(h)
			if err != nil {
				return 0, fmt.Errorf("%s %q: %w", role, h, err)
			}
			if err := e.Admit(ctx, asOwner, acct, role); err != nil {
				return 0, fmt.Errorf("admit %s %q: %w", role, h, err)
			}
		}
		return len(handles), nil
	}
	if report.Teachers, err = admit(s.Teachers, ir.RoleTeacher); err != nil {
		return nil, err
	}
	if report.Students, err = admit(s.Students, ir.RoleStudent); err != nil {
		return nil, err
	}

	for _, c := range s.Courses {
		teacher, err := ir.ResolveAccount(c.Teacher)
		if err != nil {
			return nil, fmt.Errorf("course %q teacher: %w", c.Name, err)
		}
		id, err := c.CourseID()
		if err != nil {
			return nil, err
		}
		start, err := c.StartDate()
		if err != nil {
			return nil, err
		}
		_, err = e.CreateCourse(ctx, engine.Call{Caller: teacher}, engine.CreateCourse{
			Course:    id,
			Capacity:  c.Capacity,
			StartDate: start,
		})
		if err != nil {
			return nil, fmt.Errorf("create course %q: %w", c.Name, err)
		}
		report.Courses = append(report.Courses, id)
	}

	slog.Info("school seeded",
		"owner", owner.Short(),
		"teachers", report.Teachers,
		"students", report.Students,
		"courses", len(report.Courses),
	)
	return report, nil
}
