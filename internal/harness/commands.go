package harness

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/roach88/courseswap/internal/engine"
	"github.com/roach88/courseswap/internal/ir"
)

// builder turns scenario args into an engine command.
type builder func(r *argReader) engine.Command

// builders maps every command name to its argument layout.
var builders = map[string]builder{
	"init": func(r *argReader) engine.Command {
		return engine.Init{Owner: r.account("owner")}
	},
	"admit_as_teacher": func(r *argReader) engine.Command {
		return engine.AdmitTeacher{Account: r.account("account")}
	},
	"admit_as_student": func(r *argReader) engine.Command {
		return engine.AdmitStudent{Account: r.account("account")}
	},
	"is_school_member": func(r *argReader) engine.Command {
		return engine.IsMember{Account: r.account("account")}
	},
	"is_teacher": func(r *argReader) engine.Command {
		return engine.IsTeacher{Account: r.account("account")}
	},
	"create_course": func(r *argReader) engine.Command {
		return engine.CreateCourse{
			Course:    r.course("course"),
			Capacity:  r.capacity("capacity"),
			StartDate: r.time("start"),
		}
	},
	"get_course": func(r *argReader) engine.Command {
		return engine.GetCourse{Course: r.course("course")}
	},
	"register_to_course": func(r *argReader) engine.Command {
		return engine.RegisterToCourse{Course: r.course("course")}
	},
	"get_own_registrations": func(r *argReader) engine.Command {
		return engine.GetOwnRegistrations{}
	},
	"propose_swap": func(r *argReader) engine.Command {
		return engine.ProposeSwap{Course: r.course("course")}
	},
	"get_proposed_swaps": func(r *argReader) engine.Command {
		return engine.GetProposedSwaps{Course: r.course("course")}
	},
	"counter_swap_proposal": func(r *argReader) engine.Command {
		return engine.CounterSwapProposal{
			TargetCourse:  r.course("target"),
			Offerer:       r.account("offerer"),
			CounterCourse: r.course("with"),
		}
	},
	"accept_counter_offer": func(r *argReader) engine.Command {
		return engine.AcceptCounterOffer{
			OfferedCourse:  r.course("offered"),
			AcceptedCourse: r.course("accepted"),
			AcceptedOwner:  r.account("from"),
		}
	},
	"withdraw_proposal": func(r *argReader) engine.Command {
		return engine.WithdrawProposal{Course: r.course("course")}
	},
	"withdraw_counter_offer": func(r *argReader) engine.Command {
		return engine.WithdrawCounterOffer{
			TargetCourse:  r.course("target"),
			Offerer:       r.account("offerer"),
			CounterCourse: r.course("with"),
		}
	},
}

// Ops returns the supported command names, sorted.
func Ops() []string {
	ops := make([]string, 0, len(builders))
	for op := range builders {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// argReader resolves scenario args, remembering the label of every id it
// produces. The first error sticks; later reads return zero values.
type argReader struct {
	args   map[string]any
	labels labels
	used   map[string]bool
	err    error
}

func (r *argReader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func (r *argReader) raw(name string) (any, bool) {
	v, ok := r.args[name]
	if !ok {
		r.fail("missing arg %q", name)
		return nil, false
	}
	r.used[name] = true
	return v, true
}

func (r *argReader) str(name string) string {
	v, ok := r.raw(name)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	r.fail("arg %q: want a string, got %T", name, v)
	return ""
}

func (r *argReader) account(name string) ir.AccountID {
	s := r.str(name)
	if r.err != nil {
		return ir.AccountID{}
	}
	id, err := r.labels.account(s)
	if err != nil {
		r.fail("arg %q: %v", name, err)
	}
	return id
}

func (r *argReader) course(name string) ir.CourseID {
	s := r.str(name)
	if r.err != nil {
		return ir.CourseID{}
	}
	id, err := r.labels.course(s)
	if err != nil {
		r.fail("arg %q: %v", name, err)
	}
	return id
}

func (r *argReader) capacity(name string) uint32 {
	v, ok := r.raw(name)
	if !ok {
		return 0
	}
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case uint64:
		if x > math.MaxUint32 {
			r.fail("arg %q: %d out of range", name, x)
			return 0
		}
		n = int64(x)
	default:
		r.fail("arg %q: want an integer, got %T", name, v)
		return 0
	}
	if n < 0 || n > math.MaxUint32 {
		r.fail("arg %q: %d out of range", name, n)
		return 0
	}
	return uint32(n)
}

func (r *argReader) time(name string) time.Time {
	v, ok := r.raw(name)
	if !ok {
		return time.Time{}
	}
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case string:
		t, err := time.Parse(time.RFC3339, x)
		if err != nil {
			r.fail("arg %q: %v", name, err)
		}
		return t.UTC()
	}
	r.fail("arg %q: want an RFC 3339 time, got %T", name, v)
	return time.Time{}
}

// done reports unused args, which are almost always typos.
func (r *argReader) done() error {
	if r.err != nil {
		return r.err
	}
	var extra []string
	for name := range r.args {
		if !r.used[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("unknown args: %s", strings.Join(extra, ", "))
	}
	return nil
}

// buildCommand converts a scenario step into an engine command.
func buildCommand(op string, args map[string]any, l labels) (engine.Command, error) {
	b, ok := builders[op]
	if !ok {
		return nil, fmt.Errorf("unknown op %q", op)
	}
	r := &argReader{args: args, labels: l, used: make(map[string]bool)}
	cmd := b(r)
	if err := r.done(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cmd, nil
}

// labels maps hex ids back to the names a scenario used for them.
type labels map[string]string

func (l labels) account(s string) (ir.AccountID, error) {
	id, err := ir.ResolveAccount(s)
	if err != nil {
		return ir.AccountID{}, err
	}
	l.remember(id.String(), s)
	return id, nil
}

func (l labels) course(s string) (ir.CourseID, error) {
	id, err := ir.ResolveCourse(s)
	if err != nil {
		return ir.CourseID{}, err
	}
	l.remember(id.String(), s)
	return id, nil
}

func (l labels) remember(hex, label string) {
	if _, ok := l[hex]; !ok {
		l[hex] = label
	}
}

// name returns the label for a hex id, or s unchanged.
func (l labels) name(s string) string {
	if label, ok := l[s]; ok {
		return label
	}
	return s
}
