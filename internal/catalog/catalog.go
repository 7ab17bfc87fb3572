// Package catalog owns Course records and their rosters.
package catalog

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/courseswap/internal/directory"
	"github.com/roach88/courseswap/internal/ir"
	"github.com/roach88/courseswap/internal/ledger"
	"github.com/roach88/courseswap/internal/store"
)

// Catalog creates courses and applies registrations and roster swaps.
type Catalog struct {
	kv     store.KV
	dir    directory.Reader
	ledger *ledger.Ledger
}

// New returns a catalog over kv. Registrations issue tokens through l.
func New(kv store.KV, dir directory.Reader, l *ledger.Ledger) *Catalog {
	return &Catalog{kv: kv, dir: dir, ledger: l}
}

func courseKey(id ir.CourseID) string {
	return store.Key(store.TableCourses, id.String())
}

func (c *Catalog) load(ctx context.Context, id ir.CourseID) (ir.Course, bool, error) {
	var course ir.Course
	found, err := store.GetJSON(ctx, c.kv, courseKey(id), &course)
	if err != nil {
		return ir.Course{}, false, fmt.Errorf("load course %s: %w", id.Short(), err)
	}
	if course.Roster == nil {
		course.Roster = []ir.AccountID{}
	}
	return course, found, nil
}

func (c *Catalog) save(ctx context.Context, course ir.Course) error {
	if err := store.PutJSON(ctx, c.kv, courseKey(course.ID), course); err != nil {
		return fmt.Errorf("save course %s: %w", course.ID.Short(), err)
	}
	return nil
}

// CreateCourse stores a new course with an empty roster.
// Any course already stored under id is overwritten.
func (c *Catalog) CreateCourse(ctx context.Context, teacher ir.AccountID, id ir.CourseID, capacity uint32, start time.Time) (ir.Course, error) {
	const op = "create_course"
	ok, err := c.dir.IsTeacher(ctx, teacher)
	if err != nil {
		return ir.Course{}, err
	}
	if !ok {
		return ir.Course{}, ir.Errorf(ir.KindInsufficientPermissions, op, "%s is not a teacher", teacher.Short())
	}
	course := ir.Course{
		Teacher:   teacher,
		ID:        id,
		Capacity:  capacity,
		Roster:    []ir.AccountID{},
		StartDate: start.UTC(),
	}
	if err := c.save(ctx, course); err != nil {
		return ir.Course{}, err
	}
	return course, nil
}

// GetCourse returns the course stored under id.
func (c *Catalog) GetCourse(ctx context.Context, id ir.CourseID) (ir.Course, error) {
	course, found, err := c.load(ctx, id)
	if err != nil {
		return ir.Course{}, err
	}
	if !found {
		return ir.Course{}, ir.Errorf(ir.KindNonexistentCourse, "get_course", "course %s", id.Short())
	}
	return course, nil
}

// RegisterStudent adds caller to the roster of id and issues their token.
//
// Checks run in a fixed order and the first failure wins: membership,
// existence, capacity, duplicate, start date.
func (c *Catalog) RegisterStudent(ctx context.Context, id ir.CourseID, caller ir.AccountID, now time.Time) error {
	const op = "register_to_course"

	member, err := c.dir.IsMember(ctx, caller)
	if err != nil {
		return err
	}
	if !member {
		return ir.Errorf(ir.KindInsufficientPermissions, op, "%s is not a school member", caller.Short())
	}

	course, found, err := c.load(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return ir.Errorf(ir.KindNonexistentCourse, op, "course %s", id.Short())
	}
	if course.Full() {
		return ir.Errorf(ir.KindCourseCapacityFull, op, "capacity %d reached", course.Capacity)
	}
	if course.HasMember(caller) {
		return ir.NewError(ir.KindAlreadyRegistered, op)
	}
	if course.Started(now) {
		return ir.Errorf(ir.KindCourseAlreadyStarted, op, "started %s", course.StartDate.Format(time.RFC3339))
	}

	course.Roster = append(course.Roster, caller)
	if err := c.save(ctx, course); err != nil {
		return err
	}
	return c.ledger.IssueToken(ctx, caller, id)
}

// ReplaceRosterEntry swaps oldAccount for newAccount in place.
// Fails NoProposedSwap when the course or the old entry is missing.
func (c *Catalog) ReplaceRosterEntry(ctx context.Context, id ir.CourseID, oldAccount, newAccount ir.AccountID) error {
	const op = "accept_counter_offer"
	course, found, err := c.load(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return ir.Errorf(ir.KindNoProposedSwap, op, "course %s missing", id.Short())
	}
	i := slices.Index(course.Roster, oldAccount)
	if i < 0 {
		return ir.Errorf(ir.KindNoProposedSwap, op, "%s not on roster of %s", oldAccount.Short(), id.Short())
	}
	course.Roster[i] = newAccount
	return c.save(ctx, course)
}
