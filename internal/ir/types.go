package ir

import (
	"encoding/hex"
	"fmt"
	"slices"
	"time"
)

// IDSize is the byte length of account and course identifiers.
const IDSize = 32

// AccountID identifies a school member. The zero value is never a valid member.
type AccountID [IDSize]byte

// CourseID identifies a course, usually the Keccak-256 hash of its name.
type CourseID [IDSize]byte

// String returns the lowercase hex encoding.
func (a AccountID) String() string { return hex.EncodeToString(a[:]) }

// Short returns the first 8 hex characters, for logs.
func (a AccountID) Short() string { return a.String()[:8] }

// IsZero reports whether the id is all zero bytes.
func (a AccountID) IsZero() bool { return a == AccountID{} }

// MarshalText implements encoding.TextMarshaler.
func (a AccountID) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// String returns the lowercase hex encoding.
func (c CourseID) String() string { return hex.EncodeToString(c[:]) }

// Short returns the first 8 hex characters, for logs.
func (c CourseID) Short() string { return c.String()[:8] }

// MarshalText implements encoding.TextMarshaler.
func (c CourseID) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CourseID) UnmarshalText(text []byte) error {
	id, err := ParseCourseID(string(text))
	if err != nil {
		return err
	}
	*c = id
	return nil
}

// ParseAccountID decodes a 64-character hex string.
func ParseAccountID(s string) (AccountID, error) {
	var id AccountID
	if err := decodeID(s, id[:]); err != nil {
		return AccountID{}, fmt.Errorf("parse account id: %w", err)
	}
	return id, nil
}

// ParseCourseID decodes a 64-character hex string.
func ParseCourseID(s string) (CourseID, error) {
	var id CourseID
	if err := decodeID(s, id[:]); err != nil {
		return CourseID{}, fmt.Errorf("parse course id: %w", err)
	}
	return id, nil
}

func decodeID(s string, dst []byte) error {
	if len(s) != hex.EncodedLen(IDSize) {
		return fmt.Errorf("want %d hex characters, got %d", hex.EncodedLen(IDSize), len(s))
	}
	_, err := hex.Decode(dst, []byte(s))
	return err
}

// Role is a member's role in the school.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Member is a membership directory record.
type Member struct {
	Account AccountID `json:"account"`
	Role    Role      `json:"role"`
}

// Course is a university course created by a teacher.
//
// INVARIANTS:
//   - len(Roster) <= Capacity
//   - Roster entries are unique
//   - ID never changes after creation
type Course struct {
	Teacher   AccountID   `json:"teacher"`
	ID        CourseID    `json:"id"`
	Capacity  uint32      `json:"capacity"`
	Roster    []AccountID `json:"roster"`
	StartDate time.Time   `json:"start_date"`
}

// Full reports whether no seat is left.
func (c *Course) Full() bool {
	return uint64(len(c.Roster)) >= uint64(c.Capacity)
}

// Started reports whether the course has started at now.
func (c *Course) Started(now time.Time) bool {
	return !now.Before(c.StartDate)
}

// HasMember reports whether account holds a roster entry.
func (c *Course) HasMember(account AccountID) bool {
	return slices.Contains(c.Roster, account)
}

// Clone returns a deep copy.
func (c Course) Clone() Course {
	c.Roster = slices.Clone(c.Roster)
	if c.Roster == nil {
		c.Roster = []AccountID{}
	}
	return c
}

// RegistrationToken is the capability for one seat in one course.
type RegistrationToken struct {
	Owner    AccountID `json:"owner"`
	CourseID CourseID  `json:"course_id"`
}

// String renders the token as owner@course using short ids.
func (t RegistrationToken) String() string {
	return t.Owner.Short() + "@" + t.CourseID.Short()
}

// SwapProposal offers one escrowed token in exchange for one of the
// escrowed counter-offers.
type SwapProposal struct {
	Offer         RegistrationToken   `json:"offer"`
	CounterOffers []RegistrationToken `json:"counter_offers"`
}

// FindCounterOffer returns the index of the first counter-offer matching
// owner and course, or -1.
func (p *SwapProposal) FindCounterOffer(owner AccountID, course CourseID) int {
	return slices.Index(p.CounterOffers, RegistrationToken{Owner: owner, CourseID: course})
}

// Clone returns a deep copy.
func (p SwapProposal) Clone() SwapProposal {
	p.CounterOffers = slices.Clone(p.CounterOffers)
	if p.CounterOffers == nil {
		p.CounterOffers = []RegistrationToken{}
	}
	return p
}
