package ir

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccountID(t *testing.T) {
	alice := AccountIDFromHandle("alice")

	parsed, err := ParseAccountID(alice.String())
	require.NoError(t, err)
	assert.Equal(t, alice, parsed)

	_, err = ParseAccountID("abc")
	assert.Error(t, err)

	_, err = ParseAccountID(strings.Repeat("zz", IDSize))
	assert.Error(t, err)
}

func TestCourseJSON_HexIDs(t *testing.T) {
	course := Course{
		Teacher:   AccountIDFromHandle("turing"),
		ID:        CourseIDFromName("Algorithms"),
		Capacity:  2,
		Roster:    []AccountID{AccountIDFromHandle("alice")},
		StartDate: time.Date(2027, 1, 10, 9, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(course)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"`+course.ID.String()+`"`)

	var decoded Course
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, course, decoded)
}

func TestCourse_Predicates(t *testing.T) {
	start := time.Date(2027, 1, 10, 9, 0, 0, 0, time.UTC)
	alice := AccountIDFromHandle("alice")
	course := Course{Capacity: 1, StartDate: start}

	assert.False(t, course.Full())
	assert.False(t, course.HasMember(alice))

	course.Roster = append(course.Roster, alice)
	assert.True(t, course.Full())
	assert.True(t, course.HasMember(alice))

	assert.False(t, course.Started(start.Add(-time.Second)))
	assert.True(t, course.Started(start), "start date itself counts as started")
	assert.True(t, course.Started(start.Add(time.Second)))
}

func TestCourse_ZeroCapacityIsFull(t *testing.T) {
	course := Course{Capacity: 0}
	assert.True(t, course.Full())
}

func TestCourse_CloneIsDeep(t *testing.T) {
	course := Course{Roster: []AccountID{AccountIDFromHandle("alice")}}
	clone := course.Clone()
	clone.Roster[0] = AccountIDFromHandle("bob")

	assert.Equal(t, AccountIDFromHandle("alice"), course.Roster[0])
}

func TestSwapProposal_FindCounterOffer(t *testing.T) {
	alice := AccountIDFromHandle("alice")
	bob := AccountIDFromHandle("bob")
	c1 := CourseIDFromName("C1")
	c2 := CourseIDFromName("C2")

	p := SwapProposal{
		Offer: RegistrationToken{Owner: alice, CourseID: c1},
		CounterOffers: []RegistrationToken{
			{Owner: bob, CourseID: c2},
			{Owner: bob, CourseID: c1},
		},
	}

	assert.Equal(t, 0, p.FindCounterOffer(bob, c2))
	assert.Equal(t, 1, p.FindCounterOffer(bob, c1))
	assert.Equal(t, -1, p.FindCounterOffer(alice, c2))
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleTeacher.Valid())
	assert.True(t, RoleStudent.Valid())
	assert.False(t, Role("principal").Valid())
}
