package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schoolSetup = `
setup:
  - op: init
    as: "@principal"
    args: { owner: "@principal" }
  - op: admit_as_student
    as: "@principal"
    args: { account: "@alice" }
  - op: admit_as_student
    as: "@principal"
    args: { account: "@bob" }
  - op: create_course
    as: "@principal"
    args: { course: Algorithms, capacity: 2, start: "2027-01-10T09:00:00Z" }
`

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return scenario
}

func TestRun_Passing(t *testing.T) {
	scenario := mustParse(t, `
name: get_course_after_register
description: "Registered student shows up on the roster"
`+schoolSetup+`
flow:
  - op: register_to_course
    as: "@alice"
    args: { course: Algorithms }
    expect:
      case: ok
  - op: get_course
    args: { course: Algorithms }
    expect:
      case: ok
      result: { id: Algorithms, capacity: 2, roster: ["@alice"], teacher: "@principal" }
  - op: is_school_member
    args: { account: "@bob" }
    expect:
      case: ok
      result: true
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	// 4 setup steps and 3 flow steps, each an invocation plus a completion.
	require.Len(t, result.Trace, 14)
	for i, event := range result.Trace {
		assert.Equal(t, int64(i+1), event.Seq)
	}

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, EventCompletion, last.Type)
	assert.Equal(t, CaseOK, last.Case)
	assert.Equal(t, true, last.Result)
}

func TestRun_ErrorCaseRecorded(t *testing.T) {
	scenario := mustParse(t, `
name: unknown_course
description: "Registering to a missing course completes with NonexistentCourse"
`+schoolSetup+`
flow:
  - op: register_to_course
    as: "@alice"
    args: { course: Compilers }
    expect:
      case: NonexistentCourse
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, "NonexistentCourse", last.Case)
	assert.Nil(t, last.Result)
}

func TestRun_ExpectMismatch(t *testing.T) {
	scenario := mustParse(t, `
name: wrong_expectation
description: "A mismatched case fails the scenario without aborting it"
`+schoolSetup+`
flow:
  - op: register_to_course
    as: "@alice"
    args: { course: Algorithms }
    expect:
      case: CourseCapacityFull
  - op: get_own_registrations
    as: "@alice"
    expect:
      case: ok
      result: [{ owner: "@bob", course_id: Algorithms }]
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected case CourseCapacityFull, got ok")
	assert.Contains(t, result.Errors[1], "get_own_registrations: result mismatch")
}

func TestRun_SetupFailureAborts(t *testing.T) {
	scenario := mustParse(t, `
name: bad_setup
description: "A failing setup step aborts the run"
setup:
  - op: admit_as_student
    as: "@nobody"
    args: { account: "@alice" }
flow:
  - op: get_own_registrations
    as: "@alice"
`)

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0]: admit_as_student failed with InsufficientPermissions")
}

func TestRun_BadArgs(t *testing.T) {
	tests := []struct {
		name    string
		step    string
		wantErr string
	}{
		{
			name:    "missing arg",
			step:    `{ op: register_to_course, as: "@alice" }`,
			wantErr: `missing arg "course"`,
		},
		{
			name:    "unknown arg",
			step:    `{ op: register_to_course, as: "@alice", args: { course: Algorithms, seats: 1 } }`,
			wantErr: "unknown args: seats",
		},
		{
			name:    "capacity not a number",
			step:    `{ op: create_course, as: "@principal", args: { course: X, capacity: many, start: "2027-01-10T09:00:00Z" } }`,
			wantErr: `arg "capacity": want an integer`,
		},
		{
			name:    "negative capacity",
			step:    `{ op: create_course, as: "@principal", args: { course: X, capacity: -1, start: "2027-01-10T09:00:00Z" } }`,
			wantErr: "out of range",
		},
		{
			name:    "bad start",
			step:    `{ op: create_course, as: "@principal", args: { course: X, capacity: 1, start: soon } }`,
			wantErr: `arg "start"`,
		},
		{
			name:    "empty course",
			step:    `{ op: get_course, args: { course: "" } }`,
			wantErr: "empty course",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := mustParse(t, "name: bad_args\ndescription: d\n"+schoolSetup+"flow:\n  - "+tt.step+"\n")
			_, err := Run(scenario)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "flow[0]")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_AtMovesClock(t *testing.T) {
	scenario := mustParse(t, `
name: late_registration
description: "Registration after the start date is rejected"
`+schoolSetup+`
flow:
  - op: register_to_course
    as: "@alice"
    at: "2027-01-10T08:59:59Z"
    args: { course: Algorithms }
    expect:
      case: ok
  - op: register_to_course
    as: "@bob"
    at: "2027-01-10T09:00:00Z"
    args: { course: Algorithms }
    expect:
      case: CourseAlreadyStarted
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/swap_round_trip.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := (&TraceSnapshot{ScenarioName: scenario.Name, Trace: first.Trace}).Canonical()
	require.NoError(t, err)
	b, err := (&TraceSnapshot{ScenarioName: scenario.Name, Trace: second.Trace}).Canonical()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestOps(t *testing.T) {
	ops := Ops()
	assert.Len(t, ops, 15)
	assert.IsIncreasing(t, ops)
	assert.Contains(t, ops, "accept_counter_offer")
	assert.Contains(t, ops, "withdraw_counter_offer")
}

func TestLabels(t *testing.T) {
	l := make(labels)

	alice, err := l.account("@alice")
	require.NoError(t, err)
	course, err := l.course("Algorithms")
	require.NoError(t, err)

	assert.Equal(t, "@alice", l.name(alice.String()))
	assert.Equal(t, "Algorithms", l.name(course.String()))
	assert.Equal(t, "unrelated", l.name("unrelated"))

	// A hex id resolves to the same account and keeps its first label.
	again, err := l.account(alice.String())
	require.NoError(t, err)
	assert.Equal(t, alice, again)
	assert.Equal(t, "@alice", l.name(alice.String()))
}
