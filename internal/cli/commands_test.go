package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/courseswap/internal/engine"
	"github.com/roach88/courseswap/internal/ir"
	"github.com/roach88/courseswap/internal/testutil"
)

// school runs CLI invocations against one database in a temp directory
// with no config file in reach.
type school struct {
	t  *testing.T
	db string
}

func newSchool(t *testing.T) *school {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return &school{t: t, db: filepath.Join(dir, "school.db")}
}

// run executes the CLI and returns stdout and the exit code.
func (s *school) run(args ...string) (string, int) {
	s.t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := Execute(context.Background(), append([]string{"--db", s.db}, args...), stdout, stderr)
	return stdout.String(), code
}

// mustRun executes the CLI and fails the test on a non-zero exit.
func (s *school) mustRun(args ...string) string {
	s.t.Helper()
	out, code := s.run(args...)
	require.Equal(s.t, ExitSuccess, code, out)
	return out
}

// runJSON executes the CLI with --format json and decodes the data payload
// into v.
func (s *school) runJSON(v any, args ...string) {
	s.t.Helper()
	out := s.mustRun(append([]string{"--format", "json"}, args...)...)
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(s.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(s.t, "ok", resp.Status)
	require.NoError(s.t, json.Unmarshal(resp.Data, v))
}

func (s *school) setup() {
	s.t.Helper()
	s.mustRun("init", "--owner", "@principal", "--as", "@principal")
	s.mustRun("admit", "teacher", "@turing", "--as", "@principal")
	s.mustRun("admit", "student", "@alice", "--as", "@principal")
	s.mustRun("admit", "student", "@bob", "--as", "@principal")
	s.mustRun("course", "create", "Algorithms", "--capacity", "1", "--start", "2099-01-10T09:00:00Z", "--as", "@turing")
	s.mustRun("course", "create", "Compilers", "--capacity", "1", "--start", "2099-01-10T09:00:00Z", "--as", "@turing")
}

func TestCLI_RegistrationAndSwap(t *testing.T) {
	s := newSchool(t)
	s.setup()

	alice, bob := testutil.Account("alice"), testutil.Account("bob")
	algorithms, compilers := testutil.Course("Algorithms"), testutil.Course("Compilers")

	out := s.mustRun("register", "Algorithms", "--as", "@alice")
	assert.Contains(t, out, "✓ Registered")
	s.mustRun("register", "Compilers", "--as", "@bob")

	// The only seat is taken.
	out, code := s.run("register", "Algorithms", "--as", "@bob")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "Error [CourseCapacityFull]")

	s.mustRun("swap", "propose", "Algorithms", "--as", "@alice")

	var proposals []ir.SwapProposal
	s.runJSON(&proposals, "swap", "list", "Algorithms")
	require.Len(t, proposals, 1)
	assert.Equal(t, ir.RegistrationToken{Owner: alice, CourseID: algorithms}, proposals[0].Offer)
	assert.Empty(t, proposals[0].CounterOffers)

	s.mustRun("swap", "counter", "Algorithms", "--offerer", "@alice", "--with", "Compilers", "--as", "@bob")

	var accepted engine.AcceptResult
	s.runJSON(&accepted, "swap", "accept", "Algorithms", "--from", "@bob", "--course", "Compilers", "--as", "@alice")
	assert.Equal(t, ir.RegistrationToken{Owner: alice, CourseID: compilers}, accepted.Received)
	assert.Equal(t, ir.RegistrationToken{Owner: bob, CourseID: algorithms}, accepted.Delivered)
	assert.Empty(t, accepted.Refunded)
	assert.Empty(t, accepted.Forfeited)

	var course ir.Course
	s.runJSON(&course, "course", "show", "Algorithms")
	assert.Equal(t, []ir.AccountID{bob}, course.Roster)

	var tokens []ir.RegistrationToken
	s.runJSON(&tokens, "registrations", "--as", "@alice")
	assert.Equal(t, []ir.RegistrationToken{{Owner: alice, CourseID: compilers}}, tokens)

	// The proposal is gone once accepted.
	out, code = s.run("swap", "list", "Algorithms")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "NoProposedSwap")
}

func TestCLI_Withdrawals(t *testing.T) {
	s := newSchool(t)
	s.setup()

	s.mustRun("register", "Algorithms", "--as", "@alice")
	s.mustRun("register", "Compilers", "--as", "@bob")
	s.mustRun("swap", "propose", "Algorithms", "--as", "@alice")
	s.mustRun("swap", "counter", "Algorithms", "--offerer", "@alice", "--with", "Compilers", "--as", "@bob")

	var withdrawn engine.WithdrawResult
	s.runJSON(&withdrawn, "swap", "withdraw-counter", "Algorithms", "--offerer", "@alice", "--with", "Compilers", "--as", "@bob")
	assert.Equal(t, []ir.RegistrationToken{{Owner: testutil.Account("bob"), CourseID: testutil.Course("Compilers")}}, withdrawn.Refunded)

	out := s.mustRun("swap", "withdraw", "Algorithms", "--as", "@alice")
	assert.Contains(t, out, "1 token(s) refunded")

	var tokens []ir.RegistrationToken
	s.runJSON(&tokens, "registrations", "--as", "@alice")
	assert.Len(t, tokens, 1)
}

func TestCLI_Members(t *testing.T) {
	s := newSchool(t)
	s.setup()

	out := s.mustRun("member", "@turing")
	assert.Contains(t, out, "teacher")

	var status memberStatus
	s.runJSON(&status, "member", "@alice")
	assert.True(t, status.Member)
	assert.False(t, status.Teacher)

	s.runJSON(&status, "member", "@mallory")
	assert.False(t, status.Member)

	// Only the owner admits.
	out, code := s.run("admit", "student", "@mallory", "--as", "@alice")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "InsufficientPermissions")

	_, code = s.run("admit", "janitor", "@mallory", "--as", "@principal")
	assert.Equal(t, ExitCommandError, code)
}

func TestCLI_CourseID(t *testing.T) {
	s := newSchool(t)

	out := s.mustRun("course", "id", "Algorithms")
	assert.Equal(t, testutil.Course("Algorithms").String()+"\n", out)

	// Creating by --id and showing by name address the same course.
	s.mustRun("init", "--owner", "@principal", "--as", "@principal")
	s.mustRun("course", "create", "--id", testutil.Course("Algorithms").String(),
		"--capacity", "3", "--start", "2099-01-10T09:00:00Z", "--as", "@principal")

	var course ir.Course
	s.runJSON(&course, "course", "show", "Algorithms")
	assert.Equal(t, uint32(3), course.Capacity)
	assert.Equal(t, testutil.Account("principal"), course.Teacher)
}

func TestCLI_RegisterNow(t *testing.T) {
	s := newSchool(t)
	s.setup()

	out, code := s.run("register", "Algorithms", "--as", "@alice", "--now", "2099-01-10T09:00:00Z")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "CourseAlreadyStarted")

	s.mustRun("register", "Algorithms", "--as", "@alice", "--now", "2099-01-10T08:59:59Z")
}

func TestCLI_Seed(t *testing.T) {
	s := newSchool(t)
	fixture, err := filepath.Abs(schoolFixture)
	require.NoError(t, err)

	out := s.mustRun("seed", fixture, "--as", "@principal")
	assert.Contains(t, out, "2 teacher(s), 3 student(s), 2 course(s)")

	var course ir.Course
	s.runJSON(&course, "course", "show", "Compilers")
	assert.Equal(t, testutil.Account("hopper"), course.Teacher)

	// Seeding again as someone else is rejected by init.
	out, code := s.run("seed", fixture, "--as", "@mallory")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "InsufficientPermissions")
}

func TestCLI_UsageErrors(t *testing.T) {
	s := newSchool(t)

	tests := []struct {
		name string
		args []string
	}{
		{"bad format", []string{"--format", "yaml", "course", "id", "X"}},
		{"missing --as", []string{"register", "Algorithms"}},
		{"bad start", []string{"course", "create", "X", "--capacity", "1", "--start", "tomorrow", "--as", "@turing"}},
		{"name and id", []string{"course", "show", "X", "--id", testutil.Course("X").String()}},
		{"bad id", []string{"course", "show", "--id", "xyz"}},
		{"missing config", []string{"--config", "nope.yaml", "course", "show", "X"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, code := s.run(tt.args...)
			assert.Equal(t, ExitCommandError, code, out)
			assert.Contains(t, out, "Error [")
		})
	}
}

func TestCLI_ErrorJSON(t *testing.T) {
	s := newSchool(t)
	s.setup()

	out, code := s.run("--format", "json", "register", "Databases", "--as", "@alice")
	assert.Equal(t, ExitFailure, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NonexistentCourse", resp.Error.Code)
}

func TestCLI_Status(t *testing.T) {
	s := newSchool(t)
	s.setup()
	s.mustRun("register", "Algorithms", "--as", "@alice")
	s.mustRun("swap", "propose", "Algorithms", "--as", "@alice")

	var status StatusResult
	s.runJSON(&status, "status")
	assert.Equal(t, s.db, status.DB)
	assert.Equal(t, 2, status.Tables["courses"])
	assert.Equal(t, 1, status.Tables["proposals"])

	out := s.mustRun("status")
	assert.Contains(t, out, "courses")
}
