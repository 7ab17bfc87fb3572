package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseIDFromName_Keccak256(t *testing.T) {
	// Keccak-256("") is a well-known constant; it differs from SHA3-256("").
	empty := CourseIDFromName("")
	assert.Equal(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", empty.String())
}

func TestCourseIDFromName_Deterministic(t *testing.T) {
	assert.Equal(t, CourseIDFromName("test_course"), CourseIDFromName("test_course"))
	assert.NotEqual(t, CourseIDFromName("test_course1"), CourseIDFromName("test_course2"))
}

func TestCourseIDFromName_NFCNormalized(t *testing.T) {
	composed := "Caf\u00e9"     // precomposed e-acute
	decomposed := "Cafe\u0301" // e + combining acute accent

	assert.Equal(t, CourseIDFromName(composed), CourseIDFromName(decomposed))
}

func TestAccountIDFromHandle(t *testing.T) {
	alice := AccountIDFromHandle("alice")

	assert.Equal(t, alice, AccountIDFromHandle("@alice"), "leading @ is ignored")
	assert.Equal(t, alice, AccountIDFromHandle("Alice"), "handles are case-insensitive")
	assert.NotEqual(t, alice, AccountIDFromHandle("bob"))
	assert.False(t, alice.IsZero())
}

func TestAccountIDFromHandle_DomainSeparated(t *testing.T) {
	// Same input bytes must not collide with course ids.
	assert.NotEqual(t, [IDSize]byte(AccountIDFromHandle("algorithms")), [IDSize]byte(CourseIDFromName("algorithms")))
}

func TestResolveAccount(t *testing.T) {
	alice := AccountIDFromHandle("alice")

	got, err := ResolveAccount("@alice")
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	got, err = ResolveAccount("  alice ")
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	got, err = ResolveAccount(alice.String())
	require.NoError(t, err)
	assert.Equal(t, alice, got, "hex ids resolve to themselves")

	_, err = ResolveAccount("")
	assert.Error(t, err)
	_, err = ResolveAccount("@")
	assert.Error(t, err)
}

func TestResolveCourse(t *testing.T) {
	algo := CourseIDFromName("Algorithms")

	got, err := ResolveCourse("Algorithms")
	require.NoError(t, err)
	assert.Equal(t, algo, got)

	got, err = ResolveCourse(algo.String())
	require.NoError(t, err)
	assert.Equal(t, algo, got)

	_, err = ResolveCourse("   ")
	assert.Error(t, err)
}
