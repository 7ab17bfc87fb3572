package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/courseswap/internal/ir"
	"github.com/roach88/courseswap/internal/store"
)

var (
	principal = ir.AccountIDFromHandle("principal")
	turing    = ir.AccountIDFromHandle("turing")
	alice     = ir.AccountIDFromHandle("alice")
)

func TestDirectory_InitAdmitsOwnerAsTeacher(t *testing.T) {
	ctx := context.Background()
	d := New(store.NewMemory())

	_, found, err := d.Owner(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, d.Init(ctx, principal, principal))

	owner, found, err := d.Owner(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, principal, owner)

	isTeacher, err := d.IsTeacher(ctx, principal)
	require.NoError(t, err)
	assert.True(t, isTeacher)
}

func TestDirectory_InitByStrangerAfterOwnerRejected(t *testing.T) {
	ctx := context.Background()
	d := New(store.NewMemory())
	require.NoError(t, d.Init(ctx, principal, principal))

	err := d.Init(ctx, alice, alice)
	assert.ErrorIs(t, err, ir.ErrInsufficientPermissions)

	// The owner may hand the school over.
	require.NoError(t, d.Init(ctx, principal, turing))
	owner, _, err := d.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, turing, owner)
}

func TestDirectory_InitRejectsZeroOwner(t *testing.T) {
	err := New(store.NewMemory()).Init(context.Background(), ir.AccountID{}, ir.AccountID{})
	assert.ErrorIs(t, err, ir.ErrInsufficientPermissions)
}

func TestDirectory_Admit(t *testing.T) {
	ctx := context.Background()
	d := New(store.NewMemory())
	require.NoError(t, d.Init(ctx, principal, principal))

	tests := []struct {
		name      string
		caller    ir.AccountID
		account   ir.AccountID
		role      ir.Role
		wantKind  ir.ErrorKind
		isMember  bool
		isTeacher bool
	}{
		{"owner admits teacher", principal, turing, ir.RoleTeacher, "", true, true},
		{"owner admits student", principal, alice, ir.RoleStudent, "", true, false},
		{"non-owner rejected", turing, ir.AccountIDFromHandle("mallory"), ir.RoleStudent, ir.KindInsufficientPermissions, false, false},
		{"unknown role", principal, ir.AccountIDFromHandle("x"), ir.Role("dean"), ir.KindInvariantViolation, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Admit(ctx, tt.caller, tt.account, tt.role)
			assert.Equal(t, tt.wantKind, ir.KindOf(err))

			member, err := d.IsMember(ctx, tt.account)
			require.NoError(t, err)
			assert.Equal(t, tt.isMember, member)

			teacher, err := d.IsTeacher(ctx, tt.account)
			require.NoError(t, err)
			assert.Equal(t, tt.isTeacher, teacher)
		})
	}
}

func TestDirectory_AdmitBeforeInit(t *testing.T) {
	d := New(store.NewMemory())
	err := d.Admit(context.Background(), principal, alice, ir.RoleStudent)
	assert.ErrorIs(t, err, ir.ErrInsufficientPermissions)
}

func TestDirectory_ReadmitChangesRole(t *testing.T) {
	ctx := context.Background()
	d := New(store.NewMemory())
	require.NoError(t, d.Init(ctx, principal, principal))
	require.NoError(t, d.Admit(ctx, principal, alice, ir.RoleStudent))
	require.NoError(t, d.Admit(ctx, principal, alice, ir.RoleTeacher))

	m, found, err := d.Lookup(ctx, alice)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ir.RoleTeacher, m.Role)
}
