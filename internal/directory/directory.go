// Package directory is the membership directory: account → role.
//
// The engine consults it read-only for permission checks. Admission is
// gated by the school owner recorded under meta/owner.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/courseswap/internal/ir"
	"github.com/roach88/courseswap/internal/store"
)

// Reader answers membership questions. Hosts with an external identity
// system implement it directly.
type Reader interface {
	IsMember(ctx context.Context, account ir.AccountID) (bool, error)
	IsTeacher(ctx context.Context, account ir.AccountID) (bool, error)
}

var ownerKey = store.Key(store.TableMeta, "owner")

// Directory is the KV-backed membership directory.
type Directory struct {
	kv store.KV
}

var _ Reader = (*Directory)(nil)

// New returns a directory reading and writing through kv.
func New(kv store.KV) *Directory {
	return &Directory{kv: kv}
}

func memberKey(account ir.AccountID) string {
	return store.Key(store.TableMembers, account.String())
}

// Lookup returns the member record for account, or (zero, false).
func (d *Directory) Lookup(ctx context.Context, account ir.AccountID) (ir.Member, bool, error) {
	var m ir.Member
	found, err := store.GetJSON(ctx, d.kv, memberKey(account), &m)
	if err != nil {
		return ir.Member{}, false, fmt.Errorf("lookup member %s: %w", account.Short(), err)
	}
	return m, found, nil
}

func (d *Directory) IsMember(ctx context.Context, account ir.AccountID) (bool, error) {
	ok, err := d.kv.Contains(ctx, memberKey(account))
	if err != nil {
		return false, fmt.Errorf("is member %s: %w", account.Short(), err)
	}
	return ok, nil
}

func (d *Directory) IsTeacher(ctx context.Context, account ir.AccountID) (bool, error) {
	m, found, err := d.Lookup(ctx, account)
	if err != nil {
		return false, err
	}
	return found && m.Role == ir.RoleTeacher, nil
}

// Owner returns the school owner, or (zero, false) before Init.
func (d *Directory) Owner(ctx context.Context) (ir.AccountID, bool, error) {
	data, err := d.kv.Get(ctx, ownerKey)
	if errors.Is(err, store.ErrNotFound) {
		return ir.AccountID{}, false, nil
	}
	if err != nil {
		return ir.AccountID{}, false, fmt.Errorf("read owner: %w", err)
	}
	var owner ir.AccountID
	if err := json.Unmarshal(data, &owner); err != nil {
		return ir.AccountID{}, false, fmt.Errorf("decode owner: %w", err)
	}
	return owner, true, nil
}

// Init records owner and admits them as a teacher.
// Once an owner exists only that owner may re-initialize.
func (d *Directory) Init(ctx context.Context, caller, owner ir.AccountID) error {
	const op = "init"
	if owner.IsZero() {
		return ir.Errorf(ir.KindInsufficientPermissions, op, "owner must not be the zero account")
	}
	current, found, err := d.Owner(ctx)
	if err != nil {
		return err
	}
	if found && current != caller {
		return ir.Errorf(ir.KindInsufficientPermissions, op, "school already owned by %s", current.Short())
	}
	if err := store.PutJSON(ctx, d.kv, ownerKey, owner); err != nil {
		return fmt.Errorf("write owner: %w", err)
	}
	return d.put(ctx, ir.Member{Account: owner, Role: ir.RoleTeacher})
}

// Admit records account with role. Only the owner may admit.
// Re-admitting an existing member replaces their role.
func (d *Directory) Admit(ctx context.Context, caller, account ir.AccountID, role ir.Role) error {
	op := "admit_as_" + string(role)
	if !role.Valid() {
		return ir.Invariantf(op, "unknown role %q", role)
	}
	owner, found, err := d.Owner(ctx)
	if err != nil {
		return err
	}
	if !found || owner != caller {
		return ir.Errorf(ir.KindInsufficientPermissions, op, "only the school owner may admit members")
	}
	if account.IsZero() {
		return ir.Errorf(ir.KindInsufficientPermissions, op, "cannot admit the zero account")
	}
	return d.put(ctx, ir.Member{Account: account, Role: role})
}

func (d *Directory) put(ctx context.Context, m ir.Member) error {
	if err := store.PutJSON(ctx, d.kv, memberKey(m.Account), m); err != nil {
		return fmt.Errorf("write member %s: %w", m.Account.Short(), err)
	}
	return nil
}
