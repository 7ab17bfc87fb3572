// Package ledger holds registration tokens: owner → ordered token list.
package ledger

import (
	"context"
	"fmt"

	"github.com/roach88/courseswap/internal/ir"
	"github.com/roach88/courseswap/internal/store"
)

// Ledger is the registration ledger.
//
// Empty lists are deleted rather than stored, so a present key always means
// the owner holds at least one Active token.
type Ledger struct {
	kv store.KV
}

// New returns a ledger reading and writing through kv.
func New(kv store.KV) *Ledger {
	return &Ledger{kv: kv}
}

func tokensKey(owner ir.AccountID) string {
	return store.Key(store.TableTokens, owner.String())
}

func (l *Ledger) load(ctx context.Context, owner ir.AccountID) ([]ir.RegistrationToken, error) {
	var tokens []ir.RegistrationToken
	if _, err := store.GetJSON(ctx, l.kv, tokensKey(owner), &tokens); err != nil {
		return nil, fmt.Errorf("load tokens for %s: %w", owner.Short(), err)
	}
	return tokens, nil
}

func (l *Ledger) save(ctx context.Context, owner ir.AccountID, tokens []ir.RegistrationToken) error {
	key := tokensKey(owner)
	if len(tokens) == 0 {
		if err := l.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete tokens for %s: %w", owner.Short(), err)
		}
		return nil
	}
	if err := store.PutJSON(ctx, l.kv, key, tokens); err != nil {
		return fmt.Errorf("save tokens for %s: %w", owner.Short(), err)
	}
	return nil
}

// IssueToken appends {owner, course} to owner's list.
func (l *Ledger) IssueToken(ctx context.Context, owner ir.AccountID, course ir.CourseID) error {
	return l.Deposit(ctx, ir.RegistrationToken{Owner: owner, CourseID: course})
}

// Deposit returns an existing token to its owner's list. Used to mint swap
// results and to refund escrowed tokens.
func (l *Ledger) Deposit(ctx context.Context, tok ir.RegistrationToken) error {
	tokens, err := l.load(ctx, tok.Owner)
	if err != nil {
		return err
	}
	return l.save(ctx, tok.Owner, append(tokens, tok))
}

// ListTokens returns owner's Active tokens in issue order.
// Fails NoRegistrations when the owner holds none.
func (l *Ledger) ListTokens(ctx context.Context, owner ir.AccountID) ([]ir.RegistrationToken, error) {
	tokens, err := l.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, ir.NewError(ir.KindNoRegistrations, "get_own_registrations")
	}
	return tokens, nil
}

// RemoveToken removes owner's first token for course.
// Reports false when the owner holds no such token; the caller picks the
// error kind for the miss.
func (l *Ledger) RemoveToken(ctx context.Context, owner ir.AccountID, course ir.CourseID) (bool, error) {
	tokens, err := l.load(ctx, owner)
	if err != nil {
		return false, err
	}
	for i, tok := range tokens {
		if tok.CourseID == course {
			tokens = append(tokens[:i], tokens[i+1:]...)
			return true, l.save(ctx, owner, tokens)
		}
	}
	return false, nil
}

// Holds reports whether owner holds an Active token for course.
func (l *Ledger) Holds(ctx context.Context, owner ir.AccountID, course ir.CourseID) (bool, error) {
	tokens, err := l.load(ctx, owner)
	if err != nil {
		return false, err
	}
	for _, tok := range tokens {
		if tok.CourseID == course {
			return true, nil
		}
	}
	return false, nil
}
