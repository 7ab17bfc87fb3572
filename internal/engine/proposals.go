package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/courseswap/internal/ir"
	"github.com/roach88/courseswap/internal/store"
)

// proposalBook stores the ordered proposal list of each offered course.
// Empty lists are deleted so an absent key means "no open proposals".
type proposalBook struct {
	kv store.KV
}

func proposalsKey(course ir.CourseID) string {
	return store.Key(store.TableProposals, course.String())
}

func (b *proposalBook) load(ctx context.Context, course ir.CourseID) ([]ir.SwapProposal, error) {
	var list []ir.SwapProposal
	if _, err := store.GetJSON(ctx, b.kv, proposalsKey(course), &list); err != nil {
		return nil, fmt.Errorf("load proposals for %s: %w", course.Short(), err)
	}
	for i := range list {
		if list[i].CounterOffers == nil {
			list[i].CounterOffers = []ir.RegistrationToken{}
		}
	}
	return list, nil
}

func (b *proposalBook) save(ctx context.Context, course ir.CourseID, list []ir.SwapProposal) error {
	key := proposalsKey(course)
	if len(list) == 0 {
		if err := b.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete proposals for %s: %w", course.Short(), err)
		}
		return nil
	}
	if err := store.PutJSON(ctx, b.kv, key, list); err != nil {
		return fmt.Errorf("save proposals for %s: %w", course.Short(), err)
	}
	return nil
}

// findByOfferer returns the index of the first proposal offered by owner, or -1.
func findByOfferer(list []ir.SwapProposal, owner ir.AccountID) int {
	return slices.IndexFunc(list, func(p ir.SwapProposal) bool {
		return p.Offer.Owner == owner
	})
}
