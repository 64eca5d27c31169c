// Package memory implements the storage ports in process memory. Data is split
// into stripes chosen by hashing the row id; a commit locks every stripe it
// touches in ascending order, so concurrent commits never deadlock and readers
// only contend on the stripes they visit.
package memory

import (
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

const stripeCount = 16

var ErrUnitOfWorkFinished = errors.New("unit of work already committed or rolled back")

type stripe struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	transactions map[string]*domain.LedgerTransaction
	outbox       map[string]*domain.OutboxEvent
}

// Store holds accounts, transactions and outbox rows.
type Store struct {
	stripes    [stripeCount]*stripe
	serializer usecase.EventSerializer
	idGen      usecase.IDGenerator
	now        func() time.Time
}

// NewStore creates an empty store. serializer and idGen build outbox rows when
// transactions are saved.
func NewStore(serializer usecase.EventSerializer, idGen usecase.IDGenerator) *Store {
	s := &Store{
		serializer: serializer,
		idGen:      idGen,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for i := range s.stripes {
		s.stripes[i] = &stripe{
			accounts:     make(map[string]*domain.Account),
			transactions: make(map[string]*domain.LedgerTransaction),
			outbox:       make(map[string]*domain.OutboxEvent),
		}
	}

	return s
}

func stripeIndex(id string) int {
	return int(xxhash.Sum64String(id) % stripeCount)
}

func (s *Store) stripeFor(id string) *stripe {
	return s.stripes[stripeIndex(id)]
}

func (s *Store) account(id string) (*domain.Account, bool) {
	st := s.stripeFor(id)
	st.mu.RLock()
	defer st.mu.RUnlock()

	acc, ok := st.accounts[id]
	if !ok {
		return nil, false
	}

	return cloneAccount(acc), true
}

func (s *Store) transaction(id string) (*domain.LedgerTransaction, bool) {
	st := s.stripeFor(id)
	st.mu.RLock()
	defer st.mu.RUnlock()

	tx, ok := st.transactions[id]
	if !ok {
		return nil, false
	}

	return cloneTransaction(tx), true
}

// scanAccounts visits every committed account, one stripe at a time.
func (s *Store) scanAccounts(visit func(acc *domain.Account)) {
	for _, st := range s.stripes {
		st.mu.RLock()
		for _, acc := range st.accounts {
			visit(cloneAccount(acc))
		}
		st.mu.RUnlock()
	}
}

func (s *Store) scanOutbox(visit func(row *domain.OutboxEvent)) {
	for _, st := range s.stripes {
		st.mu.RLock()
		for _, row := range st.outbox {
			visit(row.Clone())
		}
		st.mu.RUnlock()
	}
}

// lockStripes write-locks the stripes owning ids in ascending index order and
// returns the matching unlock function.
func (s *Store) lockStripes(ids []string) func() {
	indexes := make([]int, 0, len(ids))
	for _, id := range ids {
		indexes = append(indexes, stripeIndex(id))
	}
	slices.Sort(indexes)
	indexes = slices.Compact(indexes)

	for _, i := range indexes {
		s.stripes[i].mu.Lock()
	}

	return func() {
		for i := len(indexes) - 1; i >= 0; i-- {
			s.stripes[indexes[i]].mu.Unlock()
		}
	}
}

func cloneAccount(acc *domain.Account) *domain.Account {
	c := *acc
	if acc.ParentAccountID != nil {
		parent := *acc.ParentAccountID
		c.ParentAccountID = &parent
	}
	c.Metadata = maps.Clone(acc.Metadata)

	return &c
}

func cloneTransaction(tx *domain.LedgerTransaction) *domain.LedgerTransaction {
	return &domain.LedgerTransaction{
		ID:                  tx.ID,
		SourceTransactionID: tx.SourceTransactionID,
		Description:         tx.Description,
		Entries:             slices.Clone(tx.Entries),
		PostedAt:            tx.PostedAt,
	}
}

func sortAccounts(accounts []*domain.Account) {
	slices.SortFunc(accounts, func(a, b *domain.Account) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
