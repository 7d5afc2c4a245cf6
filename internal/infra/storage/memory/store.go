package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"rentbook/internal/domain/availability"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/payment"
	"rentbook/internal/domain/rental"
)

// Store keeps committed state for the in-memory backend. Units of work stage
// their writes and apply them atomically on commit.
type Store struct {
	mu       sync.RWMutex
	items    map[catalog.ItemID]catalog.Item
	rentals  map[rental.RentalID]rental.Rental
	days     map[catalog.ItemID]map[time.Time]availability.Day
	payments map[string]payment.Receipt
	inbox    map[string]struct{}
	locks    map[catalog.ItemID]chan struct{}
	outbox   *Outbox
}

func NewStore() *Store {
	return &Store{
		items:    make(map[catalog.ItemID]catalog.Item),
		rentals:  make(map[rental.RentalID]rental.Rental),
		days:     make(map[catalog.ItemID]map[time.Time]availability.Day),
		payments: make(map[string]payment.Receipt),
		inbox:    make(map[string]struct{}),
		locks:    make(map[catalog.ItemID]chan struct{}),
		outbox:   NewOutbox(),
	}
}

// Outbox returns the store's outbox, which buffers records in the active unit.
func (s *Store) Outbox() *Outbox {
	return s.outbox
}

// PutItem upserts a catalog entry, used by fixtures and tests.
func (s *Store) PutItem(_ context.Context, item catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

func (s *Store) itemLock(id catalog.ItemID) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

func (s *Store) RecordSucceeded(_ context.Context, receipt payment.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[receipt.RentalID]; !ok {
		s.payments[receipt.RentalID] = receipt
	}
	return nil
}

func (s *Store) HasSucceeded(_ context.Context, rentalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.payments[rentalID]
	return ok, nil
}

// Seen marks eventID as processed and reports whether it was already known.
func (s *Store) Seen(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inbox[eventID]; ok {
		return true, nil
	}
	s.inbox[eventID] = struct{}{}
	return false, nil
}

func (s *Store) rentalSnapshot() map[rental.RentalID]rental.Rental {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[rental.RentalID]rental.Rental, len(s.rentals))
	for id, r := range s.rentals {
		out[id] = r
	}
	return out
}

func sortRentals(rs []*rental.Rental) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].Period.Start.Equal(rs[j].Period.Start) {
			return rs[i].Period.Start.Before(rs[j].Period.Start)
		}
		return rs[i].ID < rs[j].ID
	})
}

func sortDays(days []availability.Day) {
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
}

var _ payment.Repository = (*Store)(nil)

func (s *Store) Release(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inbox, eventID)
	return nil
}
