package memory

import (
	"context"
	"sync"
	"time"

	"rentbook/internal/app/middleware"
)

// IdempotencyStore keeps idempotency records in process. Like the Redis and
// Mongo stores it keeps the first record per key and forgets it after ttl.
type IdempotencyStore struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time
	// records expire lazily on lookup and on the next save.
	records map[string]middleware.IdempotencyRecord
}

// NewIdempotencyStore returns a store whose records live for ttl; a
// non-positive ttl keeps them for the life of the process.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{ttl: ttl, now: time.Now, records: make(map[string]middleware.IdempotencyRecord)}
}

func (s *IdempotencyStore) expired(rec middleware.IdempotencyRecord) bool {
	return s.ttl > 0 && s.now().Sub(rec.StoredAt) >= s.ttl
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if ok && s.expired(rec) {
		delete(s.records, key)
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, ok, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, old := range s.records {
		if s.expired(old) {
			delete(s.records, k)
		}
	}
	if _, taken := s.records[rec.Key]; taken {
		return nil
	}
	if rec.StoredAt.IsZero() {
		rec.StoredAt = s.now()
	}
	s.records[rec.Key] = rec
	return nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
