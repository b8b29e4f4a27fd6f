package sessionstorage

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/gemeente-forms/management/internal/sessioninfo"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process session store for development and tests.
// Records expire via ttlcache; a Get slides the expiry window like the redis
// driver does.
type MemoryStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, sessioninfo.Record]
}

// NewMemoryStore creates a MemoryStore.
func NewMemoryStore() *MemoryStore {
	cache := ttlcache.New[string, sessioninfo.Record]()
	go cache.Start()

	return &MemoryStore{cache: cache}
}

// Get returns the record for sessionID, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (*sessioninfo.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(sessionID)
	if item == nil {
		return nil, ErrNotFound
	}

	rec := cloneRecord(item.Value())

	return &rec, nil
}

// Put writes the record with a conditional version check.
func (s *MemoryStore) Put(_ context.Context, sessionID string, rec *sessioninfo.Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var storedVersion int64
	if item := s.cache.Get(sessionID, ttlcache.WithDisableTouchOnHit[string, sessioninfo.Record]()); item != nil {
		storedVersion = item.Value().Version
	}
	if storedVersion != rec.Version {
		return ErrVersionMismatch
	}

	rec.Version++
	rec.UpdatedAt = time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}

	s.cache.Set(sessionID, cloneRecord(*rec), ttl)

	return nil
}

// cloneRecord deep-copies the record's maps and slices. Cached state must
// only change through Put, where the version check runs; handing out aliased
// maps would let callers mutate it behind that check.
func cloneRecord(rec sessioninfo.Record) sessioninfo.Record {
	rec.States = maps.Clone(rec.States)
	rec.Flash = maps.Clone(rec.Flash)
	rec.Permissions = slices.Clone(rec.Permissions)
	rec.Claims = slices.Clone(rec.Claims)

	return rec
}

// Delete removes the record.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Delete(sessionID)

	return nil
}

// Touch slides the record's expiry window.
func (s *MemoryStore) Touch(_ context.Context, sessionID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(sessionID, ttlcache.WithDisableTouchOnHit[string, sessioninfo.Record]())
	if item == nil {
		return ErrNotFound
	}

	s.cache.Set(sessionID, item.Value(), ttl)

	return nil
}

// Stop halts the background expiry loop.
func (s *MemoryStore) Stop() {
	s.cache.Stop()
}
