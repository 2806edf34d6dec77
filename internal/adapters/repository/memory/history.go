// Package memory provides an in-process history.Store.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flowgraph/workflow/internal/core/history"
	"github.com/flowgraph/workflow/pkg/serialization"
)

// ErrMemoryLimit is returned when a record cannot fit even after eviction.
var ErrMemoryLimit = errors.New("history memory limit exceeded")

// Store implements history.Store with TTL expiry and LRU eviction.
// PRINCIPLES:
// - KISS: One map guarded by one mutex
// - DIP: Implements history.Store interface
type Store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	size     int64
	maxBytes int64
	ttl      time.Duration

	serializer *serialization.Serializer
	now        func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

// Config holds configuration for Store
type Config struct {
	DefaultTTL      time.Duration             // Record lifetime; 0 means 24h
	MaxMemoryMB     int64                     // Payload budget; 0 means 256MB
	CleanupInterval time.Duration             // Expiry sweep period; 0 means 5m
	Serializer      *serialization.Serializer // Payload codec (optional)
}

// entry keeps the scalar fields decoded and the payload serialized.
type entry struct {
	header     history.Record
	blob       []byte
	expires    time.Time
	accessedAt time.Time
}

// Stats reports memory usage.
type Stats struct {
	Count              int     `json:"count"`
	SizeBytes          int64   `json:"size_bytes"`
	MaxSizeMB          int64   `json:"max_size_mb"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// New creates a store and starts its expiry sweep. Call Close to stop it.
func New(cfg Config) *Store {
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = 24 * time.Hour
	}
	if cfg.MaxMemoryMB == 0 {
		cfg.MaxMemoryMB = 256
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.Serializer == nil {
		cfg.Serializer = serialization.DefaultSerializer()
	}

	s := &Store{
		entries:    make(map[string]*entry),
		maxBytes:   cfg.MaxMemoryMB * 1024 * 1024,
		ttl:        cfg.DefaultTTL,
		serializer: cfg.Serializer,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go s.sweep(cfg.CleanupInterval)
	return s
}

// Save stores or replaces a record.
func (s *Store) Save(_ context.Context, r *history.Record) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("record validation failed: %w", err)
	}
	blob, err := s.serializer.Serialize(r.Payload())
	if err != nil {
		return fmt.Errorf("record serialization failed: %w", err)
	}

	header := *r
	header.SetPayload(history.Payload{})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.remove(r.ID)
	need := int64(len(blob))
	if s.size+need > s.maxBytes {
		s.evictLRU(s.size + need - s.maxBytes)
		if s.size+need > s.maxBytes {
			return fmt.Errorf("%w: need %d bytes, %d of %d in use", ErrMemoryLimit, need, s.size, s.maxBytes)
		}
	}

	now := s.now()
	s.entries[r.ID] = &entry{header: header, blob: blob, expires: now.Add(s.ttl), accessedAt: now}
	s.size += need
	return nil
}

// Load retrieves a record by ID.
func (s *Store) Load(_ context.Context, id string) (*history.Record, error) {
	if id == "" {
		return nil, history.ErrInvalidRecordID
	}

	s.mu.Lock()
	e, ok := s.live(id)
	if ok {
		e.accessedAt = s.now()
	}
	s.mu.Unlock()
	if !ok {
		return nil, history.ErrRecordNotFound
	}
	return s.decode(e)
}

// List returns matching records, newest first.
func (s *Store) List(_ context.Context, filter history.Filter) ([]*history.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter validation failed: %w", err)
	}

	s.mu.Lock()
	var matched []*entry
	for id := range s.entries {
		e, ok := s.live(id)
		if ok && filter.Matches(&e.header) {
			matched = append(matched, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i].header, matched[j].header
		if !a.StartedAt.Equal(b.StartedAt) {
			return a.StartedAt.After(b.StartedAt)
		}
		return a.ID < b.ID
	})

	if filter.Offset >= len(matched) {
		return []*history.Record{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	out := make([]*history.Record, 0, len(matched))
	for _, e := range matched {
		r, err := s.decode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Delete removes a record by ID.
func (s *Store) Delete(_ context.Context, id string) error {
	if id == "" {
		return history.ErrInvalidRecordID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(id); !ok {
		return history.ErrRecordNotFound
	}
	s.remove(id)
	return nil
}

// Stats returns memory usage statistics.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Count: len(s.entries), SizeBytes: s.size, MaxSizeMB: s.maxBytes / (1024 * 1024)}
	if s.maxBytes > 0 {
		st.UtilizationPercent = float64(s.size) / float64(s.maxBytes) * 100
	}
	return st
}

// Close stops the expiry sweep.
func (s *Store) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *Store) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.expire()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.entries {
		s.live(id)
	}
}

// live returns the entry for id, dropping it if expired. Caller holds mu.
func (s *Store) live(id string) (*entry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	if s.now().After(e.expires) {
		s.remove(id)
		return nil, false
	}
	return e, true
}

// remove drops id. Caller holds mu.
func (s *Store) remove(id string) {
	if e, ok := s.entries[id]; ok {
		s.size -= int64(len(e.blob))
		delete(s.entries, id)
	}
}

// evictLRU drops least recently used entries until target bytes are freed.
// Caller holds mu.
func (s *Store) evictLRU(target int64) {
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.entries[ids[i]].accessedAt.Before(s.entries[ids[j]].accessedAt)
	})

	var freed int64
	for _, id := range ids {
		if freed >= target {
			return
		}
		freed += int64(len(s.entries[id].blob))
		s.remove(id)
	}
}

func (s *Store) decode(e *entry) (*history.Record, error) {
	var p history.Payload
	if err := s.serializer.Deserialize(e.blob, &p); err != nil {
		return nil, fmt.Errorf("record deserialization failed: %w", err)
	}
	r := e.header
	r.SetPayload(p)
	return &r, nil
}

var _ history.Store = (*Store)(nil)
