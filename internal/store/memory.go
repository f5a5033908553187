package store

import (
	"context"
	"errors"
	"sync"

	"github.com/i474232898/weather-oracle/internal/domain"
)

var (
	// ErrNotFound is returned when no oracle is tracked under the given id.
	ErrNotFound = errors.New("oracle not found")
	// ErrDuplicate is returned when an oracle id is already tracked.
	ErrDuplicate = errors.New("oracle already tracked")
)

// MemoryStore is a concurrency-safe in-memory implementation of
// domain.OracleRepository. Contents are lost on restart.
type MemoryStore struct {
	mu sync.RWMutex

	// records in creation order
	records []domain.TrackedOracle
	// key: oracle id, value: index into records
	index       map[string]int
	settlements map[string]domain.SettlementState
}

var _ domain.OracleRepository = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index:       make(map[string]int),
		settlements: make(map[string]domain.SettlementState),
	}
}

func (s *MemoryStore) Append(_ context.Context, o domain.TrackedOracle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[o.ID]; ok {
		return ErrDuplicate
	}
	s.index[o.ID] = len(s.records)
	s.records = append(s.records, o)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (domain.TrackedOracle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return domain.TrackedOracle{}, ErrNotFound
	}
	return s.records[i], nil
}

// List returns a copy of all records.
func (s *MemoryStore) List(_ context.Context) ([]domain.TrackedOracle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TrackedOracle, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Page uses the 1-based position in records as the cursor.
func (s *MemoryStore) Page(_ context.Context, after int64, limit int) ([]domain.TrackedOracle, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if after < 0 || after >= int64(len(s.records)) || limit <= 0 {
		return nil, after, nil
	}
	start := int(after)
	end := start + limit
	if end > len(s.records) {
		end = len(s.records)
	}
	out := make([]domain.TrackedOracle, end-start)
	copy(out, s.records[start:end])
	return out, int64(end), nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *MemoryStore) Settlement(_ context.Context, id string) (domain.SettlementState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.index[id]; !ok {
		return domain.SettlementState{}, ErrNotFound
	}
	st, ok := s.settlements[id]
	if !ok {
		return domain.SettlementState{OracleID: id}, nil
	}
	return st, nil
}

func (s *MemoryStore) SaveSettlement(_ context.Context, st domain.SettlementState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[st.OracleID]; !ok {
		return ErrNotFound
	}
	s.settlements[st.OracleID] = st
	return nil
}

func (s *MemoryStore) DeadLetters(_ context.Context) ([]domain.TrackedOracle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.TrackedOracle{}
	for _, o := range s.records {
		if s.settlements[o.ID].DeadLettered {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
