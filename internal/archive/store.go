package archive

import (
	"context"
	"sort"
	"sync"

	"github.com/danpasecinic/harvester/internal/types"
)

// DefaultLimit caps List results when the query does not set a limit.
const DefaultLimit = 100

// Query selects archived sessions. Empty fields match everything.
type Query struct {
	RequesterID string
	JobType     string
	Limit       int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

func (q Query) matches(s *types.ArchivedSession) bool {
	if q.RequesterID != "" && s.RequesterID != q.RequesterID {
		return false
	}
	if q.JobType != "" && s.JobType != q.JobType {
		return false
	}
	return true
}

// Store persists sessions evicted from memory.
type Store interface {
	// Save writes sessions, replacing any existing record with the same ID.
	// It writes all of them or none.
	Save(ctx context.Context, sessions []types.ArchivedSession) error
	// List returns archived sessions, most recently archived first
	List(ctx context.Context, q Query) ([]types.ArchivedSession, error)
	Close() error
}

// InMemoryStore keeps archived sessions in process memory
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]types.ArchivedSession
}

// NewInMemoryStore creates a new in-memory archive
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]types.ArchivedSession),
	}
}

// Save stores sessions keyed by session ID
func (s *InMemoryStore) Save(ctx context.Context, sessions []types.ArchivedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range sessions {
		s.sessions[sess.SessionID] = sess
	}
	return nil
}

// List returns matching sessions, most recently archived first
func (s *InMemoryStore) List(ctx context.Context, q Query) ([]types.ArchivedSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ArchivedSession, 0)
	for _, sess := range s.sessions {
		if q.matches(&sess) {
			out = append(out, sess)
		}
	}

	sort.Slice(
		out, func(i, j int) bool {
			if !out[i].ArchivedAt.Equal(out[j].ArchivedAt) {
				return out[i].ArchivedAt.After(out[j].ArchivedAt)
			}
			return out[i].SessionID > out[j].SessionID
		},
	)

	if len(out) > q.limit() {
		out = out[:q.limit()]
	}
	return out, nil
}

// Close is a no-op for the in-memory archive
func (s *InMemoryStore) Close() error {
	return nil
}
