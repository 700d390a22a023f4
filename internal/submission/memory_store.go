package submission

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dokubo/veriseal/internal/verdict"
)

// MemoryStore is an in-memory submission log for demo/development mode.
type MemoryStore struct {
	mu          sync.RWMutex
	submissions map[string]*Submission
	results     map[string]*verdict.Result
	byOwner     map[string][]string // ownerRef -> submission IDs, insertion order
}

// NewMemoryStore creates a new in-memory submission store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		submissions: make(map[string]*Submission),
		results:     make(map[string]*verdict.Result),
		byOwner:     make(map[string][]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, sub *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.submissions[sub.ID] = &cp
	m.byOwner[sub.AccountOwnerRef] = append(m.byOwner[sub.AccountOwnerRef], sub.ID)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.submissions[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *MemoryStore) CreateResult(_ context.Context, result *verdict.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *result
	m.results[result.SubmissionID] = &cp
	return nil
}

func (m *MemoryStore) GetResult(_ context.Context, submissionID string) (*verdict.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[submissionID]
	if !ok {
		return nil, ErrResultNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) ListResultsByOwner(_ context.Context, ownerRef string, before time.Time, limit int) ([]*verdict.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*verdict.Result
	for _, id := range m.byOwner[ownerRef] {
		if r, ok := m.results[id]; ok {
			if !before.IsZero() && !r.DecidedAt.Before(before) {
				continue
			}
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DecidedAt.After(out[j].DecidedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
