package trend

import (
	"context"
	"sort"
	"sync"

	"github.com/dokubo/veriseal/internal/syncutil"
)

// MemoryStore is an in-memory signature index for demo/development mode.
// Per-fingerprint updates serialize on a sharded mutex so two concurrent
// rejections of the same pattern cannot both claim the warning.
type MemoryStore struct {
	locks *syncutil.ContextShardedMutex

	mu      sync.RWMutex
	records map[string]*SignatureRecord
}

// NewMemoryStore creates a new in-memory signature store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:   syncutil.NewContextShardedMutex(),
		records: make(map[string]*SignatureRecord),
	}
}

func (m *MemoryStore) Update(ctx context.Context, fingerprint string, attrs Signature, fn func(*SignatureRecord) error) (*SignatureRecord, error) {
	unlock, err := m.locks.LockContext(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	defer unlock()

	m.mu.RLock()
	rec, ok := m.records[fingerprint]
	m.mu.RUnlock()

	var work SignatureRecord
	if ok {
		work = cloneRecord(rec)
	} else {
		work = SignatureRecord{Fingerprint: fingerprint, Attributes: attrs}
	}

	if err := fn(&work); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.records[fingerprint] = &work
	m.mu.Unlock()

	out := cloneRecord(&work)
	return &out, nil
}

func (m *MemoryStore) Get(_ context.Context, fingerprint string) (*SignatureRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[fingerprint]
	if !ok {
		return nil, ErrSignatureNotFound
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]*SignatureRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*SignatureRecord, 0, len(m.records))
	for _, rec := range m.records {
		cp := cloneRecord(rec)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneRecord(r *SignatureRecord) SignatureRecord {
	cp := *r
	cp.Occurrences = append([]Occurrence(nil), r.Occurrences...)
	return cp
}

var _ Store = (*MemoryStore)(nil)
