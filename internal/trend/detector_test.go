package trend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureDispatcher struct {
	mu     sync.Mutex
	events []*WarningEvent
}

func (c *captureDispatcher) Notify(_ context.Context, event *WarningEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureDispatcher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func testSig() Signature {
	return Signature{Merchant: "cafe luna", RefShape: "TXN-#"}
}

func TestDetectorWarnsOnceAtThreshold(t *testing.T) {
	disp := &captureDispatcher{}
	det := NewDetector(NewMemoryStore(), Policy{MinCount: 3, MinDistinctOwners: 2}, disp)
	ctx := context.Background()
	sig := testSig()

	rec, warned, err := det.Record(ctx, sig, "owner-a", "sub_1")
	require.NoError(t, err)
	assert.False(t, warned)
	assert.Equal(t, 1, rec.Count)

	_, warned, err = det.Record(ctx, sig, "owner-a", "sub_2")
	require.NoError(t, err)
	assert.False(t, warned)

	// Third hit, second distinct owner: threshold crossed.
	rec, warned, err = det.Record(ctx, sig, "owner-b", "sub_3")
	require.NoError(t, err)
	assert.True(t, warned)
	assert.True(t, rec.Warned)
	assert.Equal(t, 3, rec.Count)
	require.Equal(t, 1, disp.count())
	assert.Equal(t, sig.Fingerprint(), disp.events[0].Fingerprint)
	assert.Equal(t, 2, disp.events[0].DistinctOwner)

	// Further hits never re-warn.
	_, warned, err = det.Record(ctx, sig, "owner-c", "sub_4")
	require.NoError(t, err)
	assert.False(t, warned)
	assert.Equal(t, 1, disp.count())
}

func TestDetectorRequiresDistinctOwners(t *testing.T) {
	det := NewDetector(NewMemoryStore(), Policy{MinCount: 3, MinDistinctOwners: 2}, nil)
	ctx := context.Background()
	sig := testSig()

	// One owner retrying their own receipt is not a trend.
	for i := 0; i < 5; i++ {
		rec, warned, err := det.Record(ctx, sig, "owner-a", fmt.Sprintf("sub_%d", i))
		require.NoError(t, err)
		assert.False(t, warned)
		assert.False(t, rec.Warned)
	}
}

func TestDetectorReplayedSubmissionCounts(t *testing.T) {
	det := NewDetector(NewMemoryStore(), DefaultPolicy(), nil)
	ctx := context.Background()
	sig := testSig()

	// Re-recording the same submission is two recordings. The warned flag,
	// not count dedup, is what keeps a signature from warning twice.
	for i := 1; i <= 3; i++ {
		rec, _, err := det.Record(ctx, sig, "owner-a", "sub_same")
		require.NoError(t, err)
		assert.Equal(t, i, rec.Count)
		assert.Len(t, rec.Occurrences, i)
	}
}

func TestDetectorReplayNeverRewarns(t *testing.T) {
	disp := &captureDispatcher{}
	det := NewDetector(NewMemoryStore(), Policy{MinCount: 2, MinDistinctOwners: 1}, disp)
	ctx := context.Background()
	sig := testSig()

	for i := 0; i < 4; i++ {
		_, _, err := det.Record(ctx, sig, "owner-a", "sub_same")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, disp.count())
}

func TestDetectorSkipsEmptySignature(t *testing.T) {
	store := NewMemoryStore()
	det := NewDetector(store, DefaultPolicy(), nil)

	rec, warned, err := det.Record(context.Background(), Signature{}, "owner-a", "sub_1")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.False(t, warned)

	list, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDetectorWindowExpiry(t *testing.T) {
	det := NewDetector(NewMemoryStore(), Policy{MinCount: 3, MinDistinctOwners: 2, Window: time.Hour}, nil)
	ctx := context.Background()
	sig := testSig()

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	det.now = func() time.Time { return clock }

	_, warned, err := det.Record(ctx, sig, "owner-a", "sub_1")
	require.NoError(t, err)
	assert.False(t, warned)

	_, warned, err = det.Record(ctx, sig, "owner-b", "sub_2")
	require.NoError(t, err)
	assert.False(t, warned)

	// Third hit lands after the first two aged out of the window.
	clock = clock.Add(2 * time.Hour)
	rec, warned, err := det.Record(ctx, sig, "owner-c", "sub_3")
	require.NoError(t, err)
	assert.False(t, warned, "stale occurrences must not count toward the threshold")
	assert.Len(t, rec.Occurrences, 1)
	// Lifetime count is not pruned with the window.
	assert.Equal(t, 3, rec.Count)
}

func TestDetectorConcurrentSingleWarning(t *testing.T) {
	disp := &captureDispatcher{}
	det := NewDetector(NewMemoryStore(), Policy{MinCount: 3, MinDistinctOwners: 2}, disp)
	sig := testSig()

	const goroutines = 32
	var warnCount atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := fmt.Sprintf("owner-%d", i%4)
			_, warned, err := det.Record(context.Background(), sig, owner, fmt.Sprintf("sub_%d", i))
			if err != nil {
				t.Error(err)
				return
			}
			if warned {
				warnCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), warnCount.Load(), "exactly one recording may claim the warning")
	assert.Equal(t, 1, disp.count())
}

type failingStore struct{}

func (failingStore) Update(context.Context, string, Signature, func(*SignatureRecord) error) (*SignatureRecord, error) {
	return nil, errors.New("connection refused")
}
func (failingStore) Get(context.Context, string) (*SignatureRecord, error) {
	return nil, errors.New("connection refused")
}
func (failingStore) List(context.Context, int) ([]*SignatureRecord, error) {
	return nil, errors.New("connection refused")
}

func TestDetectorWrapsStoreFailure(t *testing.T) {
	det := NewDetector(failingStore{}, DefaultPolicy(), nil)
	_, _, err := det.Record(context.Background(), testSig(), "owner-a", "sub_1")
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}
