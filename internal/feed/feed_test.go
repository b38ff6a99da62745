package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFeedBuffersVerdicts(t *testing.T) {
	f := NewMemoryFeed()
	ctx := context.Background()

	v := Verdict{
		MessageID:   NewMessageID(),
		PromiseID:   "prm_f9e3ab751b5c48114e88711d",
		ProjectID:   "proj_towel",
		TokenSymbol: "$TOWEL",
		Observed:    true,
		EvaluatedAt: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.PublishVerdict(ctx, v))

	got := f.Verdicts()
	require.Len(t, got, 1)
	assert.Equal(t, v, got[0])

	// Returned slice is a copy; mutating it does not leak back.
	got[0].PromiseID = "mutated"
	assert.Equal(t, v.PromiseID, f.Verdicts()[0].PromiseID)

	require.NoError(t, f.Close())
}

func TestMemoryFeedConcurrentPublish(t *testing.T) {
	f := NewMemoryFeed()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.PublishVerdict(ctx, Verdict{MessageID: NewMessageID()})
		}()
	}
	wg.Wait()

	assert.Len(t, f.Verdicts(), 20)
}

func TestNewMessageIDIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewMessageID()
		assert.Contains(t, id, "msg_")
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestRedisFeedStreamKey(t *testing.T) {
	f := NewRedisFeed(nil, "ledger-staging", 0)
	assert.Equal(t, "ledger-staging:verdicts", f.StreamKey())

	defaulted := NewRedisFeed(nil, "", 0)
	assert.Equal(t, "ledger:verdicts", defaulted.StreamKey())
}
