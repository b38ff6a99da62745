// Package feed publishes evaluation verdicts for downstream dashboard
// consumers. The ledger itself never depends on delivery: publish failures are
// logged by the caller and do not roll back committed evaluations.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Verdict is the wire message emitted after an evaluation commits.
type Verdict struct {
	MessageID   string    `json:"message_id"`
	PromiseID   string    `json:"promise_id"`
	ProjectID   string    `json:"project_id"`
	TokenSymbol string    `json:"token_symbol"`
	Observed    bool      `json:"observed"`
	EvaluatedBy string    `json:"evaluated_by"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// NewMessageID mints a unique feed message identifier.
func NewMessageID() string {
	return "msg_" + uuid.NewString()
}

type Publisher interface {
	PublishVerdict(ctx context.Context, v Verdict) error
	Close() error
}

// RedisFeed publishes verdicts onto a Redis stream, one stream per namespace.
type RedisFeed struct {
	client    *redis.Client
	streamKey string
	maxLen    int64
}

var _ Publisher = (*RedisFeed)(nil)

func NewRedisFeed(client *redis.Client, namespace string, maxLen int64) *RedisFeed {
	if namespace == "" {
		namespace = "ledger"
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisFeed{
		client:    client,
		streamKey: namespace + ":verdicts",
		maxLen:    maxLen,
	}
}

func (f *RedisFeed) StreamKey() string {
	return f.streamKey
}

func (f *RedisFeed) PublishVerdict(ctx context.Context, v Verdict) error {
	return f.client.XAdd(ctx, &redis.XAddArgs{
		Stream: f.streamKey,
		MaxLen: f.maxLen,
		Approx: true,
		Values: map[string]any{
			"message_id":   v.MessageID,
			"promise_id":   v.PromiseID,
			"project_id":   v.ProjectID,
			"token_symbol": v.TokenSymbol,
			"observed":     v.Observed,
			"evaluated_by": v.EvaluatedBy,
			"evaluated_at": v.EvaluatedAt.UTC().Format(time.RFC3339),
		},
	}).Err()
}

func (f *RedisFeed) Close() error {
	return f.client.Close()
}

// MemoryFeed buffers verdicts in process. Used when no Redis endpoint is
// configured, and by tests.
type MemoryFeed struct {
	mu       sync.Mutex
	verdicts []Verdict
}

var _ Publisher = (*MemoryFeed)(nil)

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{}
}

func (f *MemoryFeed) PublishVerdict(_ context.Context, v Verdict) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verdicts = append(f.verdicts, v)
	return nil
}

// Verdicts returns a copy of everything published so far.
func (f *MemoryFeed) Verdicts() []Verdict {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Verdict, len(f.verdicts))
	copy(out, f.verdicts)
	return out
}

func (f *MemoryFeed) Close() error {
	return nil
}
