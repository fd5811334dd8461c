package ports

import (
	"context"
	"time"

	"github.com/gigforge/escrow-engine/internal/contracts"
	"github.com/gigforge/escrow-engine/internal/domain"
)

// JobRepository owns job id assignment: Create returns the monotonic id of the
// stored record. Ids are never reused.
type JobRepository interface {
	Create(ctx context.Context, row domain.Job) (uint64, error)
	GetByID(ctx context.Context, jobID uint64) (domain.Job, error)
	Update(ctx context.Context, row domain.Job) error
}

// WithdrawalRepository is the pull-payment ledger. Credit adds to the owed
// balance and the lifetime audit counter; Zero atomically drains the owed
// balance and returns the drained amount; Restore re-adds a drained amount
// after a failed settlement without touching the lifetime counter.
type WithdrawalRepository interface {
	Get(ctx context.Context, identity string) (domain.WithdrawalAccount, error)
	Credit(ctx context.Context, identity string, amount int64, at time.Time) error
	Zero(ctx context.Context, identity string, at time.Time) (int64, error)
	Restore(ctx context.Context, identity string, amount int64, at time.Time) error
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}

type OutboxRecord struct {
	RecordID   string
	EventClass string
	Envelope   contracts.EventEnvelope
	CreatedAt  time.Time
	SentAt     *time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, record OutboxRecord) error
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, recordID string, at time.Time) error
}
