package memory

import (
	"context"
	"sync"
	"time"

	"github.com/gigforge/escrow-engine/internal/domain"
	"github.com/gigforge/escrow-engine/internal/ports"
)

// Repositories is the in-process store used for local runs and tests. The
// shapes mirror the postgres adapter; the service cannot tell them apart.
type Repositories struct {
	Jobs        *JobRepository
	Withdrawals *WithdrawalRepository
	Idempotency *IdempotencyRepository
	Outbox      *OutboxRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Jobs:        &JobRepository{rows: map[uint64]domain.Job{}},
		Withdrawals: &WithdrawalRepository{rows: map[string]domain.WithdrawalAccount{}},
		Idempotency: &IdempotencyRepository{rows: map[string]ports.IdempotencyRecord{}},
		Outbox:      &OutboxRepository{rows: map[string]ports.OutboxRecord{}, order: []string{}},
	}
}

type JobRepository struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]domain.Job
}

// cloneJob isolates the stored record from caller mutation; the milestone
// slice would otherwise alias.
func cloneJob(j domain.Job) domain.Job {
	ms := make([]domain.Milestone, len(j.Milestones))
	copy(ms, j.Milestones)
	j.Milestones = ms
	if j.FundedAt != nil {
		t := *j.FundedAt
		j.FundedAt = &t
	}
	return j
}

func (r *JobRepository) Create(_ context.Context, row domain.Job) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	row.JobID = r.nextID
	r.rows[row.JobID] = cloneJob(row)
	return row.JobID, nil
}

func (r *JobRepository) GetByID(_ context.Context, jobID uint64) (domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[jobID]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return cloneJob(row), nil
}

func (r *JobRepository) Update(_ context.Context, row domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[row.JobID]; !ok {
		return domain.ErrNotFound
	}
	r.rows[row.JobID] = cloneJob(row)
	return nil
}

type WithdrawalRepository struct {
	mu   sync.Mutex
	rows map[string]domain.WithdrawalAccount
}

func (r *WithdrawalRepository) Get(_ context.Context, identity string) (domain.WithdrawalAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[identity]
	if !ok {
		return domain.WithdrawalAccount{Identity: identity}, nil
	}
	return row, nil
}

func (r *WithdrawalRepository) Credit(_ context.Context, identity string, amount int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.rows[identity]
	row.Identity = identity
	row.Owed += amount
	row.LifetimeCredited += amount
	row.UpdatedAt = at
	r.rows[identity] = row
	return nil
}

func (r *WithdrawalRepository) Zero(_ context.Context, identity string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[identity]
	if !ok || row.Owed == 0 {
		return 0, nil
	}
	drained := row.Owed
	row.Owed = 0
	row.UpdatedAt = at
	r.rows[identity] = row
	return drained, nil
}

func (r *WithdrawalRepository) Restore(_ context.Context, identity string, amount int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.rows[identity]
	row.Identity = identity
	row.Owed += amount
	row.UpdatedAt = at
	r.rows[identity] = row
	return nil
}

type IdempotencyRepository struct {
	mu   sync.Mutex
	rows map[string]ports.IdempotencyRecord
}

func (r *IdempotencyRepository) Get(_ context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[key]
	if !ok {
		return nil, nil
	}
	if now.After(row.ExpiresAt) {
		delete(r.rows, key)
		return nil, nil
	}
	c := row
	c.ResponseBody = append([]byte(nil), row.ResponseBody...)
	return &c, nil
}

func (r *IdempotencyRepository) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[key]; ok && time.Now().UTC().Before(row.ExpiresAt) {
		return domain.ErrConflict
	}
	r.rows[key] = ports.IdempotencyRecord{Key: key, RequestHash: requestHash, ExpiresAt: expiresAt}
	return nil
}

func (r *IdempotencyRepository) Complete(_ context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[key]
	if !ok {
		return domain.ErrNotFound
	}
	row.ResponseCode = responseCode
	row.ResponseBody = append([]byte(nil), responseBody...)
	r.rows[key] = row
	return nil
}

type OutboxRepository struct {
	mu    sync.Mutex
	rows  map[string]ports.OutboxRecord
	order []string
}

func (r *OutboxRepository) Enqueue(_ context.Context, row ports.OutboxRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[row.RecordID]; ok {
		return domain.ErrConflict
	}
	r.rows[row.RecordID] = row
	r.order = append(r.order, row.RecordID)
	return nil
}

func (r *OutboxRepository) ListPending(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := make([]ports.OutboxRecord, 0, limit)
	for _, id := range r.order {
		row, ok := r.rows[id]
		if !ok || row.SentAt != nil {
			continue
		}
		out = append(out, row)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkSent(_ context.Context, recordID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[recordID]
	if !ok {
		return domain.ErrNotFound
	}
	row.SentAt = &at
	r.rows[recordID] = row
	return nil
}
