package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gigforge/escrow-engine/internal/adapters/memory"
	"github.com/gigforge/escrow-engine/internal/domain"
	"github.com/gigforge/escrow-engine/internal/ports"
)

func TestJobRepositoryAssignsMonotonicIDs(t *testing.T) {
	repos := memory.NewRepositories()
	ctx := context.Background()
	row := domain.Job{Client: "client-1", Freelancer: "dev-1", Milestones: domain.NewMilestones([]int64{100}), State: domain.JobStateCreated}

	first, err := repos.Jobs.Create(ctx, row)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := repos.Jobs.Create(ctx, row)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", first, second)
	}
	if _, err := repos.Jobs.GetByID(ctx, 3); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing job err = %v, want ErrNotFound", err)
	}
}

func TestJobRepositoryIsolatesStoredRows(t *testing.T) {
	repos := memory.NewRepositories()
	ctx := context.Background()
	id, err := repos.Jobs.Create(ctx, domain.Job{Client: "client-1", Freelancer: "dev-1", Milestones: domain.NewMilestones([]int64{100, 200}), State: domain.JobStateCreated})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repos.Jobs.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Milestones[0].State = domain.MilestoneStateReleased
	got.State = domain.JobStateCompleted

	fresh, err := repos.Jobs.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fresh.Milestones[0].State != domain.MilestoneStateLocked || fresh.State != domain.JobStateCreated {
		t.Fatalf("caller mutation leaked into store: %+v", fresh)
	}

	if err := repos.Jobs.Update(ctx, domain.Job{JobID: 99}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update missing err = %v, want ErrNotFound", err)
	}
}

func TestWithdrawalRepositoryLedger(t *testing.T) {
	repos := memory.NewRepositories()
	ctx := context.Background()
	now := time.Now().UTC()

	account, err := repos.Withdrawals.Get(ctx, "dev-1")
	if err != nil {
		t.Fatalf("get unknown account: %v", err)
	}
	if account.Owed != 0 || account.LifetimeCredited != 0 {
		t.Fatalf("unknown account = %+v, want zero value", account)
	}

	if err := repos.Withdrawals.Credit(ctx, "dev-1", 100, now); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := repos.Withdrawals.Credit(ctx, "dev-1", 200, now); err != nil {
		t.Fatalf("credit: %v", err)
	}
	account, _ = repos.Withdrawals.Get(ctx, "dev-1")
	if account.Owed != 300 || account.LifetimeCredited != 300 {
		t.Fatalf("after credits = %+v", account)
	}

	drained, err := repos.Withdrawals.Zero(ctx, "dev-1", now)
	if err != nil || drained != 300 {
		t.Fatalf("zero = (%d, %v), want (300, nil)", drained, err)
	}
	drained, err = repos.Withdrawals.Zero(ctx, "dev-1", now)
	if err != nil || drained != 0 {
		t.Fatalf("second zero = (%d, %v), want (0, nil)", drained, err)
	}

	if err := repos.Withdrawals.Restore(ctx, "dev-1", 300, now); err != nil {
		t.Fatalf("restore: %v", err)
	}
	account, _ = repos.Withdrawals.Get(ctx, "dev-1")
	if account.Owed != 300 {
		t.Fatalf("owed after restore = %d, want 300", account.Owed)
	}
	if account.LifetimeCredited != 300 {
		t.Fatalf("restore inflated lifetime credited to %d", account.LifetimeCredited)
	}
}

func TestIdempotencyRepository(t *testing.T) {
	repos := memory.NewRepositories()
	ctx := context.Background()
	now := time.Now().UTC()

	rec, err := repos.Idempotency.Get(ctx, "k1", now)
	if err != nil || rec != nil {
		t.Fatalf("get missing = (%+v, %v), want (nil, nil)", rec, err)
	}

	if err := repos.Idempotency.Reserve(ctx, "k1", "hash-a", now.Add(time.Hour)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := repos.Idempotency.Reserve(ctx, "k1", "hash-b", now.Add(time.Hour)); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("double reserve err = %v, want ErrConflict", err)
	}

	if err := repos.Idempotency.Complete(ctx, "k1", 200, []byte(`{"ok":true}`), now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	rec, err = repos.Idempotency.Get(ctx, "k1", now)
	if err != nil || rec == nil {
		t.Fatalf("get after complete = (%+v, %v)", rec, err)
	}
	if rec.RequestHash != "hash-a" || rec.ResponseCode != 200 || string(rec.ResponseBody) != `{"ok":true}` {
		t.Fatalf("record = %+v", rec)
	}

	rec, err = repos.Idempotency.Get(ctx, "k1", now.Add(2*time.Hour))
	if err != nil || rec != nil {
		t.Fatalf("expired get = (%+v, %v), want (nil, nil)", rec, err)
	}

	if err := repos.Idempotency.Complete(ctx, "missing", 200, nil, now); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("complete missing err = %v, want ErrNotFound", err)
	}
}

func TestOutboxRepositoryOrderAndMarkSent(t *testing.T) {
	repos := memory.NewRepositories()
	ctx := context.Background()
	now := time.Now().UTC()

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = uuid.NewString()
		if err := repos.Outbox.Enqueue(ctx, ports.OutboxRecord{RecordID: ids[i], EventClass: domain.CanonicalEventClassAnalyticsOnly, CreatedAt: now}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := repos.Outbox.Enqueue(ctx, ports.OutboxRecord{RecordID: ids[0]}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate enqueue err = %v, want ErrConflict", err)
	}

	pending, err := repos.Outbox.ListPending(ctx, 2)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 || pending[0].RecordID != ids[0] || pending[1].RecordID != ids[1] {
		t.Fatalf("pending batch out of order: %+v", pending)
	}

	if err := repos.Outbox.MarkSent(ctx, ids[0], now); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	pending, _ = repos.Outbox.ListPending(ctx, 10)
	if len(pending) != 2 || pending[0].RecordID != ids[1] {
		t.Fatalf("pending after mark sent: %+v", pending)
	}
	if err := repos.Outbox.MarkSent(ctx, "missing", now); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("mark sent missing err = %v, want ErrNotFound", err)
	}
}
