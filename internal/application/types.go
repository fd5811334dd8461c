package application

import (
	"sync"
	"time"

	"github.com/gigforge/escrow-engine/internal/ports"
)

type Config struct {
	ServiceName          string
	IdempotencyTTL       time.Duration
	OutboxFlushBatchSize int
}

// Actor is the authenticated caller identity. It is always passed explicitly;
// the engine never reads identity from ambient context.
type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

type CreateJobInput struct {
	FreelancerID     string
	ArbiterID        string
	MilestoneAmounts []int64
}

type FundJobInput struct {
	JobID  uint64
	Amount int64
}

type RaiseDisputeInput struct {
	JobID  uint64
	Reason string
}

type ResolveDisputeInput struct {
	JobID   uint64
	Outcome string
}

// Service is the job lifecycle controller. Every public operation runs as one
// serialized critical section under mu; transferring is set for the span of an
// in-flight settlement call, during which mu is released so that a synchronous
// callback re-enters, observes the flag and is rejected instead of corrupting
// pre-transfer state.
type Service struct {
	cfg Config

	mu           sync.Mutex
	transferring bool

	jobs        ports.JobRepository
	withdrawals ports.WithdrawalRepository
	idempotency ports.IdempotencyRepository
	outbox      ports.OutboxRepository
	settlement  ports.SettlementClient

	domainEvents ports.DomainPublisher
	analytics    ports.AnalyticsPublisher
	dlq          ports.DLQPublisher

	nowFn func() time.Time
}

type Dependencies struct {
	Config       Config
	Jobs         ports.JobRepository
	Withdrawals  ports.WithdrawalRepository
	Idempotency  ports.IdempotencyRepository
	Outbox       ports.OutboxRepository
	Settlement   ports.SettlementClient
	DomainEvents ports.DomainPublisher
	Analytics    ports.AnalyticsPublisher
	DLQ          ports.DLQPublisher
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "Escrow-Engine"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.OutboxFlushBatchSize <= 0 {
		cfg.OutboxFlushBatchSize = 100
	}
	return &Service{
		cfg:          cfg,
		jobs:         deps.Jobs,
		withdrawals:  deps.Withdrawals,
		idempotency:  deps.Idempotency,
		outbox:       deps.Outbox,
		settlement:   deps.Settlement,
		domainEvents: deps.DomainEvents,
		analytics:    deps.Analytics,
		dlq:          deps.DLQ,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}
