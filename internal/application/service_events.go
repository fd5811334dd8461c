package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gigforge/escrow-engine/internal/contracts"
	"github.com/gigforge/escrow-engine/internal/domain"
	"github.com/gigforge/escrow-engine/internal/ports"
)

// FlushOutbox publishes pending outbox records to the configured publishers.
// Domain-class publish failures stop the flush and land a DLQ record;
// analytics failures are dropped.
func (s *Service) FlushOutbox(ctx context.Context) error {
	if s.outbox == nil {
		return nil
	}
	pending, err := s.outbox.ListPending(ctx, s.cfg.OutboxFlushBatchSize)
	if err != nil {
		return err
	}
	for _, rec := range pending {
		now := s.nowFn()
		switch rec.EventClass {
		case domain.CanonicalEventClassDomain:
			if s.domainEvents != nil {
				if err := s.domainEvents.PublishDomain(ctx, rec.Envelope); err != nil {
					if s.dlq != nil {
						n := s.nowFn()
						_ = s.dlq.PublishDLQ(ctx, contracts.DLQRecord{OriginalEvent: rec.Envelope, ErrorSummary: err.Error(), RetryCount: 1, FirstSeenAt: n, LastErrorAt: n, SourceTopic: rec.Envelope.EventType, DLQTopic: "escrow-engine.dlq", TraceID: rec.Envelope.TraceID})
					}
					return err
				}
			}
		case domain.CanonicalEventClassAnalyticsOnly:
			if s.analytics != nil {
				_ = s.analytics.PublishAnalytics(ctx, rec.Envelope)
			}
		default:
			return fmt.Errorf("%w: %s", domain.ErrUnsupportedEventClass, rec.EventClass)
		}
		if err := s.outbox.MarkSent(ctx, rec.RecordID, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) enqueueEvent(ctx context.Context, eventType, traceID string, data any, partitionKey string, now time.Time) error {
	if s.outbox == nil {
		return nil
	}
	if !domain.IsCanonicalEmittedEvent(eventType) {
		return domain.ErrUnsupportedEventType
	}
	b, err := json.Marshal(data)
	if err != nil {
		return domain.ErrInvalidInput
	}
	if strings.TrimSpace(traceID) == "" {
		traceID = uuid.NewString()
	}
	env := contracts.EventEnvelope{
		EventID:          uuid.NewString(),
		EventType:        eventType,
		EventClass:       domain.CanonicalEventClass(eventType),
		OccurredAt:       now,
		PartitionKeyPath: domain.CanonicalPartitionKeyPath(eventType),
		PartitionKey:     partitionKey,
		SourceService:    s.cfg.ServiceName,
		TraceID:          traceID,
		SchemaVersion:    "v1",
		Data:             b,
	}
	return s.outbox.Enqueue(ctx, ports.OutboxRecord{RecordID: uuid.NewString(), EventClass: env.EventClass, Envelope: env, CreatedAt: now})
}

func jobPartitionKey(jobID uint64) string { return strconv.FormatUint(jobID, 10) }

func (s *Service) enqueueJobCreated(ctx context.Context, job domain.Job, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventJobCreated, traceID, contracts.JobCreatedPayload{JobID: job.JobID, Client: job.Client, Freelancer: job.Freelancer, Arbiter: job.Arbiter, TotalAmount: job.TotalAmount, CreatedAt: now.Format(time.RFC3339)}, jobPartitionKey(job.JobID), now)
}

func (s *Service) enqueueJobFunded(ctx context.Context, jobID uint64, amount int64, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventJobFunded, traceID, contracts.JobFundedPayload{JobID: jobID, Amount: amount, FundedAt: now.Format(time.RFC3339)}, jobPartitionKey(jobID), now)
}

func (s *Service) enqueueJobCancelled(ctx context.Context, jobID uint64, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventJobCancelled, traceID, contracts.JobCancelledPayload{JobID: jobID, CancelledAt: now.Format(time.RFC3339)}, jobPartitionKey(jobID), now)
}

func (s *Service) enqueueMilestoneSubmitted(ctx context.Context, jobID uint64, index int, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventMilestoneSubmitted, traceID, contracts.MilestoneSubmittedPayload{JobID: jobID, Index: index, SubmittedAt: now.Format(time.RFC3339)}, jobPartitionKey(jobID), now)
}

func (s *Service) enqueueMilestoneAccepted(ctx context.Context, jobID uint64, index int, amount int64, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventMilestoneAccepted, traceID, contracts.MilestoneAcceptedPayload{JobID: jobID, Index: index, Amount: amount, AcceptedAt: now.Format(time.RFC3339)}, jobPartitionKey(jobID), now)
}

func (s *Service) enqueueDisputeRaised(ctx context.Context, jobID uint64, index int, raiser, reason, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventDisputeRaised, traceID, contracts.DisputeRaisedPayload{JobID: jobID, Index: index, Raiser: raiser, Reason: reason, RaisedAt: now.Format(time.RFC3339)}, jobPartitionKey(jobID), now)
}

func (s *Service) enqueueDisputeResolved(ctx context.Context, jobID uint64, index int, outcome string, freelancerAmount, clientAmount int64, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventDisputeResolved, traceID, contracts.DisputeResolvedPayload{JobID: jobID, Index: index, Outcome: outcome, FreelancerAmount: freelancerAmount, ClientAmount: clientAmount, ResolvedAt: now.Format(time.RFC3339)}, jobPartitionKey(jobID), now)
}

func (s *Service) enqueueWithdrawalSettled(ctx context.Context, identity string, amount int64, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventWithdrawalSettled, traceID, contracts.WithdrawalSettledPayload{Identity: identity, Amount: amount, SettledAt: now.Format(time.RFC3339)}, identity, now)
}
