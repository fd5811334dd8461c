package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/gigforge/escrow-engine/internal/domain"
)

// CreateJob records a new escrow engagement. The caller becomes the client.
// The milestone list is fixed from here on; its sum is the amount the client
// must deposit at funding.
func (s *Service) CreateJob(ctx context.Context, actor Actor, input CreateJobInput) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transferring {
		return domain.Job{}, domain.ErrReentrancy
	}
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Job{}, domain.ErrNotAuthorized
	}
	input.FreelancerID = strings.TrimSpace(input.FreelancerID)
	input.ArbiterID = strings.TrimSpace(input.ArbiterID)
	if err := domain.ValidateCreateJobInput(actor.SubjectID, input.FreelancerID, input.MilestoneAmounts); err != nil {
		return domain.Job{}, err
	}
	requestHash := hashJSON(input)
	if cached, ok, err := s.getIdempotentJob(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Job{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Job{}, err
	}
	now := s.nowFn()
	job := domain.Job{
		Client:      actor.SubjectID,
		Freelancer:  input.FreelancerID,
		Arbiter:     input.ArbiterID,
		TotalAmount: domain.TotalAmount(input.MilestoneAmounts),
		Milestones:  domain.NewMilestones(input.MilestoneAmounts),
		State:       domain.JobStateCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	jobID, err := s.jobs.Create(ctx, job)
	if err != nil {
		return domain.Job{}, err
	}
	job.JobID = jobID
	if err := s.enqueueJobCreated(ctx, job, actor.RequestID, now); err != nil {
		return domain.Job{}, err
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, job)
	return job, nil
}

// FundJob moves a job into custody. The deposited value must equal the
// milestone total exactly; anything else is rejected before any mutation.
func (s *Service) FundJob(ctx context.Context, actor Actor, input FundJobInput) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transferring {
		return domain.Job{}, domain.ErrReentrancy
	}
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Job{}, domain.ErrNotAuthorized
	}
	requestHash := hashJSON(input)
	if cached, ok, err := s.getIdempotentJob(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Job{}, err
	} else if ok {
		return cached, nil
	}
	job, err := s.jobs.GetByID(ctx, input.JobID)
	if err != nil {
		return domain.Job{}, err
	}
	if actor.SubjectID != job.Client {
		return domain.Job{}, domain.ErrNotAuthorized
	}
	if job.State != domain.JobStateCreated {
		return domain.Job{}, domain.ErrInvalidState
	}
	if input.Amount != job.TotalAmount {
		return domain.Job{}, domain.ErrInsufficientFunds
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Job{}, err
	}
	now := s.nowFn()
	job.State = domain.JobStateFunded
	job.FundedAt = &now
	job.UpdatedAt = now
	if err := s.jobs.Update(ctx, job); err != nil {
		return domain.Job{}, err
	}
	if err := s.enqueueJobFunded(ctx, job.JobID, input.Amount, actor.RequestID, now); err != nil {
		return domain.Job{}, err
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, job)
	return job, nil
}

// CancelJob abandons an engagement that was never funded. Once value is in
// custody the only exits are through the milestones.
func (s *Service) CancelJob(ctx context.Context, actor Actor, jobID uint64) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transferring {
		return domain.Job{}, domain.ErrReentrancy
	}
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Job{}, domain.ErrNotAuthorized
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if actor.SubjectID != job.Client {
		return domain.Job{}, domain.ErrNotAuthorized
	}
	if job.State != domain.JobStateCreated {
		return domain.Job{}, domain.ErrInvalidState
	}
	now := s.nowFn()
	job.State = domain.JobStateCancelled
	job.UpdatedAt = now
	if err := s.jobs.Update(ctx, job); err != nil {
		return domain.Job{}, err
	}
	if err := s.enqueueJobCancelled(ctx, job.JobID, actor.RequestID, now); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

// SubmitMilestone marks the current milestone as delivered and awaiting the
// client's review.
func (s *Service) SubmitMilestone(ctx context.Context, actor Actor, jobID uint64) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transferring {
		return domain.Job{}, domain.ErrReentrancy
	}
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Job{}, domain.ErrNotAuthorized
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if actor.SubjectID != job.Freelancer {
		return domain.Job{}, domain.ErrNotAuthorized
	}
	if job.State != domain.JobStateFunded && job.State != domain.JobStateInProgress {
		return domain.Job{}, domain.ErrInvalidState
	}
	if job.CurrentMilestone >= len(job.Milestones) {
		return domain.Job{}, domain.ErrInvalidState
	}
	if job.Milestones[job.CurrentMilestone].State != domain.MilestoneStateLocked {
		return domain.Job{}, domain.ErrInvalidState
	}
	now := s.nowFn()
	index := job.CurrentMilestone
	job.Milestones[index].State = domain.MilestoneStateSubmitted
	job.State = domain.JobStateInProgress
	job.UpdatedAt = now
	if err := s.jobs.Update(ctx, job); err != nil {
		return domain.Job{}, err
	}
	if err := s.enqueueMilestoneSubmitted(ctx, job.JobID, index, actor.RequestID, now); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

// AcceptMilestone releases the current milestone: the freelancer's withdrawal
// account is credited with the milestone amount and the job advances. Funds
// move only later, when the freelancer withdraws.
func (s *Service) AcceptMilestone(ctx context.Context, actor Actor, jobID uint64) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transferring {
		return domain.Job{}, domain.ErrReentrancy
	}
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Job{}, domain.ErrNotAuthorized
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if actor.SubjectID != job.Client {
		return domain.Job{}, domain.ErrNotAuthorized
	}
	if job.CurrentMilestone >= len(job.Milestones) {
		return domain.Job{}, domain.ErrInvalidState
	}
	if job.Milestones[job.CurrentMilestone].State != domain.MilestoneStateSubmitted {
		return domain.Job{}, domain.ErrInvalidState
	}
	now := s.nowFn()
	index := job.CurrentMilestone
	amount := job.Milestones[index].Amount
	job.Milestones[index].State = domain.MilestoneStateAccepted
	advanceMilestone(&job)
	job.UpdatedAt = now
	if err := s.jobs.Update(ctx, job); err != nil {
		return domain.Job{}, err
	}
	if err := s.withdrawals.Credit(ctx, job.Freelancer, amount, now); err != nil {
		return domain.Job{}, err
	}
	if err := s.enqueueMilestoneAccepted(ctx, job.JobID, index, amount, actor.RequestID, now); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

// RaiseDispute escalates the current submitted milestone to the arbiter.
// State guards run before authorization here: both parties may call this, so
// the failure ordering must not depend on which one did.
func (s *Service) RaiseDispute(ctx context.Context, actor Actor, input RaiseDisputeInput) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transferring {
		return domain.Job{}, domain.ErrReentrancy
	}
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Job{}, domain.ErrNotAuthorized
	}
	input.Reason = strings.TrimSpace(input.Reason)
	if input.Reason == "" {
		return domain.Job{}, domain.ErrInvalidInput
	}
	job, err := s.jobs.GetByID(ctx, input.JobID)
	if err != nil {
		return domain.Job{}, err
	}
	if job.CurrentMilestone >= len(job.Milestones) {
		return domain.Job{}, domain.ErrInvalidState
	}
	if job.Milestones[job.CurrentMilestone].State != domain.MilestoneStateSubmitted {
		return domain.Job{}, domain.ErrInvalidState
	}
	if !job.HasArbiter() {
		return domain.Job{}, domain.ErrInvalidState
	}
	if actor.SubjectID != job.Client && actor.SubjectID != job.Freelancer {
		return domain.Job{}, domain.ErrNotAuthorized
	}
	now := s.nowFn()
	index := job.CurrentMilestone
	job.Milestones[index].State = domain.MilestoneStateDisputed
	job.UpdatedAt = now
	if err := s.jobs.Update(ctx, job); err != nil {
		return domain.Job{}, err
	}
	if err := s.enqueueDisputeRaised(ctx, job.JobID, index, actor.SubjectID, input.Reason, actor.RequestID, now); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

// ResolveDispute adjudicates the current disputed milestone. An unknown
// outcome is rejected with no ledger credit and no state change, so the
// arbiter can retry.
func (s *Service) ResolveDispute(ctx context.Context, actor Actor, input ResolveDisputeInput) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transferring {
		return domain.Job{}, domain.ErrReentrancy
	}
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Job{}, domain.ErrNotAuthorized
	}
	job, err := s.jobs.GetByID(ctx, input.JobID)
	if err != nil {
		return domain.Job{}, err
	}
	if !job.HasArbiter() || actor.SubjectID != job.Arbiter {
		return domain.Job{}, domain.ErrNotAuthorized
	}
	if job.CurrentMilestone >= len(job.Milestones) {
		return domain.Job{}, domain.ErrInvalidState
	}
	if job.Milestones[job.CurrentMilestone].State != domain.MilestoneStateDisputed {
		return domain.Job{}, domain.ErrInvalidState
	}
	outcome, err := domain.ParseResolutionOutcome(input.Outcome)
	if err != nil {
		return domain.Job{}, err
	}
	now := s.nowFn()
	index := job.CurrentMilestone
	amount := job.Milestones[index].Amount
	var freelancerShare, clientShare int64
	switch outcome {
	case domain.ResolutionRefundClient:
		clientShare = amount
		job.Milestones[index].State = domain.MilestoneStateRefunded
	case domain.ResolutionPayFreelancer:
		freelancerShare = amount
		job.Milestones[index].State = domain.MilestoneStateReleased
	case domain.ResolutionSplit:
		freelancerShare, clientShare = domain.SplitAmounts(amount)
		job.Milestones[index].State = domain.MilestoneStateReleased
	}
	advanceMilestone(&job)
	job.UpdatedAt = now
	if err := s.jobs.Update(ctx, job); err != nil {
		return domain.Job{}, err
	}
	if freelancerShare > 0 {
		if err := s.withdrawals.Credit(ctx, job.Freelancer, freelancerShare, now); err != nil {
			return domain.Job{}, err
		}
	}
	if clientShare > 0 {
		if err := s.withdrawals.Credit(ctx, job.Client, clientShare, now); err != nil {
			return domain.Job{}, err
		}
	}
	if err := s.enqueueDisputeResolved(ctx, job.JobID, index, string(outcome), freelancerShare, clientShare, actor.RequestID, now); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

// GetJob returns the job record. Read-only and open to any caller; records are
// retained for audit after completion or cancellation.
func (s *Service) GetJob(ctx context.Context, jobID uint64) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs.GetByID(ctx, jobID)
}

func (s *Service) GetMilestone(ctx context.Context, jobID uint64, index int) (domain.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return domain.Milestone{}, err
	}
	if index < 0 || index >= len(job.Milestones) {
		return domain.Milestone{}, domain.ErrInvalidMilestone
	}
	return job.Milestones[index], nil
}

func (s *Service) GetBalance(ctx context.Context, identity string) (domain.WithdrawalAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return domain.WithdrawalAccount{}, domain.ErrInvalidInput
	}
	return s.withdrawals.Get(ctx, identity)
}

func advanceMilestone(job *domain.Job) {
	job.CurrentMilestone++
	if job.CurrentMilestone >= len(job.Milestones) {
		job.State = domain.JobStateCompleted
	}
}

func (s *Service) getIdempotentJob(ctx context.Context, key, requestHash string) (domain.Job, bool, error) {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return domain.Job{}, false, nil
	}
	rec, err := s.idempotency.Get(ctx, key, s.nowFn())
	if err != nil || rec == nil {
		return domain.Job{}, false, err
	}
	if rec.RequestHash != requestHash {
		return domain.Job{}, false, domain.ErrIdempotencyConflict
	}
	if len(rec.ResponseBody) == 0 {
		return domain.Job{}, false, nil
	}
	var out domain.Job
	if err := json.Unmarshal(rec.ResponseBody, &out); err != nil {
		return domain.Job{}, false, nil
	}
	return out, true, nil
}

func (s *Service) reserveIdempotency(ctx context.Context, key, requestHash string) error {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	err := s.idempotency.Reserve(ctx, key, requestHash, s.nowFn().Add(s.cfg.IdempotencyTTL))
	if err == domain.ErrConflict {
		return domain.ErrIdempotencyConflict
	}
	return err
}

func (s *Service) completeIdempotencyJSON(ctx context.Context, key string, code int, payload any) error {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	b, _ := json.Marshal(payload)
	return s.idempotency.Complete(ctx, key, code, b, s.nowFn())
}

func hashJSON(v any) string {
	b, _ := json.Marshal(v)
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
