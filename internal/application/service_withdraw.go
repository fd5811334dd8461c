package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/gigforge/escrow-engine/internal/domain"
)

// Withdraw drains the caller's owed balance through the settlement rail.
// The balance is zeroed strictly before the external transfer is attempted:
// a reentrant or concurrent second withdrawal during the in-flight transfer
// observes zero (or the transferring flag) and fails cleanly. A failed
// transfer restores the balance and the operation fails as a whole.
//
// Withdrawals deliberately skip the idempotency replay cache: zeroing already
// makes retries safe, and a cached success must never stand in for an actual
// settlement.
func (s *Service) Withdraw(ctx context.Context, actor Actor) (int64, error) {
	s.mu.Lock()
	if s.transferring {
		s.mu.Unlock()
		return 0, domain.ErrReentrancy
	}
	subject := strings.TrimSpace(actor.SubjectID)
	if subject == "" {
		s.mu.Unlock()
		return 0, domain.ErrNotAuthorized
	}
	now := s.nowFn()
	amount, err := s.withdrawals.Zero(ctx, subject, now)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if amount == 0 {
		s.mu.Unlock()
		return 0, domain.ErrNothingOwed
	}
	s.transferring = true
	s.mu.Unlock()

	transferErr := s.settlement.Transfer(ctx, subject, amount)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transferring = false
	if transferErr != nil {
		if restoreErr := s.withdrawals.Restore(ctx, subject, amount, s.nowFn()); restoreErr != nil {
			return 0, restoreErr
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrTransferFailed, transferErr)
	}
	if err := s.enqueueWithdrawalSettled(ctx, subject, amount, actor.RequestID, s.nowFn()); err != nil {
		return 0, err
	}
	return amount, nil
}
