package domain_test

import (
	"errors"
	"testing"

	"github.com/gigforge/escrow-engine/internal/domain"
)

func TestValidateCreateJobInput(t *testing.T) {
	cases := []struct {
		name       string
		client     string
		freelancer string
		amounts    []int64
		want       error
	}{
		{"valid", "client-1", "dev-1", []int64{100, 200}, nil},
		{"blank client", " ", "dev-1", []int64{100}, domain.ErrInvalidInput},
		{"blank freelancer", "client-1", "", []int64{100}, domain.ErrInvalidInput},
		{"no milestones", "client-1", "dev-1", nil, domain.ErrInvalidMilestone},
		{"zero amount", "client-1", "dev-1", []int64{100, 0}, domain.ErrInvalidMilestone},
		{"negative amount", "client-1", "dev-1", []int64{-5}, domain.ErrInvalidMilestone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := domain.ValidateCreateJobInput(tc.client, tc.freelancer, tc.amounts)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNewMilestonesStartLocked(t *testing.T) {
	ms := domain.NewMilestones([]int64{100, 200, 50})
	if len(ms) != 3 {
		t.Fatalf("expected 3 milestones, got %d", len(ms))
	}
	for i, m := range ms {
		if m.State != domain.MilestoneStateLocked {
			t.Fatalf("milestone %d state = %s, want locked", i, m.State)
		}
	}
	if ms[0].Amount != 100 || ms[1].Amount != 200 || ms[2].Amount != 50 {
		t.Fatalf("amounts not preserved: %+v", ms)
	}
}

func TestTotalAmount(t *testing.T) {
	if got := domain.TotalAmount([]int64{100, 200}); got != 300 {
		t.Fatalf("total = %d, want 300", got)
	}
	if got := domain.TotalAmount(nil); got != 0 {
		t.Fatalf("empty total = %d, want 0", got)
	}
}

func TestHasArbiter(t *testing.T) {
	if (domain.Job{}).HasArbiter() {
		t.Fatal("job without arbiter reported one")
	}
	if !(domain.Job{Arbiter: "arb-1"}).HasArbiter() {
		t.Fatal("job with arbiter reported none")
	}
}
