package domain_test

import (
	"errors"
	"testing"

	"github.com/gigforge/escrow-engine/internal/domain"
)

func TestSplitAmounts(t *testing.T) {
	cases := []struct {
		amount     int64
		freelancer int64
		client     int64
	}{
		{1, 0, 1},
		{2, 1, 1},
		{100, 50, 50},
		{101, 50, 51},
		{999, 499, 500},
	}
	for _, tc := range cases {
		f, c := domain.SplitAmounts(tc.amount)
		if f != tc.freelancer || c != tc.client {
			t.Fatalf("split(%d) = (%d, %d), want (%d, %d)", tc.amount, f, c, tc.freelancer, tc.client)
		}
		if f+c != tc.amount {
			t.Fatalf("split(%d) lost value: %d + %d", tc.amount, f, c)
		}
	}
}

func TestParseResolutionOutcome(t *testing.T) {
	for raw, want := range map[string]domain.ResolutionOutcome{
		"refund_client":  domain.ResolutionRefundClient,
		"pay_freelancer": domain.ResolutionPayFreelancer,
		"split":          domain.ResolutionSplit,
		"  SPLIT  ":      domain.ResolutionSplit,
	} {
		got, err := domain.ParseResolutionOutcome(raw)
		if err != nil || got != want {
			t.Fatalf("parse(%q) = (%q, %v), want %q", raw, got, err, want)
		}
	}
	if _, err := domain.ParseResolutionOutcome("burn_it"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("unknown outcome err = %v, want ErrInvalidInput", err)
	}
	if _, err := domain.ParseResolutionOutcome(""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty outcome err = %v, want ErrInvalidInput", err)
	}
}

func TestCanonicalEventClassification(t *testing.T) {
	for _, ev := range []string{domain.EventMilestoneAccepted, domain.EventDisputeResolved, domain.EventWithdrawalSettled} {
		if got := domain.CanonicalEventClass(ev); got != domain.CanonicalEventClassDomain {
			t.Fatalf("class(%s) = %s, want domain", ev, got)
		}
	}
	for _, ev := range []string{domain.EventJobCreated, domain.EventJobFunded, domain.EventJobCancelled, domain.EventMilestoneSubmitted, domain.EventDisputeRaised} {
		if got := domain.CanonicalEventClass(ev); got != domain.CanonicalEventClassAnalyticsOnly {
			t.Fatalf("class(%s) = %s, want analytics_only", ev, got)
		}
	}
	if domain.IsCanonicalEmittedEvent("escrow.unknown") {
		t.Fatal("unknown event reported canonical")
	}
	if got := domain.CanonicalPartitionKeyPath(domain.EventWithdrawalSettled); got != "data.identity" {
		t.Fatalf("withdrawal partition key path = %s", got)
	}
	if got := domain.CanonicalPartitionKeyPath(domain.EventJobFunded); got != "data.job_id" {
		t.Fatalf("job partition key path = %s", got)
	}
}
