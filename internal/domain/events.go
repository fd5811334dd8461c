package domain

const (
	CanonicalEventClassDomain        = "domain"
	CanonicalEventClassAnalyticsOnly = "analytics_only"
	CanonicalEventClassOps           = "ops"
)

const (
	EventJobCreated         = "escrow.job_created"
	EventJobFunded          = "escrow.job_funded"
	EventJobCancelled       = "escrow.job_cancelled"
	EventMilestoneSubmitted = "escrow.milestone_submitted"
	EventMilestoneAccepted  = "escrow.milestone_accepted"
	EventDisputeRaised      = "escrow.dispute_raised"
	EventDisputeResolved    = "escrow.dispute_resolved"
	EventWithdrawalSettled  = "escrow.withdrawal_settled"
)

func IsCanonicalEmittedEvent(eventType string) bool {
	switch eventType {
	case EventJobCreated, EventJobFunded, EventJobCancelled,
		EventMilestoneSubmitted, EventMilestoneAccepted,
		EventDisputeRaised, EventDisputeResolved, EventWithdrawalSettled:
		return true
	default:
		return false
	}
}

func CanonicalEventClass(eventType string) string {
	switch eventType {
	case EventMilestoneAccepted, EventDisputeResolved, EventWithdrawalSettled:
		return CanonicalEventClassDomain
	case EventJobCreated, EventJobFunded, EventJobCancelled,
		EventMilestoneSubmitted, EventDisputeRaised:
		return CanonicalEventClassAnalyticsOnly
	default:
		return ""
	}
}

func CanonicalPartitionKeyPath(eventType string) string {
	switch eventType {
	case EventWithdrawalSettled:
		return "data.identity"
	default:
		if IsCanonicalEmittedEvent(eventType) {
			return "data.job_id"
		}
		return ""
	}
}
