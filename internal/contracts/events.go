package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type JobCreatedPayload struct {
	JobID       uint64 `json:"job_id"`
	Client      string `json:"client"`
	Freelancer  string `json:"freelancer"`
	Arbiter     string `json:"arbiter,omitempty"`
	TotalAmount int64  `json:"total_amount"`
	CreatedAt   string `json:"created_at"`
}

type JobFundedPayload struct {
	JobID    uint64 `json:"job_id"`
	Amount   int64  `json:"amount"`
	FundedAt string `json:"funded_at"`
}

type JobCancelledPayload struct {
	JobID       uint64 `json:"job_id"`
	CancelledAt string `json:"cancelled_at"`
}

type MilestoneSubmittedPayload struct {
	JobID       uint64 `json:"job_id"`
	Index       int    `json:"index"`
	SubmittedAt string `json:"submitted_at"`
}

type MilestoneAcceptedPayload struct {
	JobID      uint64 `json:"job_id"`
	Index      int    `json:"index"`
	Amount     int64  `json:"amount"`
	AcceptedAt string `json:"accepted_at"`
}

type DisputeRaisedPayload struct {
	JobID    uint64 `json:"job_id"`
	Index    int    `json:"index"`
	Raiser   string `json:"raiser"`
	Reason   string `json:"reason"`
	RaisedAt string `json:"raised_at"`
}

type DisputeResolvedPayload struct {
	JobID            uint64 `json:"job_id"`
	Index            int    `json:"index"`
	Outcome          string `json:"outcome"`
	FreelancerAmount int64  `json:"freelancer_amount"`
	ClientAmount     int64  `json:"client_amount"`
	ResolvedAt       string `json:"resolved_at"`
}

type WithdrawalSettledPayload struct {
	Identity  string `json:"identity"`
	Amount    int64  `json:"amount"`
	SettledAt string `json:"settled_at"`
}

type DLQRecord struct {
	OriginalEvent EventEnvelope `json:"original_event"`
	ErrorSummary  string        `json:"error_summary"`
	RetryCount    int           `json:"retry_count"`
	FirstSeenAt   time.Time     `json:"first_seen_at"`
	LastErrorAt   time.Time     `json:"last_error_at"`
	SourceTopic   string        `json:"source_topic,omitempty"`
	DLQTopic      string        `json:"dlq_topic,omitempty"`
	TraceID       string        `json:"trace_id,omitempty"`
}
