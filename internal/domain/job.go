package domain

import (
	"strings"
	"time"
)

type JobState string

const (
	JobStateCreated    JobState = "created"
	JobStateFunded     JobState = "funded"
	JobStateInProgress JobState = "in_progress"
	JobStateCompleted  JobState = "completed"
	JobStateCancelled  JobState = "cancelled"
)

type MilestoneState string

const (
	MilestoneStateLocked    MilestoneState = "locked"
	MilestoneStateSubmitted MilestoneState = "submitted"
	MilestoneStateAccepted  MilestoneState = "accepted"
	MilestoneStateDisputed  MilestoneState = "disputed"
	MilestoneStateReleased  MilestoneState = "released"
	MilestoneStateRefunded  MilestoneState = "refunded"
)

// Milestone amounts are int64 minor units. The milestone list is fixed at job
// creation: its length, order and amounts never change afterwards.
type Milestone struct {
	Amount int64          `json:"amount"`
	State  MilestoneState `json:"state"`
}

type Job struct {
	JobID            uint64      `json:"job_id"`
	Client           string      `json:"client"`
	Freelancer       string      `json:"freelancer"`
	Arbiter          string      `json:"arbiter,omitempty"`
	TotalAmount      int64       `json:"total_amount"`
	Milestones       []Milestone `json:"milestones"`
	CurrentMilestone int         `json:"current_milestone"`
	State            JobState    `json:"state"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	FundedAt         *time.Time  `json:"funded_at,omitempty"`
}

// HasArbiter reports whether disputes can be escalated on this job. An unset
// arbiter means the parties resolve disagreements out of band.
func (j Job) HasArbiter() bool { return j.Arbiter != "" }

type WithdrawalAccount struct {
	Identity         string    `json:"identity"`
	Owed             int64     `json:"owed"`
	LifetimeCredited int64     `json:"lifetime_credited"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func ValidateCreateJobInput(client, freelancer string, amounts []int64) error {
	if strings.TrimSpace(client) == "" || strings.TrimSpace(freelancer) == "" {
		return ErrInvalidInput
	}
	if len(amounts) == 0 {
		return ErrInvalidMilestone
	}
	for _, a := range amounts {
		if a <= 0 {
			return ErrInvalidMilestone
		}
	}
	return nil
}

func NewMilestones(amounts []int64) []Milestone {
	out := make([]Milestone, len(amounts))
	for i, a := range amounts {
		out[i] = Milestone{Amount: a, State: MilestoneStateLocked}
	}
	return out
}

func TotalAmount(amounts []int64) int64 {
	var total int64
	for _, a := range amounts {
		total += a
	}
	return total
}
