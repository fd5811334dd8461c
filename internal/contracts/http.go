package contracts

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type CreateJobRequest struct {
	FreelancerID     string  `json:"freelancer_id"`
	ArbiterID        string  `json:"arbiter_id,omitempty"`
	MilestoneAmounts []int64 `json:"milestone_amounts"`
}

type FundJobRequest struct {
	Amount int64 `json:"amount"`
}

type RaiseDisputeRequest struct {
	Reason string `json:"reason"`
}

type ResolveDisputeRequest struct {
	Outcome string `json:"outcome"`
}

type MilestoneResponse struct {
	Index  int    `json:"index"`
	Amount int64  `json:"amount"`
	State  string `json:"state"`
}

type JobResponse struct {
	JobID            uint64              `json:"job_id"`
	Client           string              `json:"client"`
	Freelancer       string              `json:"freelancer"`
	Arbiter          string              `json:"arbiter,omitempty"`
	TotalAmount      int64               `json:"total_amount"`
	State            string              `json:"state"`
	CurrentMilestone int                 `json:"current_milestone"`
	Milestones       []MilestoneResponse `json:"milestones"`
}

type BalanceResponse struct {
	Identity         string `json:"identity"`
	Owed             int64  `json:"owed"`
	LifetimeCredited int64  `json:"lifetime_credited"`
}

type WithdrawalResponse struct {
	Identity string `json:"identity"`
	Amount   int64  `json:"amount"`
}
