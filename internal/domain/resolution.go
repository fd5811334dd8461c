package domain

import "strings"

type ResolutionOutcome string

const (
	ResolutionRefundClient  ResolutionOutcome = "refund_client"
	ResolutionPayFreelancer ResolutionOutcome = "pay_freelancer"
	ResolutionSplit         ResolutionOutcome = "split"
)

func ParseResolutionOutcome(raw string) (ResolutionOutcome, error) {
	switch ResolutionOutcome(strings.TrimSpace(strings.ToLower(raw))) {
	case ResolutionRefundClient:
		return ResolutionRefundClient, nil
	case ResolutionPayFreelancer:
		return ResolutionPayFreelancer, nil
	case ResolutionSplit:
		return ResolutionSplit, nil
	default:
		return "", ErrInvalidInput
	}
}

// SplitAmounts divides a disputed milestone between the parties. The odd unit
// goes to the client; freelancerShare+clientShare == amount for every amount >= 1.
func SplitAmounts(amount int64) (freelancerShare, clientShare int64) {
	freelancerShare = amount / 2
	clientShare = amount - freelancerShare
	return freelancerShare, clientShare
}
