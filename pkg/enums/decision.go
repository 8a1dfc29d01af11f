package enums

import (
	"fmt"
	"strings"
)

// Decision represents the verdict an administrator can take on a pending
// order or return request.
type Decision string

const (
	// DecisionApprove applies the approved state.
	DecisionApprove Decision = "approve"
	// DecisionReject applies the rejected state.
	DecisionReject Decision = "reject"
)

// IsValid reports whether the value is a known Decision.
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// ParseDecision converts raw input into a Decision.
func ParseDecision(value string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(value))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	default:
		return "", fmt.Errorf("invalid decision %q", value)
	}
}
