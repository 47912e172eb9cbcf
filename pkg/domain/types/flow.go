package types

import "github.com/m-mizutani/goerr/v2"

// FlowState is the per-user onboarding state
type FlowState string

const (
	FlowStart            FlowState = "start"
	FlowVerifying        FlowState = "verifying"
	FlowMemberSelect     FlowState = "member_attr_select"
	FlowAffiliateSelect  FlowState = "affiliate_attr_select"
	FlowRulesPending     FlowState = "rules_pending"
	FlowAwaitingApproval FlowState = "awaiting_admin_approval"
	FlowDone             FlowState = "done"
	FlowDenied           FlowState = "denied"
)

// AllFlowStates returns all valid flow states
func AllFlowStates() []FlowState {
	return []FlowState{
		FlowStart,
		FlowVerifying,
		FlowMemberSelect,
		FlowAffiliateSelect,
		FlowRulesPending,
		FlowAwaitingApproval,
		FlowDone,
		FlowDenied,
	}
}

// IsValid checks if the flow state is valid
func (s FlowState) IsValid() bool {
	switch s {
	case FlowStart,
		FlowVerifying,
		FlowMemberSelect,
		FlowAffiliateSelect,
		FlowRulesPending,
		FlowAwaitingApproval,
		FlowDone,
		FlowDenied:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition may leave the state
func (s FlowState) IsTerminal() bool {
	return s == FlowDone || s == FlowDenied
}

// Normalize returns the state, treating empty as FlowStart for users created
// before their first interaction
func (s FlowState) Normalize() FlowState {
	if s == "" {
		return FlowStart
	}
	return s
}

// String returns the string representation of the flow state
func (s FlowState) String() string {
	return string(s)
}

// CanTransition reports whether moving from s to next is a legal step of the
// onboarding flow
func (s FlowState) CanTransition(next FlowState) bool {
	if s.IsTerminal() {
		return false
	}

	allowed, ok := flowTransitions[s.Normalize()]
	if !ok {
		return false
	}
	for _, state := range allowed {
		if state == next {
			return true
		}
	}
	return false
}

var flowTransitions = map[FlowState][]FlowState{
	FlowStart:            {FlowVerifying, FlowAffiliateSelect},
	FlowVerifying:        {FlowMemberSelect, FlowAffiliateSelect},
	FlowMemberSelect:     {FlowRulesPending},
	FlowAffiliateSelect:  {FlowRulesPending},
	FlowRulesPending:     {FlowDone, FlowAwaitingApproval},
	FlowAwaitingApproval: {FlowDone, FlowDenied},
}

// ParseFlowState parses a string into a FlowState
func ParseFlowState(s string) (FlowState, error) {
	state := FlowState(s)
	if !state.IsValid() {
		return "", goerr.New("invalid flow state",
			goerr.T(ErrTagValidation), goerr.V("state", s))
	}
	return state, nil
}
