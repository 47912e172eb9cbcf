package types

import "fmt"

// Membership is the classification produced by the verification step
type Membership string

const (
	MembershipUnknown   Membership = "unknown"
	MembershipMember    Membership = "member"
	MembershipAffiliate Membership = "affiliate"
)

// AllMemberships returns all valid membership classifications
func AllMemberships() []Membership {
	return []Membership{
		MembershipUnknown,
		MembershipMember,
		MembershipAffiliate,
	}
}

// IsValid checks if the membership classification is valid
func (m Membership) IsValid() bool {
	switch m {
	case MembershipUnknown,
		MembershipMember,
		MembershipAffiliate:
		return true
	default:
		return false
	}
}

// String returns the string representation of the membership
func (m Membership) String() string {
	return string(m)
}

// ParseMembership parses a string into a Membership
func ParseMembership(s string) (Membership, error) {
	m := Membership(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid membership: %s", s)
	}
	return m, nil
}
