package types

// AuditType categorizes audit/security events
type AuditType string

const (
	AuditVerificationOK     AuditType = "verification_success"
	AuditVerificationFailed AuditType = "verification_failed"
	AuditRoleChange         AuditType = "role_change"
	AuditFlowTransition     AuditType = "flow_transition"
	AuditAdminDecision      AuditType = "admin_decision"
	AuditThrottled          AuditType = "throttled"
)

// IsValid checks if the audit type is valid
func (t AuditType) IsValid() bool {
	switch t {
	case AuditVerificationOK,
		AuditVerificationFailed,
		AuditRoleChange,
		AuditFlowTransition,
		AuditAdminDecision,
		AuditThrottled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the audit type
func (t AuditType) String() string {
	return string(t)
}

// Suspicious reports whether events of this type count toward the per-user
// suspicion threshold
func (t AuditType) Suspicious() bool {
	return t == AuditVerificationFailed
}
