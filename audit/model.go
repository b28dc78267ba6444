// audit/model.go
package audit

import "time"

// Actions recorded on the membership audit trail.
const (
	ActionVerified           = "verified"
	ActionRejected           = "rejected"
	ActionNoRecord           = "no_record"
	ActionGrantFailed        = "grant_failed"
	ActionStoreFailed        = "store_failed"
	ActionRevoked            = "revoked"
	ActionMemberUnresolvable = "member_unresolvable"
	ActionCycleFailed        = "cycle_failed"
	ActionAttemptsReset      = "attempts_reset"
)

type MembershipEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Identity  string    `json:"identity,omitempty"`
	Email     string    `json:"email,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}
