// model/sync.go
package model

// VerificationOutcome is the terminal state of one verification call.
type VerificationOutcome string

const (
	OutcomeVerified       VerificationOutcome = "verified"
	OutcomeNoRecord       VerificationOutcome = "no_record"
	OutcomeAlreadyClaimed VerificationOutcome = "already_claimed"
)

// RoleFailure reports one privilege of a multi-privilege request that could
// not be applied, and why.
type RoleFailure struct {
	Role string
	Err  error
}

// SyncResult is the outcome of a grant or revoke request. Applied lists
// privileges actually changed, Skipped lists privileges that were already in
// the requested state (idempotent no-ops). A request is never partially
// applied silently: every privilege the caller asked for lands in exactly
// one of the three lists.
type SyncResult struct {
	Applied  []string
	Skipped  []string
	Failures []RoleFailure
}

// Ok reports whether every requested privilege was applied or already held.
func (r SyncResult) Ok() bool {
	return len(r.Failures) == 0
}

// FailedRoles returns the names of the privileges that could not be applied.
func (r SyncResult) FailedRoles() []string {
	names := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		names = append(names, f.Role)
	}
	return names
}
