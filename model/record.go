// model/record.go
package model

// StatusUsed is the status cell value of a claimed membership record.
// An unused record carries an empty status cell.
const StatusUsed = "used"

// MembershipRecord is one row of the membership table. Row is the absolute
// sheet row number and the stable key for updates. Cells holds the raw row
// exactly as read; columns outside the email/status/holder roles are opaque
// pass-through data and must survive a rewrite.
type MembershipRecord struct {
	Row      int
	Email    string
	Status   string
	HolderID string
	Cells    []string
}

// Used reports whether the record has been claimed.
func (r *MembershipRecord) Used() bool {
	return r.Status == StatusUsed
}

// CancellationEntry is one row of the cancellation table: an external
// request to revoke access for a previously verified email. The whole row
// is cleared once the entry has been processed.
type CancellationEntry struct {
	Row   int
	Email string
	Cells []string
}
