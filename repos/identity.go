package repos

// IdentityKind is the closed set of account types the platform issues tokens for.
type IdentityKind string

const (
	IdentityCandidate IdentityKind = "candidate"
	IdentityEmployer  IdentityKind = "employer"
	IdentityAdmin     IdentityKind = "admin"
)

func (k IdentityKind) Valid() bool {
	switch k {
	case IdentityCandidate, IdentityEmployer, IdentityAdmin:
		return true
	}
	return false
}

// VerificationStatus is carried as an opaque claim for employer identities.
// This subsystem never transitions it; the business-profile service owns that.
type VerificationStatus string

const (
	VerificationNone     VerificationStatus = ""
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// Claims are the identity attributes embedded in issued tokens.
type Claims struct {
	Kind         IdentityKind       `json:"kind"`
	Verification VerificationStatus `json:"verification,omitempty"`
}
