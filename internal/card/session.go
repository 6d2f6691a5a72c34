package card

import "github.com/gnuk-go/cardengine/internal/catalog"

// Session is the minimal authentication-state collaborator the catalog
// calls ac_check_status against: the core asks only whether PW3 has been
// verified for the current command sequence. A richer VERIFY/PSO command
// dispatcher lives outside this package's scope and flips AdminOK.
type Session struct {
	AdminOK bool

	// PSOCDSCleared tracks the sign-with-PW1 "verified until next PSO:CDS"
	// flag, reset after a successful key seal.
	PSOCDSCleared bool
}

// CheckStatus implements catalog.AccessChecker.
func (s *Session) CheckStatus(level catalog.ACLevel) bool {
	switch level {
	case catalog.ACAlways:
		return true
	case catalog.ACNever:
		return false
	case catalog.ACAdminAuthorized:
		return s.AdminOK
	default:
		return false
	}
}

// ResetPSOCDS clears the signing access-control flag, called after a key
// replacement invalidates any outstanding PW1 sign authorization.
func (s *Session) ResetPSOCDS() {
	s.PSOCDSCleared = true
}
