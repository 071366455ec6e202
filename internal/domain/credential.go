package domain

import "time"

// Credential is the opaque bearer token issued by the auth endpoint.
type Credential string

// String hides the raw token so it never lands in logs by accident.
func (c Credential) String() string {
	if len(c) <= 4 {
		return "****"
	}
	return "****" + string(c[len(c)-4:])
}

// AuthExpired is emitted when the remote service rejects the credential with 401.
type AuthExpired struct {
	LoginPath string
	Method    string
	Path      string
	At        time.Time
}
