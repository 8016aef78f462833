package domain

import "time"

// Identity is a registered board identity. Onboarding and admission policy
// live outside the core; the core stores the resulting record and consumes
// the admission decision on every mutating operation.
type Identity struct {
	// Fingerprint is the public-key fingerprint, unique per identity.
	Fingerprint string

	// DisplayName is the unique human-readable name used in @mentions.
	DisplayName string

	// Admitted is the admission decision handed to the core.
	Admitted bool

	// CreatedAt is when the identity was registered.
	CreatedAt time.Time
}
