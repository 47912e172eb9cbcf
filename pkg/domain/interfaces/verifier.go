package interfaces

import "context"

// MembershipVerifier classifies an email address against the external
// membership directory.
type MembershipVerifier interface {
	// Lookup reports whether the email belongs to a member in good
	// standing. Errors are tagged with the validation / rate-limit /
	// upstream taxonomy.
	Lookup(ctx context.Context, email string) (bool, error)
}
