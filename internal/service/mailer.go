package service

import "context"

// Mailer delivers the single purpose account emails.  Implementations mint
// the embedded token themselves.
type Mailer interface {
	SendAccountVerification(ctx context.Context, userID uint64, email string) error
	SendPasswordSetup(ctx context.Context, userID uint64, email string) error
}
