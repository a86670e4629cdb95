// Package emailverification issues and consumes single-use email
// verification tokens.
//
// Tokens are signed by tokencodec with purpose email_verification and carry
// the identity email. The pending token, its expiry and the time it was sent
// are stored on the identity record; issuing a new token overwrites them, so
// older links become superseded.
//
// # Basic Usage
//
//	service := emailverification.NewEmailVerificationService(
//		repo, codec, "https://academy.example.com/api",
//		emailverification.WithNotificationManager(nm),
//		emailverification.WithTokenExpiry(24*time.Hour),
//		emailverification.WithResendCooldown(5*time.Minute),
//	)
//
//	res, err := service.Issue(ctx, ident)
//	...
//	out, err := service.Consume(ctx, token)
//	if out.AlreadyVerified { ... }
//
// Consume decides, in order: unknown identity, already verified (success),
// token differs from the stored one (expired or superseded), stored token
// expired, and finally marks the identity verified.
package emailverification
