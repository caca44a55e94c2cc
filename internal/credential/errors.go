package credential

import "errors"

var (
	ErrMissingSigningKey = errors.New("caveat signing key not configured")
	ErrMissingInvoiceID  = errors.New("missing invoice id")

	ErrMalformedCredential = errors.New("malformed credential")
	ErrExpired             = errors.New("credential expired")
	ErrContextMismatch     = errors.New("credential context mismatch")
	ErrInvalidSignature    = errors.New("invalid credential signature")
)

// Reason labels a verification outcome. Used for metrics and logs only,
// never for client responses.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrContextMismatch):
		return "context_mismatch"
	case errors.Is(err, ErrMalformedCredential):
		return "malformed"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	default:
		return "error"
	}
}
