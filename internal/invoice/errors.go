package invoice

import "errors"

var (
	ErrProviderUnavailable   = errors.New("no invoice provider configured")
	ErrProviderMisconfigured = errors.New("invoice provider misconfigured")
	ErrProvider              = errors.New("invoice provider error")
	ErrInvalidInvoiceRequest = errors.New("invalid invoice request")
	ErrUnknownStatus         = errors.New("unknown invoice status")
)
