package utils

import "errors"

// Common application errors used across services.
var (
	ErrInvalidEmail       = errors.New("INVALID_EMAIL")
	ErrLoginRequired      = errors.New("LOGIN_REQUIRED")
	ErrNoESIM             = errors.New("NO_ESIM")
	ErrProviderMismatch   = errors.New("PROVIDER_MISMATCH")
	ErrPackageNotFound    = errors.New("PACKAGE_NOT_FOUND")
	ErrCheckoutNotFound   = errors.New("CHECKOUT_NOT_FOUND")
	ErrCheckoutFinished   = errors.New("CHECKOUT_FINISHED")
	ErrOrderNotFound      = errors.New("ORDER_NOT_FOUND")
	ErrInvoiceFailed      = errors.New("INVOICE_FAILED")
	ErrOrderNotPaid       = errors.New("ORDER_NOT_PAID")
	ErrOrderNotRefundable = errors.New("ORDER_NOT_REFUNDABLE")
	ErrRetryNotAllowed    = errors.New("RETRY_NOT_ALLOWED")
	ErrForbidden          = errors.New("FORBIDDEN")
)
