package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("conflict")
	ErrAmountMismatch = errors.New("amount mismatch")
	ErrSignature      = errors.New("signature verification failed")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrTransientStore = errors.New("store temporarily unavailable")
)

var (
	ErrInvalidInterval     = fmt.Errorf("%w: invalid rental interval", ErrValidation)
	ErrInvalidOrderState   = fmt.Errorf("%w: invalid order state", ErrConflict)
	ErrInvalidCaseState    = fmt.Errorf("%w: invalid after-sales case state", ErrConflict)
	ErrVehicleUnavailable  = fmt.Errorf("%w: vehicle unavailable", ErrConflict)
	ErrDuplicateActiveCase = fmt.Errorf("%w: order already has an active after-sales case", ErrConflict)
	ErrCouponIneligible    = fmt.Errorf("%w: coupon ineligible", ErrConflict)
	ErrOrderClosed         = fmt.Errorf("%w: order is cancelled or rejected", ErrInvalidOrderState)
)

// Validationf builds an ErrValidation with a message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
