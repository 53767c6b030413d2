package common

import (
	"errors"
	"fmt"
)

// Kind classifies a failed operation for callers and transports.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindPermission        Kind = "permission"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindInsufficientQuota Kind = "insufficient_quota"
	KindQuotaExhausted    Kind = "quota_exhausted"
	KindNoActivePlan      Kind = "no_active_plan"
	KindInvalidAmount     Kind = "invalid_amount"
	KindConflict          Kind = "conflict"
	KindExternalService   Kind = "external_service"
	KindInternal          Kind = "internal"
)

// Error is the typed failure returned by service operations.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed error. err may be nil.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Err: ErrorNotFound}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindPermission, Message: message, Err: ErrorForbidden}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message, Err: ErrorUnauthorized}
}

func ExternalService(message string, err error) *Error {
	return &Error{Kind: KindExternalService, Message: message, Err: err}
}

var sentinelKinds = []struct {
	err  error
	kind Kind
}{
	{ErrorNotFound, KindNotFound},
	{ErrorAlreadyExists, KindConflict},
	{ErrVersionConflict, KindConflict},
	{ErrAlreadyProcessed, KindConflict},
	{ErrorUnauthorized, KindUnauthorized},
	{ErrInvalidToken, KindUnauthorized},
	{ErrTokenExpired, KindUnauthorized},
	{ErrRefreshTokenExpired, KindUnauthorized},
	{ErrorForbidden, KindPermission},
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrNoActivePlan, KindNoActivePlan},
	{ErrQuotaExhausted, KindQuotaExhausted},
	{ErrInsufficientQuota, KindInsufficientQuota},
}

// KindOf reports the kind of err. Typed errors keep their kind, known
// sentinels map to their kind and everything else is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, s := range sentinelKinds {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindInternal
}

// AsError normalizes err into a typed outcome. Unknown errors become a
// generic internal error so driver or network details never reach callers;
// the original error is kept in Err for logging.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	for _, s := range sentinelKinds {
		if errors.Is(err, s.err) {
			return &Error{Kind: s.kind, Message: s.err.Error(), Err: err}
		}
	}
	return &Error{Kind: KindInternal, Message: ErrorInternal.Error(), Err: err}
}
