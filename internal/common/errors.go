// Package common defines shared constants, sentinel errors and the typed
// error outcome used across CampusVault server layers. Callers should use
// errors.Is to match sentinels and KindOf to classify any error.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrorForbidden     = errors.New("forbidden")
	ErrVersionConflict = errors.New("version conflict")

	// ErrAlreadyProcessed is returned by conditional state transitions when
	// the record has already left its pending state.
	ErrAlreadyProcessed = errors.New("already processed")

	// Ledger and quota errors.
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoActivePlan      = errors.New("no active storage plan")
	ErrQuotaExhausted    = errors.New("storage quota exhausted")
	ErrInsufficientQuota = errors.New("insufficient storage quota")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
