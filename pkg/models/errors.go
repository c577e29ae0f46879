package models

import "errors"

// Sentinel errors shared across repositories and services.
var (
	ErrNotFound            = errors.New("record not found")
	ErrInsufficientBalance = errors.New("insufficient credit balance")
	ErrSignerUnavailable   = errors.New("signer is not running")
	ErrSignerUnreachable   = errors.New("failed to reach signer")
)

// Stable machine-checkable error categories returned to API callers.
const (
	CodeUnauthorized        = "unauthorized"
	CodeForbidden           = "forbidden"
	CodeInsufficientBalance = "insufficient_balance"
	CodeSignerUnavailable   = "signer_unavailable"
	CodeBadGateway          = "bad_gateway"
	CodeInvalidRequest      = "invalid_request"
	CodeInternal            = "internal_error"
)
