// Package apperrors provides typed application errors. Service-layer
// code returns AppErrors so controllers can map them to consistent HTTP
// responses without leaking internal details to clients.
package apperrors

import "net/http"

// AppError is a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication and authorization.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid credentials", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
	ErrAccountInactive    = &AppError{Code: "ACCOUNT_INACTIVE", Message: "User account is inactive", StatusCode: http.StatusForbidden}
	ErrAccountNotApproved = &AppError{Code: "ACCOUNT_NOT_APPROVED", Message: "Your account has not been approved yet", StatusCode: http.StatusForbidden}
)

// General.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Users.
var (
	ErrUserNotFound  = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateUser = &AppError{Code: "DUPLICATE_USER", Message: "Username or email already registered", StatusCode: http.StatusConflict}
	ErrSelfDelete    = &AppError{Code: "SELF_DELETE", Message: "Cannot deactivate your own admin account", StatusCode: http.StatusBadRequest}
)

// Symbols and market data.
var (
	ErrSymbolNotFound    = &AppError{Code: "SYMBOL_NOT_FOUND", Message: "Symbol not found", StatusCode: http.StatusNotFound}
	ErrSymbolNotSelected = &AppError{Code: "SYMBOL_NOT_SELECTED", Message: "Symbol not selected", StatusCode: http.StatusBadRequest}
	ErrNoMarketData      = &AppError{Code: "NO_MARKET_DATA", Message: "No market data found", StatusCode: http.StatusNotFound}
	ErrProviderDown      = &AppError{Code: "PROVIDER_UNAVAILABLE", Message: "Failed to fetch provider data after retries", StatusCode: http.StatusServiceUnavailable}
)

// Signals.
var (
	ErrSignalNotFound = &AppError{Code: "SIGNAL_NOT_FOUND", Message: "Signal not found", StatusCode: http.StatusNotFound}
)
