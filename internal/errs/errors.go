package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/log"
)

type ErrorType int

const (
	ErrStoreUnavailable ErrorType = iota
	ErrStore
	ErrMalformedInput
	ErrExternalCall
	ErrConfig
	ErrValidation
	ErrUnknown
)

// Error is the application error carried across package boundaries.
type Error struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func New(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func Newf(errorType ErrorType, format string, args ...any) *Error {
	return New(errorType, fmt.Sprintf(format, args...))
}

func Wrap(err error, errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   err,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(ctxParts, ", "))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}
	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrStoreUnavailable:
		return "StoreUnavailable"
	case ErrStore:
		return "Store"
	case ErrMalformedInput:
		return "MalformedInput"
	case ErrExternalCall:
		return "ExternalCall"
	case ErrConfig:
		return "Config"
	case ErrValidation:
		return "Validation"
	default:
		return "Unknown"
	}
}

// IsType reports whether any error in err's chain is an *Error of the given type.
func IsType(err error, errorType ErrorType) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

type Handler interface {
	Handle(err error) bool
	Advice(err *Error) string
}

type DefaultHandler struct{}

func NewDefaultHandler() Handler {
	return &DefaultHandler{}
}

// Handle logs err with advice. It returns false for errors that are not *Error.
func (h *DefaultHandler) Handle(err error) bool {
	var appErr *Error
	if !errors.As(err, &appErr) {
		log.Error("Unknown error: %v", err)
		return false
	}
	log.Error("Error detail: %v\n advice: %s", err, h.Advice(appErr))
	return true
}

func (h *DefaultHandler) Advice(err *Error) string {
	switch err.Type {
	case ErrStoreUnavailable:
		return "The offline store could not be opened; check the database path, free disk space and file permissions"
	case ErrStore:
		return "A store operation failed; the message names the operation, retry after checking the database file"
	case ErrMalformedInput:
		return "The input is missing a required identifier or has an invalid language code"
	case ErrExternalCall:
		return "The translation service call failed; check network access, API keys and provider quotas"
	case ErrConfig:
		return "Check the environment variables, .env file or --config file"
	case ErrValidation:
		return "Check the request parameters"
	default:
		return "Review the detailed error information"
	}
}
