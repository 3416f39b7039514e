package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	ErrInsufficientPoints = New("INSUFFICIENT_POINTS", http.StatusConflict, "insufficient points")
	ErrBiddingClosed      = New("BIDDING_CLOSED", http.StatusConflict, "bidding is closed")
	ErrDuplicateBid       = New("DUPLICATE_BID", http.StatusConflict, "a bid already exists for this offering")
	ErrBidProcessed       = New("BID_ALREADY_PROCESSED", http.StatusConflict, "bid has already been processed")
	ErrNoSeats            = New("NO_SEATS", http.StatusConflict, "offering has no remaining seats")
	ErrOfferingFull       = New("OFFERING_FULL", http.StatusConflict, "offering is full")
	ErrOfferingClosed     = New("OFFERING_CLOSED", http.StatusConflict, "offering is closed for enrollment")
	ErrAlreadyEnrolled    = New("ALREADY_ENROLLED", http.StatusConflict, "already enrolled in this course")
	ErrNotEnrolled        = New("NOT_ENROLLED", http.StatusConflict, "not enrolled in this offering")
	ErrScheduleConflict   = New("SCHEDULE_CONFLICT", http.StatusConflict, "schedule conflict with an existing enrollment")
	ErrCrossMajorQuota    = New("CROSS_MAJOR_QUOTA_FULL", http.StatusConflict, "cross-major quota for this offering is exhausted")
	ErrGradeFinalized     = New("GRADE_FINALIZED", http.StatusConflict, "enrollment has a finalized grade")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
