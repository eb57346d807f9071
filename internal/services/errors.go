package services

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// ReferenceNotFoundError reports an answer detail whose question or option no longer resolves.
type ReferenceNotFoundError struct {
	Kind string // "question" or "option"
	ID   string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// DuplicateSubmissionError is returned when a user answers the same questionnaire twice.
type DuplicateSubmissionError struct {
	UserID          string
	QuestionnaireID string
}

func (e *DuplicateSubmissionError) Error() string {
	return fmt.Sprintf("user %s already answered questionnaire %s", e.UserID, e.QuestionnaireID)
}

// PartialBatchFailure wraps a failure while writing answer details. The answer and every
// detail written before the failure are rolled back.
type PartialBatchFailure struct {
	AnswerID string
	Inserted int
	Err      error
}

func (e *PartialBatchFailure) Error() string {
	return fmt.Sprintf("answer %s: detail batch failed after %d rows: %v", e.AnswerID, e.Inserted, e.Err)
}

func (e *PartialBatchFailure) Unwrap() error { return e.Err }
