package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/assessment-engine/internal/errors"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
)

// ===== COMMON SERVICE ERRORS =====

var (
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")

	// Session errors
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session time has expired")
	ErrSessionCompleted  = errors.New("session is already completed")
	ErrSessionActive     = errors.New("session is still in progress")
	ErrWrongExamKind     = errors.New("operation is not available for this exam kind")
	ErrInsufficientItems = errors.New("not enough active items in the catalog")

	// Catalog errors
	ErrItemNotFound = errors.New("item not found")
	ErrBadItem      = errors.New("item does not belong to the session")

	// Evaluation errors
	ErrEvaluationNotFound = errors.New("evaluation not found")
	ErrEvaluationFailed   = errors.New("evaluation failed")
	ErrRubricMissing      = errors.New("task has no valid rubric")
)

// ===== CUSTOM ERROR TYPES =====

type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

// ExpiredError is returned when a request reaches a session past its
// deadline. The session has been finalized and Result holds the outcome.
type ExpiredError struct {
	Result *SessionResult
}

func (e *ExpiredError) Error() string {
	return ErrSessionExpired.Error()
}

func (e *ExpiredError) Is(target error) bool {
	return target == ErrSessionExpired
}

// EvaluationFailedError carries the Failed evaluation record so callers can
// show it and offer a retry.
type EvaluationFailedError struct {
	Evaluation *EvaluationView
	Cause      error
}

func (e *EvaluationFailedError) Error() string {
	return fmt.Sprintf("%s: %v", ErrEvaluationFailed.Error(), e.Cause)
}

func (e *EvaluationFailedError) Is(target error) bool {
	return target == ErrEvaluationFailed
}

func (e *EvaluationFailedError) Unwrap() error {
	return e.Cause
}

// ===== ERROR HELPERS =====

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

// mapNotFound converts a repository miss into the given service sentinel.
func mapNotFound(err error, sentinel error) error {
	if repositories.IsNotFoundError(err) {
		return sentinel
	}
	return err
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrEvaluationNotFound) ||
		repositories.IsNotFoundError(err)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) || errors.Is(err, ErrBadItem) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var single *apperrors.ValidationError
	return errors.As(err, &single)
}

func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}

// IsConflict checks if error represents a state conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrSessionCompleted) ||
		errors.Is(err, ErrSessionActive) ||
		errors.Is(err, ErrWrongExamKind) ||
		errors.Is(err, ErrInsufficientItems) ||
		errors.Is(err, ErrRubricMissing) ||
		IsBusinessRule(err)
}

func IsExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
