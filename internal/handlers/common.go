package handlers

import (
	"errors"
	"net/http"

	"github.com/SAP-F-2025/assessment-engine/internal/services"
	"github.com/SAP-F-2025/assessment-engine/internal/utils"
	"github.com/gin-gonic/gin"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// EvaluationFailedDetails is returned with a 502 when grading failed.
type EvaluationFailedDetails struct {
	Evaluation   *services.EvaluationView `json:"evaluation"`
	RetryAllowed bool                     `json:"retry_allowed"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger utils.Logger
}

// NewBaseHandler creates a new base handler with logging capability
func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

// requestLogger returns the per-request logger set by utils.ContextLogger,
// which already carries the request id, method and path.
func (h *BaseHandler) requestLogger(c *gin.Context) utils.Logger {
	if l, exists := c.Get("logger"); exists {
		if typed, ok := l.(utils.Logger); ok {
			return typed
		}
	}
	return h.logger.With("request_id", requestID(c), "method", c.Request.Method, "path", c.Request.URL.Path)
}

// LogRequest logs incoming HTTP requests with context information
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := append([]interface{}{"user", h.extractUser(c)}, additionalFields...)
	h.requestLogger(c).InfoContext(c.Request.Context(), message, fields...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	fields := append([]interface{}{"user", h.extractUser(c)}, additionalFields...)
	h.requestLogger(c).LogError(err, message, fields...)
}

// LogWarn logs warning messages with context
func (h *BaseHandler) LogWarn(c *gin.Context, message string, additionalFields ...interface{}) {
	h.requestLogger(c).WarnContext(c.Request.Context(), message, additionalFields...)
}

// extractUser returns the admin name set by the auth middleware, if any.
func (h *BaseHandler) extractUser(c *gin.Context) interface{} {
	if user, exists := c.Get(userContextKey); exists {
		return user
	}
	return nil
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, message string, err error, details ...interface{}) {
	errorResp := ErrorResponse{
		Message: message,
	}
	if len(details) > 0 {
		errorResp.Details = details[0]
	}

	if statusCode >= http.StatusInternalServerError {
		h.LogError(c, err, message, "status_code", statusCode)
	} else {
		h.LogWarn(c, message, "status_code", statusCode, "error", err)
	}

	c.JSON(statusCode, errorResp)
}

// handleServiceError maps service errors onto HTTP responses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var expired *services.ExpiredError
	if errors.As(err, &expired) {
		c.JSON(http.StatusGone, ErrorResponse{
			Message: "Session time has expired",
			Details: expired.Result,
			Code:    "session_expired",
		})
		return
	}

	var failed *services.EvaluationFailedError
	if errors.As(err, &failed) {
		h.LogWarn(c, "Evaluation failed", "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Evaluation failed, it can be requested again",
			Details: EvaluationFailedDetails{Evaluation: failed.Evaluation, RetryAllowed: true},
			Code:    "evaluation_failed",
		})
		return
	}

	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
			Code:    "validation_failed",
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return
	}

	switch {
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
			Code:    "validation_failed",
		})
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Session not found", Code: "session_not_found"})
	case errors.Is(err, services.ErrEvaluationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Evaluation not found", Code: "evaluation_not_found"})
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Resource not found", Details: err.Error()})
	case errors.Is(err, services.ErrSessionCompleted):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Session is already completed", Code: "session_completed"})
	case errors.Is(err, services.ErrSessionActive):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Session is still in progress", Code: "session_active"})
	case errors.Is(err, services.ErrWrongExamKind):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Operation is not available for this exam", Code: "wrong_exam_kind"})
	case errors.Is(err, services.ErrInsufficientItems):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Not enough active items to start", Code: "insufficient_items"})
	case services.IsConflict(err):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Request conflicts with the current state", Details: err.Error()})
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}
