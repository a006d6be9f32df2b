package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/assessment-engine/internal/services"
	"github.com/SAP-F-2025/assessment-engine/internal/utils"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	BaseHandler
	sessions services.SessionService
}

func NewSessionHandler(sessions services.SessionService, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler: NewBaseHandler(logger),
		sessions:    sessions,
	}
}

func clientInfo(c *gin.Context) services.ClientInfo {
	return services.ClientInfo{UserAgent: c.Request.UserAgent(), IP: c.ClientIP()}
}

// StartTest starts a multiple-choice test session
// @Summary Start test session
// @Tags sessions
// @Accept json
// @Produce json
// @Param participant body services.Participant true "Participant"
// @Success 201 {object} services.SessionView
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/test [post]
func (h *SessionHandler) StartTest(c *gin.Context) {
	var req services.StartTestRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Client = clientInfo(c)

	view, err := h.sessions.StartTest(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// StartPractice starts a written exam session of the requested category
// @Summary Start written exam session
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body services.StartPracticeRequest true "Participant and category"
// @Success 201 {object} services.SessionView
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/practice [post]
func (h *SessionHandler) StartPractice(c *gin.Context) {
	var req services.StartPracticeRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Client = clientInfo(c)

	view, err := h.sessions.StartPractice(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetSession returns the session with its items and saved progress
// @Router /sessions/{token} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	token := ParseStringIDParam(c, "token")
	if token == "" {
		return
	}

	view, err := h.sessions.Get(c.Request.Context(), token)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// @Router /sessions/{token}/time [get]
func (h *SessionHandler) GetTimeRemaining(c *gin.Context) {
	token := ParseStringIDParam(c, "token")
	if token == "" {
		return
	}

	remaining, err := h.sessions.TimeRemaining(c.Request.Context(), token)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, remaining)
}

// RecordAnswer stores a single answer; a repeated answer replaces the previous one
// @Router /sessions/{token}/answer [put]
func (h *SessionHandler) RecordAnswer(c *gin.Context) {
	token := ParseStringIDParam(c, "token")
	if token == "" {
		return
	}
	var req services.AnswerSubmission
	if !bindJSON(c, &req) {
		return
	}

	if err := h.sessions.RecordResponse(c.Request.Context(), token, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitAnswers stores a batch of answers and optionally finishes the session
// @Router /sessions/{token}/answers [post]
func (h *SessionHandler) SubmitAnswers(c *gin.Context) {
	token := ParseStringIDParam(c, "token")
	if token == "" {
		return
	}
	var req services.SubmitAnswersRequest
	if !bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Submitting answers", "session_token", token, "answers", len(req.Answers), "finish", req.Finish)
	result, err := h.sessions.SubmitAnswers(c.Request.Context(), token, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Router /sessions/{token}/autosave [post]
func (h *SessionHandler) Autosave(c *gin.Context) {
	token := ParseStringIDParam(c, "token")
	if token == "" {
		return
	}
	var req services.AutosaveRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.sessions.Autosave(c.Request.Context(), token, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Finish saves the final texts, if any, and completes the session
// @Router /sessions/{token}/finish [post]
func (h *SessionHandler) Finish(c *gin.Context) {
	token := ParseStringIDParam(c, "token")
	if token == "" {
		return
	}
	var req services.FinishRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Finishing session", "session_token", token)
	result, err := h.sessions.Finish(c.Request.Context(), token, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Router /sessions/{token}/result [get]
func (h *SessionHandler) GetResult(c *gin.Context) {
	token := ParseStringIDParam(c, "token")
	if token == "" {
		return
	}

	result, err := h.sessions.Result(c.Request.Context(), token)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Evaluate requests (or repeats) grading of a finished written exam
// @Router /sessions/{token}/evaluate [post]
func (h *SessionHandler) Evaluate(c *gin.Context) {
	token := ParseStringIDParam(c, "token")
	if token == "" {
		return
	}

	h.LogRequest(c, "Evaluation requested", "session_token", token)
	evaluation, err := h.sessions.Evaluate(c.Request.Context(), token)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, evaluation)
}

// @Router /sessions/{token}/evaluation [get]
func (h *SessionHandler) GetEvaluation(c *gin.Context) {
	token := ParseStringIDParam(c, "token")
	if token == "" {
		return
	}

	evaluation, err := h.sessions.EvaluationResult(c.Request.Context(), token)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, evaluation)
}
