package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/services"
	"github.com/SAP-F-2025/assessment-engine/internal/utils"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HandlerManager struct {
	sessionHandler *SessionHandler
	adminHandler   *AdminHandler
	adminAuth      gin.HandlerFunc
	storage        Pinger
	logger         utils.Logger
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	storage Pinger,
	tokens TokenParser,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(serviceManager.Session(), logger),
		adminHandler:   NewAdminHandler(serviceManager.ImportExport(), logger),
		adminAuth:      AdminAuth(tokens, logger),
		storage:        storage,
		logger:         logger,
	}
}

// NewRouter builds a gin engine with the request id, logging and recovery middleware.
func (hm *HandlerManager) NewRouter() *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), utils.LoggerMiddleware(hm.logger), utils.ContextLogger(hm.logger), gin.Recovery())
	hm.SetupRoutes(router)
	return router
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/test", hm.sessionHandler.StartTest)
			sessions.POST("/practice", hm.sessionHandler.StartPractice)
			sessions.GET("/:token", hm.sessionHandler.GetSession)
			sessions.GET("/:token/time", hm.sessionHandler.GetTimeRemaining)
			sessions.PUT("/:token/answer", hm.sessionHandler.RecordAnswer)
			sessions.POST("/:token/answers", hm.sessionHandler.SubmitAnswers)
			sessions.POST("/:token/autosave", hm.sessionHandler.Autosave)
			sessions.POST("/:token/finish", hm.sessionHandler.Finish)
			sessions.GET("/:token/result", hm.sessionHandler.GetResult)
			sessions.POST("/:token/evaluate", hm.sessionHandler.Evaluate)
			sessions.GET("/:token/evaluation", hm.sessionHandler.GetEvaluation)
		}

		admin := v1.Group("/admin", hm.adminAuth)
		{
			admin.GET("/results/export", hm.adminHandler.ExportResults)
			admin.POST("/questions/import", hm.adminHandler.ImportQuestions)
			admin.POST("/rubrics/validate", hm.adminHandler.ValidateRubric)
			admin.POST("/rubrics/apply", hm.adminHandler.ApplyRubric)
		}
	}
}

func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "healthy", "service": "assessment-engine"}

	if hm.storage != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := hm.storage.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["storage"] = err.Error()
		}
	}
	c.JSON(status, body)
}
