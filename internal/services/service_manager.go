package services

import (
	"log/slog"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/events"
	"github.com/SAP-F-2025/assessment-engine/internal/grading"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
)

// ServiceManager exposes every service over one repository and publisher.
type ServiceManager interface {
	Session() SessionService
	Evaluation() EvaluationService
	ImportExport() ImportExportService

	// Wait blocks until dispatched best-effort tasks have returned.
	Wait()
}

type ManagerConfig struct {
	Session         SessionConfig
	Evaluation      EvaluationConfig
	DispatchTimeout time.Duration
	Clock           Clock
}

type serviceManager struct {
	session      SessionService
	evaluation   EvaluationService
	importExport ImportExportService
	dispatcher   *Dispatcher
}

func NewServiceManager(
	repo repositories.Repository,
	chain *grading.Chain,
	publisher events.EventPublisher,
	validator *validator.Validator,
	config ManagerConfig,
	logger *slog.Logger,
) ServiceManager {
	if logger == nil {
		logger = slog.Default()
	}

	deadline := NewDeadlinePolicy(config.Clock)
	dispatcher := NewDispatcher(config.DispatchTimeout, logger.With("component", "dispatcher"))
	recorder := NewCompletionRecorder(publisher, dispatcher, logger.With("component", "completion"))
	evaluation := NewEvaluationService(repo, chain, recorder, deadline, config.Evaluation, logger)

	return &serviceManager{
		session:      NewSessionService(repo, evaluation, recorder, deadline, validator, config.Session, logger),
		evaluation:   evaluation,
		importExport: NewImportExportService(repo, logger.With("component", "catalog"), validator),
		dispatcher:   dispatcher,
	}
}

func (m *serviceManager) Session() SessionService           { return m.session }
func (m *serviceManager) Evaluation() EvaluationService     { return m.evaluation }
func (m *serviceManager) ImportExport() ImportExportService { return m.importExport }
func (m *serviceManager) Wait()                             { m.dispatcher.Wait() }
