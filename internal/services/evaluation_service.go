package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/grading"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const defaultGradingTimeout = 120 * time.Second

// EvaluationService grades finalized written exam sessions through the tier
// chain. Callers hand it sessions that are already completed.
type EvaluationService interface {
	Get(ctx context.Context, session *models.AssessmentSession) (*EvaluationView, error)

	// Request resets the evaluation to Pending, counting a new attempt, and runs it.
	Request(ctx context.Context, session *models.AssessmentSession) (*EvaluationView, error)

	// Run grades the session and stores Done or Failed. A Failed outcome is
	// returned as *EvaluationFailedError.
	Run(ctx context.Context, session *models.AssessmentSession) (*EvaluationView, error)
}

type EvaluationConfig struct {
	Timeout time.Duration
	Limits  grading.Limits
}

func DefaultEvaluationConfig() EvaluationConfig {
	return EvaluationConfig{
		Timeout: defaultGradingTimeout,
		Limits:  grading.DefaultLimits,
	}
}

type evaluationService struct {
	repo     repositories.Repository
	chain    *grading.Chain
	compiler DocumentCompiler
	recorder CompletionRecorder
	deadline *DeadlinePolicy
	config   EvaluationConfig
	logger   *ServiceLogger
}

func NewEvaluationService(
	repo repositories.Repository,
	chain *grading.Chain,
	recorder CompletionRecorder,
	deadline *DeadlinePolicy,
	config EvaluationConfig,
	logger *slog.Logger,
) EvaluationService {
	if config.Timeout <= 0 {
		config.Timeout = defaultGradingTimeout
	}
	if deadline == nil {
		deadline = NewDeadlinePolicy(nil)
	}
	return &evaluationService{
		repo:     repo,
		chain:    chain,
		recorder: recorder,
		deadline: deadline,
		config:   config,
		logger:   NewServiceLogger(logger, LogConfig{Service: "evaluation", Component: "orchestrator"}),
	}
}

func (s *evaluationService) Get(ctx context.Context, session *models.AssessmentSession) (*EvaluationView, error) {
	if session.Kind != models.ExamKindPractice {
		return nil, ErrWrongExamKind
	}
	ev, err := s.repo.Evaluation().GetBySession(ctx, session.ID)
	if err != nil {
		return nil, mapNotFound(err, ErrEvaluationNotFound)
	}
	return NewEvaluationView(ev), nil
}

func (s *evaluationService) Request(ctx context.Context, session *models.AssessmentSession) (*EvaluationView, error) {
	if session.Kind != models.ExamKindPractice {
		return nil, ErrWrongExamKind
	}

	ev, err := s.loadOrNew(ctx, session)
	if err != nil {
		return nil, err
	}
	ev.Reset(s.deadline.Now())
	if err := s.repo.Evaluation().Save(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to reset evaluation: %w", err)
	}

	s.logger.Logger().InfoContext(ctx, "Evaluation requested",
		"session_token", session.Token, "attempt", ev.Attempts)
	return s.run(ctx, session, ev)
}

func (s *evaluationService) Run(ctx context.Context, session *models.AssessmentSession) (*EvaluationView, error) {
	if session.Kind != models.ExamKindPractice {
		return nil, ErrWrongExamKind
	}
	ev, err := s.loadOrNew(ctx, session)
	if err != nil {
		return nil, err
	}
	if ev.Attempts == 0 {
		ev.Reset(s.deadline.Now())
	}
	return s.run(ctx, session, ev)
}

func (s *evaluationService) run(ctx context.Context, session *models.AssessmentSession, ev *models.EvaluationRecord) (view *EvaluationView, err error) {
	op := s.logger.WithOperation(ctx, "evaluate", session.Token)
	defer func() { op.LogResult(err) }()

	req, err := s.buildRequest(ctx, session, ev)
	if err != nil {
		return s.fail(ctx, session, ev, err)
	}

	gradeCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	result, err := s.chain.Grade(gradeCtx, req)
	if err != nil {
		return s.fail(ctx, session, ev, err)
	}

	ev.MarkDone(s.deadline.Now(), result.Scores, result.Total, result.Feedback)
	ev.Grader = result.Grader
	ev.GraderParams = datatypes.JSONMap(result.Params)
	ev.RawOutput = auditJSON(result.RawOutput)
	if err := s.repo.Evaluation().Save(ctx, ev); err != nil {
		return s.fail(ctx, session, ev, fmt.Errorf("failed to store evaluation: %w", err))
	}
	if err := s.repo.Session().SetTotal(ctx, session.ID, result.Total); err != nil {
		return nil, fmt.Errorf("failed to store evaluated total: %w", err)
	}
	session.TotalScore = decimal.NewNullDecimal(result.Total)

	if s.recorder != nil {
		s.recorder.NotifyEvaluationCompleted(ctx, session.Token, ev)
	}
	return NewEvaluationView(ev), nil
}

func (s *evaluationService) fail(ctx context.Context, session *models.AssessmentSession, ev *models.EvaluationRecord, cause error) (*EvaluationView, error) {
	ev.MarkFailed(s.deadline.Now(), cause.Error())
	if err := s.repo.Evaluation().Save(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to store failed evaluation: %w", err)
	}
	if s.recorder != nil {
		s.recorder.NotifyEvaluationCompleted(ctx, session.Token, ev)
	}
	view := NewEvaluationView(ev)
	return view, &EvaluationFailedError{Evaluation: view, Cause: cause}
}

func (s *evaluationService) loadOrNew(ctx context.Context, session *models.AssessmentSession) (*models.EvaluationRecord, error) {
	ev, err := s.repo.Evaluation().GetBySession(ctx, session.ID)
	switch {
	case err == nil:
		return ev, nil
	case repositories.IsNotFoundError(err):
		return &models.EvaluationRecord{SessionID: session.ID}, nil
	default:
		return nil, fmt.Errorf("failed to load evaluation: %w", err)
	}
}

func (s *evaluationService) buildRequest(ctx context.Context, session *models.AssessmentSession, ev *models.EvaluationRecord) (grading.Request, error) {
	taskID, ok := session.TaskItemID()
	if !ok {
		return grading.Request{}, fmt.Errorf("%w: session has no task", ErrItemNotFound)
	}
	item, err := s.repo.Catalog().GetItem(ctx, taskID)
	if err != nil {
		return grading.Request{}, mapNotFound(err, ErrItemNotFound)
	}

	if item.RubricID == nil {
		return grading.Request{}, fmt.Errorf("%w: no rubric attached to task %d", ErrRubricMissing, item.ID)
	}
	rubric, err := s.repo.Catalog().GetRubric(ctx, *item.RubricID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return grading.Request{}, fmt.Errorf("%w: rubric %d not found", ErrRubricMissing, *item.RubricID)
		}
		return grading.Request{}, fmt.Errorf("failed to load rubric: %w", err)
	}
	if err := rubric.Validate(); err != nil {
		return grading.Request{}, fmt.Errorf("%w: %v", ErrRubricMissing, err)
	}
	ev.RubricID = &rubric.ID

	var answer models.WrittenAnswer
	record, err := s.repo.Response().GetBySessionAndItem(ctx, session.ID, item.ID)
	switch {
	case err == nil:
		answer = record.Written()
	case !repositories.IsNotFoundError(err):
		return grading.Request{}, fmt.Errorf("failed to load answer: %w", err)
	}

	document := s.compiler.Compile(session.Category, item.TemplateData(), answer)
	return grading.BuildRequest(session, item, rubric, answer, document, s.deadline.Now(), s.config.Limits), nil
}

// auditJSON keeps raw grader output storable in a JSON column.
func auditJSON(raw []byte) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	wrapped, err := json.Marshal(map[string]string{"content": string(raw)})
	if err != nil {
		return nil
	}
	return datatypes.JSON(wrapped)
}
