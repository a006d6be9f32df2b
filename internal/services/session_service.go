package services

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionService manages the lifecycle of timed sessions. Every call on an
// Active session first checks its deadline; an expired session is finalized
// and the call returns *ExpiredError instead of doing what was asked.
type SessionService interface {
	StartTest(ctx context.Context, req *StartTestRequest) (*SessionView, error)
	StartPractice(ctx context.Context, req *StartPracticeRequest) (*SessionView, error)

	Get(ctx context.Context, token string) (*SessionView, error)
	TimeRemaining(ctx context.Context, token string) (*TimeRemaining, error)

	RecordResponse(ctx context.Context, token string, answer *AnswerSubmission) error
	SubmitAnswers(ctx context.Context, token string, req *SubmitAnswersRequest) (*SubmitResult, error)
	Autosave(ctx context.Context, token string, req *AutosaveRequest) (*AutosaveResult, error)
	Finish(ctx context.Context, token string, req *FinishRequest) (*SessionResult, error)

	// Finalize completes the session once; later calls return the stored outcome.
	Finalize(ctx context.Context, token string) (*SessionResult, error)
	Result(ctx context.Context, token string) (*SessionResult, error)

	Evaluate(ctx context.Context, token string) (*EvaluationView, error)
	EvaluationResult(ctx context.Context, token string) (*EvaluationView, error)
}

type SessionConfig struct {
	TestQuestionCount int
	TestShuffle       bool
	TestDuration      time.Duration
	PracticeDuration  time.Duration
	EvaluateOnFinish  bool
	AnalyticsSalt     string
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TestQuestionCount: 30,
		TestShuffle:       true,
		TestDuration:      20 * time.Minute,
		PracticeDuration:  180 * time.Minute,
		EvaluateOnFinish:  true,
	}
}

type sessionService struct {
	repo        repositories.Repository
	evaluations EvaluationService
	recorder    CompletionRecorder
	deadline    *DeadlinePolicy
	validator   *validator.Validator
	ledger      ResponseLedger
	scorer      Scorer
	compiler    DocumentCompiler
	config      SessionConfig
	logger      *ServiceLogger
}

func NewSessionService(
	repo repositories.Repository,
	evaluations EvaluationService,
	recorder CompletionRecorder,
	deadline *DeadlinePolicy,
	validator *validator.Validator,
	config SessionConfig,
	logger *slog.Logger,
) SessionService {
	if deadline == nil {
		deadline = NewDeadlinePolicy(nil)
	}
	if recorder == nil {
		recorder = NewCompletionRecorder(nil, nil, logger)
	}
	return &sessionService{
		repo:        repo,
		evaluations: evaluations,
		recorder:    recorder,
		deadline:    deadline,
		validator:   validator,
		config:      config,
		logger:      NewServiceLogger(logger, LogConfig{Service: "session", Component: "lifecycle"}),
	}
}

// ===== START =====

func (s *sessionService) StartTest(ctx context.Context, req *StartTestRequest) (view *SessionView, err error) {
	op := s.logger.WithOperation(ctx, "start_test", "")
	defer func() { op.LogResult(err) }()

	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	kind := models.ItemKindQuestion
	pool, err := s.repo.Catalog().ListItems(ctx, repositories.ItemFilters{Kind: &kind, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	count := s.config.TestQuestionCount
	if len(pool) < count || count <= 0 {
		return nil, fmt.Errorf("%w: %d active questions, %d required", ErrInsufficientItems, len(pool), count)
	}

	if s.config.TestShuffle {
		rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	} else {
		slices.SortFunc(pool, func(a, b *models.AssessmentItem) int {
			if c := cmp.Compare(a.Number, b.Number); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
	}
	items := pool[:count]

	session := s.newSession(models.ExamKindTest, "", req.Participant, req.Client, items, s.config.TestDuration)
	if err := s.repo.Session().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Logger().InfoContext(ctx, "Test session started",
		"session_token", session.Token, "questions", len(items), "deadline_at", session.DeadlineAt)
	return s.buildView(session, items, nil), nil
}

func (s *sessionService) StartPractice(ctx context.Context, req *StartPracticeRequest) (view *SessionView, err error) {
	op := s.logger.WithOperation(ctx, "start_practice", "")
	defer func() { op.LogResult(err) }()

	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	kind := models.ItemKindTask
	category := req.Category
	pool, err := s.repo.Catalog().ListItems(ctx, repositories.ItemFilters{Kind: &kind, Category: &category, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: no active %s task", ErrInsufficientItems, category)
	}
	task := pool[rand.Intn(len(pool))]

	session := s.newSession(models.ExamKindPractice, category, req.Participant, req.Client,
		[]*models.AssessmentItem{task}, s.config.PracticeDuration)
	if err := s.repo.Session().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Logger().InfoContext(ctx, "Practice session started",
		"session_token", session.Token, "category", category, "task_id", task.ID, "deadline_at", session.DeadlineAt)
	return s.buildView(session, []*models.AssessmentItem{task}, nil), nil
}

func (s *sessionService) newSession(kind models.ExamKind, category models.Category, p Participant, client ClientInfo,
	items []*models.AssessmentItem, duration time.Duration) *models.AssessmentSession {

	ids := make([]uint, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	now := s.deadline.Now()
	return &models.AssessmentSession{
		Token:           uuid.NewString(),
		Kind:            kind,
		Category:        category,
		ParticipantName: p.Name,
		ParticipantAge:  p.Age,
		ItemIDs:         ids,
		DurationSeconds: int(duration / time.Second),
		StartedAt:       now,
		DeadlineAt:      now.Add(duration),
		UserAgent:       truncateRunes(client.UserAgent, 255),
		IPHash:          hashIP(s.config.AnalyticsSalt, client.IP),
	}
}

// ===== READS =====

func (s *sessionService) Get(ctx context.Context, token string) (*SessionView, error) {
	session, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.expireIfDue(ctx, session); err != nil {
		return nil, err
	}

	items, err := s.repo.Catalog().GetItems(ctx, session.ItemIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load session items: %w", err)
	}
	records, err := s.repo.Response().GetBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}
	return s.buildView(session, items, records), nil
}

func (s *sessionService) TimeRemaining(ctx context.Context, token string) (*TimeRemaining, error) {
	session, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.expireIfDue(ctx, session); err != nil {
		return nil, err
	}
	return &TimeRemaining{
		Token:            session.Token,
		RemainingSeconds: int(s.deadline.Remaining(session) / time.Second),
		DeadlineAt:       session.DeadlineAt,
	}, nil
}

func (s *sessionService) Result(ctx context.Context, token string) (*SessionResult, error) {
	session, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if !session.IsCompleted {
		if !s.deadline.Expired(session) {
			return nil, ErrSessionActive
		}
		return s.Finalize(ctx, token)
	}
	return s.buildResult(ctx, session)
}

// ===== WRITES =====

func (s *sessionService) RecordResponse(ctx context.Context, token string, answer *AnswerSubmission) (err error) {
	op := s.logger.WithOperation(ctx, "record_response", token)
	defer func() { op.LogResult(err) }()

	if err := s.validator.Validate(answer); err != nil {
		return err
	}
	return s.withActiveSession(ctx, token, repositories.LockShared, func(tx repositories.Repository, session *models.AssessmentSession) error {
		_, err := s.ledger.Record(ctx, tx, session, answer, s.deadline.Now())
		return err
	})
}

func (s *sessionService) SubmitAnswers(ctx context.Context, token string, req *SubmitAnswersRequest) (result *SubmitResult, err error) {
	op := s.logger.WithOperation(ctx, "submit_answers", token)
	defer func() { op.LogResult(err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	lock := repositories.LockShared
	if req.FocusLoss != nil {
		lock = repositories.LockExclusive
	}

	result = &SubmitResult{}
	err = s.withActiveSession(ctx, token, lock, func(tx repositories.Repository, session *models.AssessmentSession) error {
		now := s.deadline.Now()
		for i := range req.Answers {
			if _, err := s.ledger.Record(ctx, tx, session, &req.Answers[i], now); err != nil {
				return err
			}
		}
		if req.FocusLoss != nil {
			session.FocusLoss = max(session.FocusLoss, *req.FocusLoss)
			if err := tx.Session().UpdateProgress(ctx, session); err != nil {
				return fmt.Errorf("failed to store focus loss: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Recorded = len(req.Answers)

	if req.Finish {
		final, err := s.Finalize(ctx, token)
		if err != nil {
			return nil, err
		}
		result.Finished = true
		result.Result = final
	}
	return result, nil
}

func (s *sessionService) Autosave(ctx context.Context, token string, req *AutosaveRequest) (result *AutosaveResult, err error) {
	op := s.logger.WithOperation(ctx, "autosave", token)
	defer func() { op.LogResult(err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	err = s.withActiveSession(ctx, token, repositories.LockExclusive, func(tx repositories.Repository, session *models.AssessmentSession) error {
		taskID, ok := session.TaskItemID()
		if !ok {
			return ErrWrongExamKind
		}
		now := s.deadline.Now()

		if req.Motivation != nil || req.Resolution != nil {
			answer := &AnswerSubmission{ItemID: taskID, Motivation: req.Motivation, Resolution: req.Resolution}
			if _, err := s.ledger.Record(ctx, tx, session, answer, now); err != nil {
				return err
			}
		}

		session.AutosaveVersion++
		session.LastAutosaveAt = &now
		session.KeypressCount += req.KeypressDelta
		session.PasteBlocked += req.PasteDelta
		if err := tx.Session().UpdateProgress(ctx, session); err != nil {
			return fmt.Errorf("failed to store autosave progress: %w", err)
		}

		result = &AutosaveResult{Version: session.AutosaveVersion, SavedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *sessionService) Finish(ctx context.Context, token string, req *FinishRequest) (result *SessionResult, err error) {
	op := s.logger.WithOperation(ctx, "finish", token)
	defer func() { op.LogResult(err) }()

	if req == nil {
		req = &FinishRequest{}
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	err = s.withActiveSession(ctx, token, repositories.LockExclusive, func(tx repositories.Repository, session *models.AssessmentSession) error {
		if req.Motivation != nil || req.Resolution != nil {
			taskID, ok := session.TaskItemID()
			if !ok {
				return ErrWrongExamKind
			}
			answer := &AnswerSubmission{ItemID: taskID, Motivation: req.Motivation, Resolution: req.Resolution}
			if _, err := s.ledger.Record(ctx, tx, session, answer, s.deadline.Now()); err != nil {
				return err
			}
		}
		if req.FocusLoss != nil {
			session.FocusLoss = max(session.FocusLoss, *req.FocusLoss)
			if err := tx.Session().UpdateProgress(ctx, session); err != nil {
				return fmt.Errorf("failed to store focus loss: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Finalize(ctx, token)
}

// ===== FINALIZE =====

func (s *sessionService) Finalize(ctx context.Context, token string) (result *SessionResult, err error) {
	var (
		session *models.AssessmentSession
		won     bool
	)

	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		session, err = tx.Session().GetByToken(ctx, token, repositories.LockExclusive)
		if err != nil {
			return mapNotFound(err, ErrSessionNotFound)
		}
		if session.IsCompleted {
			return nil
		}

		records, err := tx.Response().GetBySession(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("failed to load responses: %w", err)
		}

		finishedAt := s.deadline.FinishTime(session)
		var total decimal.NullDecimal
		if session.Kind == models.ExamKindTest {
			total = decimal.NewNullDecimal(s.scorer.Score(session, records))
		}

		won, err = s.recorder.MarkCompleted(ctx, tx, session, finishedAt, total)
		if err != nil || !won {
			return err
		}

		if session.Kind == models.ExamKindPractice {
			ev := &models.EvaluationRecord{SessionID: session.ID}
			ev.Reset(s.deadline.Now())
			if err := tx.Evaluation().Save(ctx, ev); err != nil {
				return fmt.Errorf("failed to create evaluation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !won {
		// Completed earlier or by a concurrent caller; serve what is stored.
		if session, err = s.load(ctx, token); err != nil {
			return nil, err
		}
		return s.buildResult(ctx, session)
	}

	s.logger.Logger().InfoContext(ctx, "Session finalized",
		"session_token", session.Token,
		"kind", session.Kind,
		"total_score", session.TotalScore,
		"finished_at", session.FinishedAt)

	if session.Kind == models.ExamKindPractice && s.config.EvaluateOnFinish && s.evaluations != nil {
		if _, err := s.evaluations.Run(ctx, session); err != nil {
			// The session stays completed; the participant can retry the evaluation.
			s.logger.Logger().WarnContext(ctx, "Evaluation after finalize failed",
				"session_token", session.Token, "error", err)
		}
	}

	var evaluation *models.EvaluationRecord
	if session.Kind == models.ExamKindPractice {
		evaluation, _ = s.repo.Evaluation().GetBySession(ctx, session.ID)
	}
	s.recorder.NotifySessionCompleted(ctx, session, evaluation)

	return s.buildResult(ctx, session)
}

// ===== EVALUATION =====

func (s *sessionService) Evaluate(ctx context.Context, token string) (*EvaluationView, error) {
	session, err := s.completedPractice(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.evaluations.Request(ctx, session)
}

func (s *sessionService) EvaluationResult(ctx context.Context, token string) (*EvaluationView, error) {
	session, err := s.completedPractice(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.evaluations.Get(ctx, session)
}

// completedPractice loads a written exam session, finalizing it first when
// its deadline has passed.
func (s *sessionService) completedPractice(ctx context.Context, token string) (*models.AssessmentSession, error) {
	session, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Kind != models.ExamKindPractice {
		return nil, ErrWrongExamKind
	}
	if session.IsCompleted {
		return session, nil
	}
	if !s.deadline.Expired(session) {
		return nil, ErrSessionActive
	}
	if _, err := s.Finalize(ctx, token); err != nil {
		return nil, err
	}
	return s.load(ctx, token)
}

// ===== HELPERS =====

func (s *sessionService) load(ctx context.Context, token string) (*models.AssessmentSession, error) {
	session, err := s.repo.Session().GetByToken(ctx, token, repositories.LockNone)
	if err != nil {
		return nil, mapNotFound(err, ErrSessionNotFound)
	}
	return session, nil
}

// expireIfDue finalizes an Active session past its deadline and reports it
// as *ExpiredError.
func (s *sessionService) expireIfDue(ctx context.Context, session *models.AssessmentSession) error {
	if session.IsCompleted || !s.deadline.Expired(session) {
		return nil
	}
	result, err := s.Finalize(ctx, session.Token)
	if err != nil {
		return err
	}
	return &ExpiredError{Result: result}
}

// withActiveSession runs fn in a transaction holding the session lock. The
// deadline is checked after the lock is taken, so no write lands after expiry.
func (s *sessionService) withActiveSession(ctx context.Context, token string, lock repositories.LockMode,
	fn func(tx repositories.Repository, session *models.AssessmentSession) error) error {

	expired := false
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		session, err := tx.Session().GetByToken(ctx, token, lock)
		if err != nil {
			return mapNotFound(err, ErrSessionNotFound)
		}
		if session.IsCompleted {
			return ErrSessionCompleted
		}
		if s.deadline.Expired(session) {
			expired = true
			return nil
		}
		return fn(tx, session)
	})
	if err != nil {
		return err
	}
	if expired {
		result, err := s.Finalize(ctx, token)
		if err != nil {
			return err
		}
		return &ExpiredError{Result: result}
	}
	return nil
}

func hashIP(salt, ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + ":" + ip))
	return hex.EncodeToString(sum[:])
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
