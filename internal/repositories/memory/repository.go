package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/shopspring/decimal"
)

type memoryRepository struct {
	store *Store
	inTx  bool
}

// NewRepository returns a Repository over the given store.
func NewRepository(store *Store) repositories.Repository {
	return &memoryRepository{store: store}
}

func (r *memoryRepository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memoryRepository) Catalog() repositories.CatalogRepository       { return catalogRepo{r} }
func (r *memoryRepository) Session() repositories.SessionRepository       { return sessionRepo{r} }
func (r *memoryRepository) Response() repositories.ResponseRepository     { return responseRepo{r} }
func (r *memoryRepository) Evaluation() repositories.EvaluationRepository { return evaluationRepo{r} }

// WithTransaction runs fn with the store locked and rolls every change back
// if fn returns an error or panics.
func (r *memoryRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) (err error) {
	if r.inTx {
		return fn(r)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	snap := r.store.state.snapshot()
	defer func() {
		if p := recover(); p != nil {
			r.store.state = snap
			panic(p)
		}
		if err != nil {
			r.store.state = snap
		}
	}()
	return fn(&memoryRepository{store: r.store, inTx: true})
}

func (r *memoryRepository) Ping(context.Context) error { return nil }
func (r *memoryRepository) Close() error               { return nil }

// ===== CATALOG =====

type catalogRepo struct{ r *memoryRepository }

func (c catalogRepo) GetItem(_ context.Context, id uint) (*models.AssessmentItem, error) {
	defer c.r.lock()()
	item, ok := c.r.store.state.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneItem(item), nil
}

func (c catalogRepo) GetItems(_ context.Context, ids []uint) ([]*models.AssessmentItem, error) {
	defer c.r.lock()()
	out := make([]*models.AssessmentItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := c.r.store.state.items[id]; ok {
			out = append(out, cloneItem(item))
		}
	}
	return out, nil
}

func (c catalogRepo) ListItems(_ context.Context, filters repositories.ItemFilters) ([]*models.AssessmentItem, error) {
	defer c.r.lock()()
	var out []*models.AssessmentItem
	for _, item := range c.r.store.state.items {
		if filters.Kind != nil && item.Kind != *filters.Kind {
			continue
		}
		if filters.Category != nil && item.Category != *filters.Category {
			continue
		}
		if filters.Difficulty != nil && item.Difficulty != *filters.Difficulty {
			continue
		}
		if filters.ActiveOnly && !item.IsActive {
			continue
		}
		out = append(out, cloneItem(item))
	}
	slices.SortFunc(out, func(a, b *models.AssessmentItem) int {
		if c := cmp.Compare(a.Number, b.Number); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (c catalogRepo) GetRubric(_ context.Context, id uint) (*models.Rubric, error) {
	defer c.r.lock()()
	rubric, ok := c.r.store.state.rubrics[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneRubric(rubric), nil
}

func (c catalogRepo) UpsertQuestion(_ context.Context, item *models.AssessmentItem) (bool, error) {
	defer c.r.lock()()
	item.Kind = models.ItemKindQuestion
	return c.upsert(item, func(existing *models.AssessmentItem) bool {
		return existing.Kind == models.ItemKindQuestion && existing.Number == item.Number
	}), nil
}

func (c catalogRepo) UpsertTask(_ context.Context, item *models.AssessmentItem) (bool, error) {
	defer c.r.lock()()
	item.Kind = models.ItemKindTask
	return c.upsert(item, func(existing *models.AssessmentItem) bool {
		return existing.Kind == models.ItemKindTask && existing.Category == item.Category && existing.Title == item.Title
	}), nil
}

func (c catalogRepo) upsert(item *models.AssessmentItem, match func(*models.AssessmentItem) bool) bool {
	st := c.r.store.state
	now := time.Now()
	created := true
	for _, existing := range st.items {
		if match(existing) {
			item.ID = existing.ID
			item.CreatedAt = existing.CreatedAt
			if item.RubricID == nil {
				item.RubricID = clonePtr(existing.RubricID)
			}
			created = false
			break
		}
	}
	if created {
		st.nextItemID++
		item.ID = st.nextItemID
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	for i := range item.Options {
		st.nextOptionID++
		item.Options[i].ID = st.nextOptionID
		item.Options[i].ItemID = item.ID
	}
	st.items[item.ID] = cloneItem(item)
	return created
}

func (c catalogRepo) SaveRubric(_ context.Context, rubric *models.Rubric) error {
	defer c.r.lock()()
	st := c.r.store.state
	if rubric.ID == 0 {
		st.nextRubricID++
		rubric.ID = st.nextRubricID
		rubric.CreatedAt = time.Now()
	}
	st.rubrics[rubric.ID] = cloneRubric(rubric)
	return nil
}

func (c catalogRepo) AttachRubric(_ context.Context, category models.Category, rubricID uint, maxScore *decimal.Decimal) (int64, error) {
	defer c.r.lock()()
	st := c.r.store.state
	var n int64
	for id, existing := range st.items {
		if existing.Kind != models.ItemKindTask || existing.Category != category {
			continue
		}
		updated := cloneItem(existing)
		updated.RubricID = &rubricID
		if maxScore != nil {
			updated.Points = *maxScore
		}
		st.items[id] = updated
		n++
	}
	return n, nil
}

func (c catalogRepo) IsReferencedByActiveSession(_ context.Context, itemID uint) (bool, error) {
	defer c.r.lock()()
	for _, s := range c.r.store.state.sessions {
		if !s.IsCompleted && s.HasItem(itemID) {
			return true, nil
		}
	}
	return false, nil
}

// ===== SESSIONS =====

type sessionRepo struct{ r *memoryRepository }

func (s sessionRepo) Create(_ context.Context, session *models.AssessmentSession) error {
	defer s.r.lock()()
	st := s.r.store.state
	if _, exists := st.tokens[session.Token]; exists {
		return fmt.Errorf("failed to create session: duplicate token %s", session.Token)
	}
	st.nextSessionID++
	session.ID = st.nextSessionID
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	st.sessions[session.ID] = cloneSession(session)
	st.tokens[session.Token] = session.ID
	return nil
}

// GetByToken ignores the lock mode; transactions are already serialized.
func (s sessionRepo) GetByToken(_ context.Context, token string, _ repositories.LockMode) (*models.AssessmentSession, error) {
	defer s.r.lock()()
	st := s.r.store.state
	id, ok := st.tokens[token]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneSession(st.sessions[id]), nil
}

func (s sessionRepo) List(_ context.Context, filters repositories.SessionFilters) ([]*models.AssessmentSession, int64, error) {
	defer s.r.lock()()
	var out []*models.AssessmentSession
	for _, session := range s.r.store.state.sessions {
		if filters.Kind != nil && session.Kind != *filters.Kind {
			continue
		}
		if filters.CompletedOnly && !session.IsCompleted {
			continue
		}
		if filters.DateFrom != nil && session.StartedAt.Before(*filters.DateFrom) {
			continue
		}
		if filters.DateTo != nil && session.StartedAt.After(*filters.DateTo) {
			continue
		}
		out = append(out, cloneSession(session))
	}
	slices.SortFunc(out, func(a, b *models.AssessmentSession) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	total := int64(len(out))
	if filters.Offset > 0 {
		if filters.Offset >= len(out) {
			return nil, total, nil
		}
		out = out[filters.Offset:]
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

func (s sessionRepo) MarkCompleted(_ context.Context, id uint, finishedAt time.Time, total decimal.NullDecimal) (bool, error) {
	defer s.r.lock()()
	st := s.r.store.state
	existing, ok := st.sessions[id]
	if !ok {
		return false, repositories.ErrNotFound
	}
	if existing.IsCompleted {
		return false, nil
	}
	updated := cloneSession(existing)
	updated.IsCompleted = true
	updated.FinishedAt = &finishedAt
	updated.TotalScore = total
	updated.UpdatedAt = time.Now()
	st.sessions[id] = updated
	return true, nil
}

func (s sessionRepo) UpdateProgress(_ context.Context, session *models.AssessmentSession) error {
	defer s.r.lock()()
	st := s.r.store.state
	existing, ok := st.sessions[session.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	updated := cloneSession(existing)
	updated.AutosaveVersion = session.AutosaveVersion
	updated.LastAutosaveAt = clonePtr(session.LastAutosaveAt)
	updated.KeypressCount = session.KeypressCount
	updated.PasteBlocked = session.PasteBlocked
	updated.FocusLoss = session.FocusLoss
	updated.UpdatedAt = time.Now()
	st.sessions[session.ID] = updated
	return nil
}

func (s sessionRepo) SetTotal(_ context.Context, id uint, total decimal.Decimal) error {
	defer s.r.lock()()
	st := s.r.store.state
	existing, ok := st.sessions[id]
	if !ok {
		return repositories.ErrNotFound
	}
	updated := cloneSession(existing)
	updated.TotalScore = decimal.NewNullDecimal(total)
	st.sessions[id] = updated
	return nil
}

// ===== RESPONSES =====

type responseRepo struct{ r *memoryRepository }

func (rr responseRepo) Upsert(_ context.Context, record *models.ResponseRecord) error {
	defer rr.r.lock()()
	st := rr.r.store.state
	key := responseKey{sessionID: record.SessionID, itemID: record.ItemID}
	if existing, ok := st.responses[key]; ok {
		record.ID = existing.ID
	} else {
		st.nextResponseID++
		record.ID = st.nextResponseID
	}
	record.UpdatedAt = time.Now()
	st.responses[key] = cloneResponse(record)
	return nil
}

func (rr responseRepo) GetBySession(_ context.Context, sessionID uint) ([]*models.ResponseRecord, error) {
	defer rr.r.lock()()
	var out []*models.ResponseRecord
	for key, record := range rr.r.store.state.responses {
		if key.sessionID == sessionID {
			out = append(out, cloneResponse(record))
		}
	}
	slices.SortFunc(out, func(a, b *models.ResponseRecord) int {
		return cmp.Compare(a.ItemID, b.ItemID)
	})
	return out, nil
}

func (rr responseRepo) GetBySessionAndItem(_ context.Context, sessionID, itemID uint) (*models.ResponseRecord, error) {
	defer rr.r.lock()()
	record, ok := rr.r.store.state.responses[responseKey{sessionID: sessionID, itemID: itemID}]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneResponse(record), nil
}

// ===== EVALUATIONS =====

type evaluationRepo struct{ r *memoryRepository }

func (e evaluationRepo) GetBySession(_ context.Context, sessionID uint) (*models.EvaluationRecord, error) {
	defer e.r.lock()()
	evaluation, ok := e.r.store.state.evaluations[sessionID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneEvaluation(evaluation), nil
}

func (e evaluationRepo) Save(_ context.Context, evaluation *models.EvaluationRecord) error {
	defer e.r.lock()()
	st := e.r.store.state
	if existing, ok := st.evaluations[evaluation.SessionID]; ok {
		evaluation.ID = existing.ID
	} else {
		st.nextEvaluationID++
		evaluation.ID = st.nextEvaluationID
	}
	evaluation.UpdatedAt = time.Now()
	st.evaluations[evaluation.SessionID] = cloneEvaluation(evaluation)
	return nil
}
