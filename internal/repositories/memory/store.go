package memory

import (
	"bytes"
	"maps"
	"slices"
	"sync"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"gorm.io/datatypes"
)

type responseKey struct {
	sessionID uint
	itemID    uint
}

// state is everything the store holds. Entries are never mutated in place,
// writers replace them, so a shallow copy of the maps is a valid snapshot.
type state struct {
	items       map[uint]*models.AssessmentItem
	rubrics     map[uint]*models.Rubric
	sessions    map[uint]*models.AssessmentSession
	tokens      map[string]uint
	responses   map[responseKey]*models.ResponseRecord
	evaluations map[uint]*models.EvaluationRecord

	nextItemID       uint
	nextOptionID     uint
	nextRubricID     uint
	nextSessionID    uint
	nextResponseID   uint
	nextEvaluationID uint
}

func newState() *state {
	return &state{
		items:       map[uint]*models.AssessmentItem{},
		rubrics:     map[uint]*models.Rubric{},
		sessions:    map[uint]*models.AssessmentSession{},
		tokens:      map[string]uint{},
		responses:   map[responseKey]*models.ResponseRecord{},
		evaluations: map[uint]*models.EvaluationRecord{},
	}
}

func (s *state) snapshot() *state {
	c := *s
	c.items = maps.Clone(s.items)
	c.rubrics = maps.Clone(s.rubrics)
	c.sessions = maps.Clone(s.sessions)
	c.tokens = maps.Clone(s.tokens)
	c.responses = maps.Clone(s.responses)
	c.evaluations = maps.Clone(s.evaluations)
	return &c
}

// Store is a process-local storage backend used for tests and single-node
// demos. A transaction holds the store mutex for its whole duration.
type Store struct {
	mu    sync.Mutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

func cloneItem(in *models.AssessmentItem) *models.AssessmentItem {
	out := *in
	out.Options = slices.Clone(in.Options)
	out.Template = datatypes.NewJSONType(in.Template.Data())
	refs := in.References.Data()
	out.References = datatypes.NewJSONType(models.References{
		First:     cloneReference(refs.First),
		Appeal:    cloneReference(refs.Appeal),
		Cassation: cloneReference(refs.Cassation),
	})
	out.RubricID = clonePtr(in.RubricID)
	return &out
}

func cloneReference(in *models.Reference) *models.Reference {
	if in == nil {
		return nil
	}
	out := *in
	out.FetchedAt = clonePtr(in.FetchedAt)
	return &out
}

func cloneRubric(in *models.Rubric) *models.Rubric {
	out := *in
	groups := make([]models.RubricGroup, len(in.Groups))
	for i, g := range in.Groups {
		g.Criteria = slices.Clone(g.Criteria)
		groups[i] = g
	}
	out.Groups = datatypes.NewJSONSlice(groups)
	return &out
}

func cloneSession(in *models.AssessmentSession) *models.AssessmentSession {
	out := *in
	out.ItemIDs = datatypes.NewJSONSlice(slices.Clone([]uint(in.ItemIDs)))
	out.FinishedAt = clonePtr(in.FinishedAt)
	out.LastAutosaveAt = clonePtr(in.LastAutosaveAt)
	return &out
}

func cloneResponse(in *models.ResponseRecord) *models.ResponseRecord {
	out := *in
	out.SelectedOptionID = clonePtr(in.SelectedOptionID)
	return &out
}

func cloneEvaluation(in *models.EvaluationRecord) *models.EvaluationRecord {
	out := *in
	out.RubricID = clonePtr(in.RubricID)
	out.CompletedAt = clonePtr(in.CompletedAt)
	if in.GraderParams != nil {
		out.GraderParams = maps.Clone(in.GraderParams)
	}
	out.RawOutput = bytes.Clone(in.RawOutput)

	scores := in.Scores.Data()
	groups := make([]models.GroupScore, len(scores.Groups))
	for i, g := range scores.Groups {
		g.Criteria = slices.Clone(g.Criteria)
		groups[i] = g
	}
	scores.Groups = groups
	out.Scores = datatypes.NewJSONType(scores)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
