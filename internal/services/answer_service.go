package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
)

type AnswerStore interface {
	GetQuestionnaire(ctx context.Context, id string) (*models.Questionnaire, error)
	ListQuestions(ctx context.Context, questionnaireID string) ([]*models.Question, error)
	HasAnswer(ctx context.Context, userID, questionnaireID string) (bool, error)
	// CreateAnswer writes the answer and its details in one transaction. It returns
	// *DuplicateSubmissionError when (user, questionnaire) already exists and
	// *PartialBatchFailure when a detail row cannot be written.
	CreateAnswer(ctx context.Context, a *models.Answer) error
	GetAnswer(ctx context.Context, id string) (*models.Answer, error)
	ListAnswersByUser(ctx context.Context, userID string) ([]*models.Answer, error)
}

// AnswerSubmitted is emitted after an answer is stored.
type AnswerSubmitted struct {
	AnswerID        string    `json:"answer_id"`
	UserID          string    `json:"user_id"`
	QuestionnaireID string    `json:"questionnaire_id"`
	Type            string    `json:"type"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// AnswerPublisher delivers AnswerSubmitted events. Delivery is best effort.
type AnswerPublisher interface {
	PublishAnswerSubmitted(ctx context.Context, ev AnswerSubmitted)
}

// SubmissionObserver records the outcome of every submission attempt.
type SubmissionObserver interface {
	ObserveSubmission(outcome string)
}

const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

type AnswerService struct {
	store     AnswerStore
	publisher AnswerPublisher
	cache     StatisticsCache
	observer  SubmissionObserver
	now       func() time.Time
	idGen     func() string
}

type AnswerOption func(*AnswerService)

func WithPublisher(p AnswerPublisher) AnswerOption {
	return func(s *AnswerService) { s.publisher = p }
}

func WithStatisticsCache(c StatisticsCache) AnswerOption {
	return func(s *AnswerService) { s.cache = c }
}

func WithSubmissionObserver(o SubmissionObserver) AnswerOption {
	return func(s *AnswerService) { s.observer = o }
}

func NewAnswerService(store AnswerStore, opts ...AnswerOption) *AnswerService {
	s := &AnswerService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: newID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SubmitRequest struct {
	UserID          string
	QuestionnaireID string
	Choices         []models.AnswerDetail
}

type SubmitResult struct {
	AnswerID  string        `json:"answer_id"`
	Type      string        `json:"type"`
	Sums      DimensionSums `json:"sums"`
	CreatedAt time.Time     `json:"created_at"`
}

// Submit validates and stores one user's answer to a questionnaire. The storage unique
// constraint on (user, questionnaire) is authoritative; HasAnswer only short-circuits.
func (s *AnswerService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	res, err := s.submit(ctx, req)
	s.observe(err)
	return res, err
}

func (s *AnswerService) submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, NewUnauthorizedError("unauthorized")
	}
	if strings.TrimSpace(req.QuestionnaireID) == "" {
		return nil, NewInvalidError("questionnaire_id required")
	}
	q, err := s.store.GetQuestionnaire(ctx, req.QuestionnaireID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, NewNotFoundError("questionnaire not found")
	}
	if !q.Published {
		return nil, NewInvalidError("questionnaire not published")
	}
	questions, err := s.store.ListQuestions(ctx, req.QuestionnaireID)
	if err != nil {
		return nil, err
	}
	idx := NewSchemaIndex(questions)
	if err := validateChoices(idx, req.Choices); err != nil {
		return nil, err
	}

	exists, err := s.store.HasAnswer(ctx, req.UserID, req.QuestionnaireID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &DuplicateSubmissionError{UserID: req.UserID, QuestionnaireID: req.QuestionnaireID}
	}

	sums, err := TallyDetails(req.Choices, idx)
	if err != nil {
		return nil, err
	}
	ans := &models.Answer{
		ID:              s.idGen(),
		UserID:          req.UserID,
		QuestionnaireID: req.QuestionnaireID,
		CreatedAt:       s.now(),
		Details:         append([]models.AnswerDetail(nil), req.Choices...),
	}
	if err := s.store.CreateAnswer(ctx, ans); err != nil {
		return nil, err
	}
	code := sums.Code()
	if s.cache != nil {
		s.cache.InvalidateStatistics(ctx, req.QuestionnaireID)
	}
	if s.publisher != nil {
		s.publisher.PublishAnswerSubmitted(ctx, AnswerSubmitted{
			AnswerID:        ans.ID,
			UserID:          ans.UserID,
			QuestionnaireID: ans.QuestionnaireID,
			Type:            code,
			SubmittedAt:     ans.CreatedAt,
		})
	}
	return &SubmitResult{AnswerID: ans.ID, Type: code, Sums: sums, CreatedAt: ans.CreatedAt}, nil
}

func (s *AnswerService) observe(err error) {
	if s.observer == nil {
		return
	}
	var dup *DuplicateSubmissionError
	switch {
	case err == nil:
		s.observer.ObserveSubmission(OutcomeAccepted)
	case errors.As(err, &dup):
		s.observer.ObserveSubmission(OutcomeDuplicate)
	default:
		if _, ok := AsServiceError(err); ok {
			s.observer.ObserveSubmission(OutcomeRejected)
			return
		}
		s.observer.ObserveSubmission(OutcomeFailed)
	}
}

// validateChoices requires exactly one valid option for every question of the questionnaire.
func validateChoices(idx *SchemaIndex, choices []models.AnswerDetail) error {
	if idx.QuestionCount() == 0 {
		return NewInvalidError("questionnaire has no questions")
	}
	seen := make(map[string]struct{}, len(choices))
	for _, c := range choices {
		if strings.TrimSpace(c.QuestionID) == "" || strings.TrimSpace(c.OptionID) == "" {
			return NewInvalidError("question_id and option_id required")
		}
		if _, ok := idx.QuestionDimension(c.QuestionID); !ok {
			return NewInvalidError("question " + c.QuestionID + " is not part of this questionnaire")
		}
		if !idx.OptionBelongsTo(c.OptionID, c.QuestionID) {
			return NewInvalidError("option " + c.OptionID + " does not belong to question " + c.QuestionID)
		}
		if _, dup := seen[c.QuestionID]; dup {
			return NewInvalidError("question " + c.QuestionID + " answered more than once")
		}
		seen[c.QuestionID] = struct{}{}
	}
	if len(seen) != idx.QuestionCount() {
		return NewInvalidError("every question must be answered")
	}
	return nil
}

// AnswerView is a stored answer with its computed type. Error is set, and Type left empty,
// when a detail no longer resolves against the questionnaire.
type AnswerView struct {
	*models.Answer
	Type  string        `json:"type"`
	Sums  DimensionSums `json:"sums"`
	Error string        `json:"error,omitempty"`
}

// Get loads an answer visible to the viewer: its owner or an admin.
func (s *AnswerService) Get(ctx context.Context, answerID, viewerID string, viewerRole models.Role) (*models.Answer, error) {
	if strings.TrimSpace(answerID) == "" {
		return nil, NewInvalidError("answer_id required")
	}
	a, err := s.store.GetAnswer(ctx, answerID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, NewNotFoundError("answer not found")
	}
	if a.UserID != viewerID && viewerRole != models.RoleAdmin {
		return nil, NewForbiddenError("forbidden")
	}
	return a, nil
}

// ComputeType rescores a stored answer against the current questionnaire schema. It never
// writes and returns the same code for the same stored state.
func (s *AnswerService) ComputeType(ctx context.Context, answerID, viewerID string, viewerRole models.Role) (*AnswerView, error) {
	a, err := s.Get(ctx, answerID, viewerID, viewerRole)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, a.QuestionnaireID)
	if err != nil {
		return nil, err
	}
	sums, err := TallyDetails(a.Details, NewSchemaIndex(questions))
	if err != nil {
		return nil, err
	}
	return &AnswerView{Answer: a, Type: sums.Code(), Sums: sums}, nil
}

// ListMine returns the caller's answers, each scored. An answer that no longer scores is
// still listed, carrying the unresolved reference in Error.
func (s *AnswerService) ListMine(ctx context.Context, userID string) ([]AnswerView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, NewUnauthorizedError("unauthorized")
	}
	answers, err := s.store.ListAnswersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	indexes := map[string]*SchemaIndex{}
	out := make([]AnswerView, 0, len(answers))
	for _, a := range answers {
		idx, ok := indexes[a.QuestionnaireID]
		if !ok {
			questions, err := s.store.ListQuestions(ctx, a.QuestionnaireID)
			if err != nil {
				return nil, err
			}
			idx = NewSchemaIndex(questions)
			indexes[a.QuestionnaireID] = idx
		}
		view := AnswerView{Answer: a}
		sums, err := TallyDetails(a.Details, idx)
		var missing *ReferenceNotFoundError
		switch {
		case err == nil:
			view.Type = sums.Code()
			view.Sums = sums
		case errors.As(err, &missing):
			view.Error = missing.Error()
		default:
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}
