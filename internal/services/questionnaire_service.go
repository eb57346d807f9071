package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
)

type QuestionnaireStore interface {
	InsertQuestionnaire(ctx context.Context, q *models.Questionnaire) error
	GetQuestionnaire(ctx context.Context, id string) (*models.Questionnaire, error)
	UpdateQuestionnaire(ctx context.Context, q *models.Questionnaire) error
	// DeleteQuestionnaire removes the questionnaire with its questions, options, answers and
	// answer details in one transaction.
	DeleteQuestionnaire(ctx context.Context, id string) (*DeleteResult, error)
	ListQuestionnaires(ctx context.Context, f ListFilter) ([]*models.Questionnaire, int, error)

	ListQuestions(ctx context.Context, questionnaireID string) ([]*models.Question, error)
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	InsertQuestion(ctx context.Context, q *models.Question) error
	UpdateQuestion(ctx context.Context, q *models.Question) error
	DeleteQuestion(ctx context.Context, id string) error
	ReorderQuestions(ctx context.Context, questionnaireID string, order []string) error

	GetOption(ctx context.Context, id string) (*models.Option, error)
	InsertOption(ctx context.Context, o *models.Option) error
	UpdateOption(ctx context.Context, o *models.Option) error
	DeleteOption(ctx context.Context, id string) error

	CountAnswers(ctx context.Context, questionnaireID string) (int, error)
	AddAudit(ctx context.Context, e models.AuditEntry)
	ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

type ListFilter struct {
	PublishedOnly bool
	Limit         int
	Offset        int
}

type DeleteResult struct {
	Questions int `json:"questions"`
	Options   int `json:"options"`
	Answers   int `json:"answers"`
	Details   int `json:"details"`
}

type Page struct {
	Items  []*models.Questionnaire `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// MaxQuestionOrder bounds question positions so a reorder can shift them without
	// overflowing a 32-bit column.
	MaxQuestionOrder = 100000
)

type QuestionnaireService struct {
	store QuestionnaireStore
	cache StatisticsCache
	now   func() time.Time
	idGen func() string
}

func NewQuestionnaireService(store QuestionnaireStore, cache StatisticsCache) *QuestionnaireService {
	return &QuestionnaireService{
		store: store,
		cache: cache,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: newID,
	}
}

type QuestionnaireInput struct {
	Title       *string
	Description *string
	Published   *bool
}

func (s *QuestionnaireService) Create(ctx context.Context, actor *models.User, in QuestionnaireInput) (*models.Questionnaire, error) {
	if actor == nil || actor.ID == "" {
		return nil, NewUnauthorizedError("unauthorized")
	}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, NewInvalidError("title required")
	}
	if in.Published != nil && *in.Published {
		return nil, NewInvalidError("questionnaire has no questions")
	}
	q := &models.Questionnaire{
		ID:        s.idGen(),
		Title:     strings.TrimSpace(*in.Title),
		CreatorID: actor.ID,
		CreatedAt: s.now(),
	}
	if in.Description != nil {
		q.Description = strings.TrimSpace(*in.Description)
	}
	if err := s.store.InsertQuestionnaire(ctx, q); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "create_questionnaire", q.ID, q.Title)
	return q, nil
}

func (s *QuestionnaireService) Update(ctx context.Context, actor *models.User, id string, in QuestionnaireInput) (*models.Questionnaire, error) {
	q, err := s.mustQuestionnaire(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *q
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, NewInvalidError("title required")
		}
		updated.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		updated.Description = strings.TrimSpace(*in.Description)
	}
	if in.Published != nil {
		updated.Published = *in.Published
	}
	if updated.Published && !q.Published {
		if err := s.checkPublishable(ctx, id); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateQuestionnaire(ctx, &updated); err != nil {
		return nil, err
	}
	note := ""
	if updated.Published != q.Published {
		note = "published=" + strconv.FormatBool(updated.Published)
	}
	s.audit(ctx, actor, "update_questionnaire", id, note)
	return &updated, nil
}

// checkPublishable requires at least one question and two options on every question.
func (s *QuestionnaireService) checkPublishable(ctx context.Context, id string) error {
	questions, err := s.store.ListQuestions(ctx, id)
	if err != nil {
		return err
	}
	return publishable(questions)
}

func publishable(questions []*models.Question) error {
	if len(questions) == 0 {
		return NewInvalidError("questionnaire has no questions")
	}
	for _, qu := range questions {
		if len(qu.Options) < 2 {
			return NewInvalidError("question " + qu.ID + " needs at least two options")
		}
	}
	return nil
}

func (s *QuestionnaireService) Delete(ctx context.Context, actor *models.User, id string) (*DeleteResult, error) {
	if _, err := s.mustQuestionnaire(ctx, id); err != nil {
		return nil, err
	}
	res, err := s.store.DeleteQuestionnaire(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.InvalidateStatistics(ctx, id)
	}
	s.audit(ctx, actor, "delete_questionnaire", id, "answers="+strconv.Itoa(res.Answers))
	return res, nil
}

// Get returns the questionnaire with its ordered questions and options. Unpublished
// questionnaires are only visible to admins.
func (s *QuestionnaireService) Get(ctx context.Context, id string, viewerRole models.Role) (*models.Questionnaire, error) {
	q, err := s.mustQuestionnaire(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.Published && viewerRole != models.RoleAdmin {
		return nil, NewNotFoundError("questionnaire not found")
	}
	questions, err := s.store.ListQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Questions = questions
	return q, nil
}

func (s *QuestionnaireService) List(ctx context.Context, viewerRole models.Role, includeDrafts bool, limit, offset int) (*Page, error) {
	if includeDrafts && viewerRole != models.RoleAdmin {
		return nil, NewForbiddenError("forbidden")
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		return nil, NewInvalidError("offset must not be negative")
	}
	items, total, err := s.store.ListQuestionnaires(ctx, ListFilter{PublishedOnly: !includeDrafts, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.Questionnaire{}
	}
	return &Page{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

type QuestionInput struct {
	Content   *string
	Dimension *models.Dimension
	Order     int
	Options   []OptionInput
}

type OptionInput struct {
	Content *string
	Score   *int
}

func (s *QuestionnaireService) AddQuestion(ctx context.Context, actor *models.User, questionnaireID string, in QuestionInput) (*models.Question, error) {
	parent, err := s.mustQuestionnaire(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	if in.Content == nil || strings.TrimSpace(*in.Content) == "" {
		return nil, NewInvalidError("content required")
	}
	if in.Dimension == nil || !in.Dimension.Valid() {
		return nil, NewInvalidError("dimension must be one of EI, SN, TF, JP")
	}
	if in.Order < 0 || in.Order > MaxQuestionOrder {
		return nil, NewInvalidError("order must be between 1 and " + strconv.Itoa(MaxQuestionOrder))
	}
	if err := s.ensureNoAnswers(ctx, questionnaireID); err != nil {
		return nil, err
	}
	if parent.Published && len(in.Options) < 2 {
		return nil, NewConflictError("questions added to a published questionnaire need at least two options")
	}
	order := in.Order
	if order == 0 {
		existing, err := s.store.ListQuestions(ctx, questionnaireID)
		if err != nil {
			return nil, err
		}
		for _, q := range existing {
			if q.Order > order {
				order = q.Order
			}
		}
		order++
		if order > MaxQuestionOrder {
			return nil, NewInvalidError("no free question position; reorder the questionnaire first")
		}
	}
	q := &models.Question{
		ID:              s.idGen(),
		QuestionnaireID: questionnaireID,
		Content:         strings.TrimSpace(*in.Content),
		Dimension:       *in.Dimension,
		Order:           order,
	}
	for _, oi := range in.Options {
		o, err := s.buildOption(q.ID, oi)
		if err != nil {
			return nil, err
		}
		q.Options = append(q.Options, o)
	}
	if err := s.store.InsertQuestion(ctx, q); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "add_question", q.ID, string(q.Dimension))
	return q, nil
}

func (s *QuestionnaireService) buildOption(questionID string, in OptionInput) (*models.Option, error) {
	if in.Content == nil || strings.TrimSpace(*in.Content) == "" {
		return nil, NewInvalidError("option content required")
	}
	if in.Score == nil || !models.ValidScore(*in.Score) {
		return nil, NewInvalidError("score must be -1 or 1")
	}
	return &models.Option{
		ID:         s.idGen(),
		QuestionID: questionID,
		Content:    strings.TrimSpace(*in.Content),
		Score:      *in.Score,
	}, nil
}

func (s *QuestionnaireService) UpdateQuestion(ctx context.Context, actor *models.User, id string, in QuestionInput) (*models.Question, error) {
	q, err := s.mustQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *q
	updated.Options = nil
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, NewInvalidError("content required")
		}
		updated.Content = strings.TrimSpace(*in.Content)
	}
	if in.Dimension != nil && *in.Dimension != q.Dimension {
		if !in.Dimension.Valid() {
			return nil, NewInvalidError("dimension must be one of EI, SN, TF, JP")
		}
		if err := s.ensureNoAnswers(ctx, q.QuestionnaireID); err != nil {
			return nil, err
		}
		updated.Dimension = *in.Dimension
	}
	if err := s.store.UpdateQuestion(ctx, &updated); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "update_question", id, "")
	return &updated, nil
}

func (s *QuestionnaireService) DeleteQuestion(ctx context.Context, actor *models.User, id string) error {
	q, err := s.mustQuestion(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureNoAnswers(ctx, q.QuestionnaireID); err != nil {
		return err
	}
	if err := s.keepPublishable(ctx, q.QuestionnaireID, func(qu *models.Question) *models.Question {
		if qu.ID == id {
			return nil
		}
		return qu
	}); err != nil {
		return err
	}
	if err := s.store.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor, "delete_question", id, "")
	return nil
}

// ReorderQuestions assigns positions 1..n following order, which must list every question of
// the questionnaire exactly once.
func (s *QuestionnaireService) ReorderQuestions(ctx context.Context, actor *models.User, questionnaireID string, order []string) (int, error) {
	if len(order) == 0 {
		return 0, NewInvalidError("order required")
	}
	if _, err := s.mustQuestionnaire(ctx, questionnaireID); err != nil {
		return 0, err
	}
	existing, err := s.store.ListQuestions(ctx, questionnaireID)
	if err != nil {
		return 0, err
	}
	if len(existing) != len(order) {
		return 0, NewInvalidError("order must list every question exactly once")
	}
	known := make(map[string]bool, len(existing))
	for _, q := range existing {
		known[q.ID] = false
	}
	for _, id := range order {
		used, ok := known[id]
		if !ok || used {
			return 0, NewInvalidError("order must list every question exactly once")
		}
		known[id] = true
	}
	if err := s.ensureNoAnswers(ctx, questionnaireID); err != nil {
		return 0, err
	}
	if err := s.store.ReorderQuestions(ctx, questionnaireID, order); err != nil {
		return 0, err
	}
	s.audit(ctx, actor, "reorder_questions", questionnaireID, strconv.Itoa(len(order)))
	return len(order), nil
}

func (s *QuestionnaireService) AddOption(ctx context.Context, actor *models.User, questionID string, in OptionInput) (*models.Option, error) {
	q, err := s.mustQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	o, err := s.buildOption(questionID, in)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoAnswers(ctx, q.QuestionnaireID); err != nil {
		return nil, err
	}
	if err := s.store.InsertOption(ctx, o); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "add_option", o.ID, strconv.Itoa(o.Score))
	return o, nil
}

func (s *QuestionnaireService) UpdateOption(ctx context.Context, actor *models.User, id string, in OptionInput) (*models.Option, error) {
	o, q, err := s.mustOption(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *o
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, NewInvalidError("option content required")
		}
		updated.Content = strings.TrimSpace(*in.Content)
	}
	if in.Score != nil && *in.Score != o.Score {
		if !models.ValidScore(*in.Score) {
			return nil, NewInvalidError("score must be -1 or 1")
		}
		if err := s.ensureNoAnswers(ctx, q.QuestionnaireID); err != nil {
			return nil, err
		}
		updated.Score = *in.Score
	}
	if err := s.store.UpdateOption(ctx, &updated); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "update_option", id, "")
	return &updated, nil
}

func (s *QuestionnaireService) DeleteOption(ctx context.Context, actor *models.User, id string) error {
	_, q, err := s.mustOption(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureNoAnswers(ctx, q.QuestionnaireID); err != nil {
		return err
	}
	if err := s.keepPublishable(ctx, q.QuestionnaireID, func(qu *models.Question) *models.Question {
		if qu.ID != q.ID {
			return qu
		}
		kept := *qu
		kept.Options = nil
		for _, o := range qu.Options {
			if o.ID != id {
				kept.Options = append(kept.Options, o)
			}
		}
		return &kept
	}); err != nil {
		return err
	}
	if err := s.store.DeleteOption(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor, "delete_option", id, "")
	return nil
}

func (s *QuestionnaireService) Audit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListAudit(ctx, limit)
}

func (s *QuestionnaireService) mustQuestionnaire(ctx context.Context, id string) (*models.Questionnaire, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewInvalidError("questionnaire_id required")
	}
	q, err := s.store.GetQuestionnaire(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, NewNotFoundError("questionnaire not found")
	}
	return q, nil
}

func (s *QuestionnaireService) mustQuestion(ctx context.Context, id string) (*models.Question, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewInvalidError("question_id required")
	}
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, NewNotFoundError("question not found")
	}
	return q, nil
}

func (s *QuestionnaireService) mustOption(ctx context.Context, id string) (*models.Option, *models.Question, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil, NewInvalidError("option_id required")
	}
	o, err := s.store.GetOption(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if o == nil {
		return nil, nil, NewNotFoundError("option not found")
	}
	q, err := s.mustQuestion(ctx, o.QuestionID)
	if err != nil {
		return nil, nil, err
	}
	return o, q, nil
}

// keepPublishable rejects a removal that would leave a published questionnaire without a
// complete answer path. edit maps each current question to its post-removal state, nil
// dropping it. Drafts are not checked.
func (s *QuestionnaireService) keepPublishable(ctx context.Context, questionnaireID string, edit func(*models.Question) *models.Question) error {
	parent, err := s.mustQuestionnaire(ctx, questionnaireID)
	if err != nil {
		return err
	}
	if !parent.Published {
		return nil
	}
	questions, err := s.store.ListQuestions(ctx, questionnaireID)
	if err != nil {
		return err
	}
	after := make([]*models.Question, 0, len(questions))
	for _, qu := range questions {
		if e := edit(qu); e != nil {
			after = append(after, e)
		}
	}
	if err := publishable(after); err != nil {
		return NewConflictError("questionnaire is published and would become unanswerable: " + err.Error())
	}
	return nil
}

// ensureNoAnswers rejects structural edits once answers exist so stored answers stay scoreable.
func (s *QuestionnaireService) ensureNoAnswers(ctx context.Context, questionnaireID string) error {
	n, err := s.store.CountAnswers(ctx, questionnaireID)
	if err != nil {
		return err
	}
	if n > 0 {
		return NewConflictError("questionnaire already has answers")
	}
	return nil
}

func (s *QuestionnaireService) audit(ctx context.Context, actor *models.User, action, target, note string) {
	name := "system"
	if actor != nil && actor.Username != "" {
		name = actor.Username
	}
	s.store.AddAudit(ctx, models.AuditEntry{Time: s.now(), Actor: name, Action: action, Target: target, Note: note})
}
