package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
)

type answerKey struct{ user, questionnaire string }

// stubAnswerStore mimics the unique (user, questionnaire) constraint under a mutex.
type stubAnswerStore struct {
	mu             sync.Mutex
	questionnaires map[string]*models.Questionnaire
	questions      map[string][]*models.Question
	answers        map[string]*models.Answer
	byKey          map[answerKey]string

	// hideExisting makes HasAnswer always report false so the insert path is exercised.
	hideExisting bool
	failDetail   bool
}

func newStubAnswerStore() *stubAnswerStore {
	return &stubAnswerStore{
		questionnaires: map[string]*models.Questionnaire{},
		questions:      map[string][]*models.Question{},
		answers:        map[string]*models.Answer{},
		byKey:          map[answerKey]string{},
	}
}

func (s *stubAnswerStore) GetQuestionnaire(_ context.Context, id string) (*models.Questionnaire, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.questionnaires[id]; ok {
		copy := *q
		return &copy, nil
	}
	return nil, nil
}

func (s *stubAnswerStore) ListQuestions(_ context.Context, qid string) ([]*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions[qid], nil
}

func (s *stubAnswerStore) HasAnswer(_ context.Context, userID, qid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hideExisting {
		return false, nil
	}
	_, ok := s.byKey[answerKey{userID, qid}]
	return ok, nil
}

func (s *stubAnswerStore) CreateAnswer(_ context.Context, a *models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := answerKey{a.UserID, a.QuestionnaireID}
	if _, ok := s.byKey[k]; ok {
		return &DuplicateSubmissionError{UserID: a.UserID, QuestionnaireID: a.QuestionnaireID}
	}
	if s.failDetail {
		return &PartialBatchFailure{AnswerID: a.ID, Inserted: 1, Err: errors.New("disk full")}
	}
	copy := *a
	s.answers[a.ID] = &copy
	s.byKey[k] = a.ID
	return nil
}

func (s *stubAnswerStore) GetAnswer(_ context.Context, id string) (*models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.answers[id]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, nil
}

func (s *stubAnswerStore) ListAnswersByUser(_ context.Context, userID string) ([]*models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Answer
	for _, a := range s.answers {
		if a.UserID == userID {
			copy := *a
			out = append(out, &copy)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []AnswerSubmitted
}

func (p *recordingPublisher) PublishAnswerSubmitted(_ context.Context, ev AnswerSubmitted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *countingObserver) ObserveSubmission(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[outcome]++
}

func newSeededAnswerService() (*AnswerService, *stubAnswerStore) {
	store := newStubAnswerStore()
	store.questionnaires["Q1"] = &models.Questionnaire{ID: "Q1", Published: true}
	store.questions["Q1"] = fourAxisSchema()
	svc := NewAnswerService(store)
	svc.now = func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC) }
	return svc, store
}

func TestSubmitComputesType(t *testing.T) {
	svc, store := newSeededAnswerService()
	pub := &recordingPublisher{}
	cache := &memStatsCache{entries: map[string]*Statistics{"Q1": {Total: 9}}}
	svc.publisher = pub
	svc.cache = cache
	svc.idGen = func() string { return "A1" }

	res, err := svc.Submit(context.Background(), SubmitRequest{UserID: "u1", QuestionnaireID: "Q1", Choices: pick("ENFP")})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.AnswerID != "A1" || res.Type != "ENFP" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Sums != (DimensionSums{EI: 1, SN: -1, TF: -1, JP: -1}) {
		t.Fatalf("unexpected sums %+v", res.Sums)
	}
	if _, ok := store.answers["A1"]; !ok {
		t.Fatalf("expected stored answer")
	}
	if len(pub.events) != 1 || pub.events[0].Type != "ENFP" || pub.events[0].AnswerID != "A1" {
		t.Fatalf("unexpected events %+v", pub.events)
	}
	if _, ok := cache.entries["Q1"]; ok {
		t.Fatalf("expected cache invalidated")
	}
}

func TestSubmitRejectsDuplicate(t *testing.T) {
	svc, store := newSeededAnswerService()
	ctx := context.Background()
	req := SubmitRequest{UserID: "u1", QuestionnaireID: "Q1", Choices: pick("INTJ")}
	if _, err := svc.Submit(ctx, req); err != nil {
		t.Fatalf("first Submit returned error: %v", err)
	}
	_, err := svc.Submit(ctx, req)
	var dup *DuplicateSubmissionError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateSubmissionError, got %v", err)
	}
	if len(store.answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(store.answers))
	}

	// the storage constraint still catches a duplicate that slips past the fast path
	store.hideExisting = true
	if _, err := svc.Submit(ctx, req); !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateSubmissionError from store, got %v", err)
	}
}

func TestSubmitConcurrentSameKey(t *testing.T) {
	svc, store := newSeededAnswerService()
	store.hideExisting = true
	obs := &countingObserver{outcomes: map[string]int{}}
	svc.observer = obs

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, duplicates := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), SubmitRequest{UserID: "u1", QuestionnaireID: "Q1", Choices: pick("ISTP")})
			mu.Lock()
			defer mu.Unlock()
			var dup *DuplicateSubmissionError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &dup):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if succeeded != 1 || duplicates != n-1 {
		t.Fatalf("succeeded=%d duplicates=%d, want 1 and %d", succeeded, duplicates, n-1)
	}
	if len(store.answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(store.answers))
	}
	if obs.outcomes[OutcomeAccepted] != 1 || obs.outcomes[OutcomeDuplicate] != n-1 {
		t.Fatalf("unexpected outcomes %v", obs.outcomes)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, store := newSeededAnswerService()
	store.questionnaires["DRAFT"] = &models.Questionnaire{ID: "DRAFT"}
	store.questionnaires["EMPTY"] = &models.Questionnaire{ID: "EMPTY", Published: true}
	ctx := context.Background()

	full := pick("INTJ")
	cases := []struct {
		name string
		req  SubmitRequest
		code ErrorCode
	}{
		{"no user", SubmitRequest{QuestionnaireID: "Q1", Choices: full}, ErrorUnauthorized},
		{"missing questionnaire", SubmitRequest{UserID: "u", QuestionnaireID: "nope", Choices: full}, ErrorNotFound},
		{"unpublished", SubmitRequest{UserID: "u", QuestionnaireID: "DRAFT", Choices: full}, ErrorInvalid},
		{"no questions", SubmitRequest{UserID: "u", QuestionnaireID: "EMPTY"}, ErrorInvalid},
		{"incomplete", SubmitRequest{UserID: "u", QuestionnaireID: "Q1", Choices: full[:3]}, ErrorInvalid},
		{"empty", SubmitRequest{UserID: "u", QuestionnaireID: "Q1"}, ErrorInvalid},
		{"foreign question", SubmitRequest{UserID: "u", QuestionnaireID: "Q1", Choices: append(full[:3:3], models.AnswerDetail{QuestionID: "other", OptionID: "x"})}, ErrorInvalid},
		{"option of another question", SubmitRequest{UserID: "u", QuestionnaireID: "Q1", Choices: append(full[:3:3], models.AnswerDetail{QuestionID: "qJP", OptionID: "qEI+"})}, ErrorInvalid},
		{"repeated question", SubmitRequest{UserID: "u", QuestionnaireID: "Q1", Choices: append(full[:3:3], full[0])}, ErrorInvalid},
	}
	for _, c := range cases {
		_, err := svc.Submit(ctx, c.req)
		se, ok := AsServiceError(err)
		if !ok || se.Code != c.code {
			t.Fatalf("%s: expected %s error, got %v", c.name, c.code, err)
		}
	}
	if len(store.answers) != 0 {
		t.Fatalf("no answer should be stored, got %d", len(store.answers))
	}
}

func TestSubmitPartialBatchFailure(t *testing.T) {
	svc, store := newSeededAnswerService()
	store.failDetail = true
	pub := &recordingPublisher{}
	svc.publisher = pub

	_, err := svc.Submit(context.Background(), SubmitRequest{UserID: "u1", QuestionnaireID: "Q1", Choices: pick("INTJ")})
	var pbf *PartialBatchFailure
	if !errors.As(err, &pbf) {
		t.Fatalf("expected PartialBatchFailure, got %v", err)
	}
	if len(store.answers) != 0 {
		t.Fatalf("no answer should be visible")
	}
	if len(pub.events) != 0 {
		t.Fatalf("no event should be published on failure")
	}
}

func TestComputeTypeForStoredAnswer(t *testing.T) {
	svc, store := newSeededAnswerService()
	ctx := context.Background()
	res, err := svc.Submit(ctx, SubmitRequest{UserID: "owner", QuestionnaireID: "Q1", Choices: pick("ESTJ")})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	first, err := svc.ComputeType(ctx, res.AnswerID, "owner", models.RoleUser)
	if err != nil {
		t.Fatalf("ComputeType returned error: %v", err)
	}
	second, err := svc.ComputeType(ctx, res.AnswerID, "admin", models.RoleAdmin)
	if err != nil {
		t.Fatalf("ComputeType as admin returned error: %v", err)
	}
	if first.Type != "ESTJ" || second.Type != first.Type {
		t.Fatalf("types = %s, %s, want ESTJ twice", first.Type, second.Type)
	}

	if _, err := svc.ComputeType(ctx, res.AnswerID, "stranger", models.RoleUser); err == nil {
		t.Fatalf("expected forbidden error")
	} else if se, ok := AsServiceError(err); !ok || se.Code != ErrorForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.ComputeType(ctx, "missing", "owner", models.RoleUser); err == nil {
		t.Fatalf("expected not found error")
	}

	// a question removed behind the service's back surfaces as a reference error
	store.questions["Q1"] = store.questions["Q1"][1:]
	_, err = svc.ComputeType(ctx, res.AnswerID, "owner", models.RoleUser)
	var ref *ReferenceNotFoundError
	if !errors.As(err, &ref) || ref.Kind != "question" || ref.ID != "qEI" {
		t.Fatalf("expected missing question qEI, got %v", err)
	}
}

func TestListMine(t *testing.T) {
	svc, store := newSeededAnswerService()
	store.questionnaires["Q2"] = &models.Questionnaire{ID: "Q2", Published: true}
	store.questions["Q2"] = fourAxisSchema()
	ctx := context.Background()
	n := 0
	svc.idGen = func() string { n++; return fmt.Sprintf("A%d", n) }

	for _, qid := range []string{"Q1", "Q2"} {
		if _, err := svc.Submit(ctx, SubmitRequest{UserID: "me", QuestionnaireID: qid, Choices: pick("INFJ")}); err != nil {
			t.Fatalf("Submit %s returned error: %v", qid, err)
		}
	}
	if _, err := svc.Submit(ctx, SubmitRequest{UserID: "other", QuestionnaireID: "Q1", Choices: pick("ESTP")}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	mine, err := svc.ListMine(ctx, "me")
	if err != nil {
		t.Fatalf("ListMine returned error: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("len = %d, want 2", len(mine))
	}
	for _, v := range mine {
		if v.Type != "INFJ" || v.UserID != "me" || v.Error != "" {
			t.Fatalf("unexpected view %+v", v)
		}
	}

	// drop the options of Q2's EI question behind the service's back
	broken := fourAxisSchema()
	broken[0].Options = nil
	store.mu.Lock()
	store.questions["Q2"] = broken
	store.mu.Unlock()
	mine, err = svc.ListMine(ctx, "me")
	if err != nil {
		t.Fatalf("ListMine with a broken answer returned error: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("len = %d, want 2", len(mine))
	}
	for _, v := range mine {
		switch v.QuestionnaireID {
		case "Q1":
			if v.Type != "INFJ" || v.Error != "" {
				t.Fatalf("intact answer = %+v", v)
			}
		case "Q2":
			if v.Type != "" || v.Error != `option "qEI-" not found` {
				t.Fatalf("broken answer type=%q error=%q", v.Type, v.Error)
			}
			_, err := svc.ComputeType(ctx, v.ID, "me", models.RoleUser)
			var missing *ReferenceNotFoundError
			if !errors.As(err, &missing) || v.Error != missing.Error() {
				t.Fatalf("ComputeType err = %v, want %s", err, v.Error)
			}
		}
	}
	if _, err := svc.ListMine(ctx, ""); err == nil {
		t.Fatalf("expected unauthorized error")
	}
}
