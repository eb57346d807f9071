package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
)

type stubStatsStore struct {
	questionnaires map[string]*models.Questionnaire
	questions      map[string][]*models.Question
	answers        map[string][]*models.Answer
	streamed       int

	// afterStream runs once the answers have been handed out, before the fold returns.
	afterStream func()
}

func newStubStatsStore() *stubStatsStore {
	return &stubStatsStore{
		questionnaires: map[string]*models.Questionnaire{},
		questions:      map[string][]*models.Question{},
		answers:        map[string][]*models.Answer{},
	}
}

func (s *stubStatsStore) GetQuestionnaire(_ context.Context, id string) (*models.Questionnaire, error) {
	if q, ok := s.questionnaires[id]; ok {
		copy := *q
		return &copy, nil
	}
	return nil, nil
}

func (s *stubStatsStore) ListQuestions(_ context.Context, qid string) ([]*models.Question, error) {
	return s.questions[qid], nil
}

func (s *stubStatsStore) StreamAnswers(_ context.Context, qid string, fn func(*models.Answer) error) error {
	for _, a := range s.answers[qid] {
		s.streamed++
		if err := fn(a); err != nil {
			return err
		}
	}
	if s.afterStream != nil {
		s.afterStream()
	}
	return nil
}

type memStatsCache struct {
	entries     map[string]*Statistics
	gens        map[string]int64
	invalidated []string
}

func (c *memStatsCache) GetStatistics(_ context.Context, qid string) (*Statistics, int64, bool) {
	st, ok := c.entries[qid]
	return st, c.gens[qid], ok
}

func (c *memStatsCache) SetStatistics(_ context.Context, qid string, gen int64, st *Statistics) {
	if gen < 0 || gen != c.gens[qid] {
		return
	}
	c.entries[qid] = st
}

func (c *memStatsCache) InvalidateStatistics(_ context.Context, qid string) {
	if c.gens == nil {
		c.gens = map[string]int64{}
	}
	c.gens[qid]++
	delete(c.entries, qid)
	c.invalidated = append(c.invalidated, qid)
}

// pick maps a code such as "INTJ" to the option choices of fourAxisSchema.
func pick(code string) []models.AnswerDetail {
	out := make([]models.AnswerDetail, 0, 4)
	for i, d := range models.Dimensions {
		pos, _ := d.Poles()
		qid := "q" + string(d)
		opt := qid + "-"
		if code[i] == pos {
			opt = qid + "+"
		}
		out = append(out, models.AnswerDetail{QuestionID: qid, OptionID: opt})
	}
	return out
}

func seedStats(store *stubStatsStore) time.Time {
	store.questionnaires["Q1"] = &models.Questionnaire{ID: "Q1", Published: true}
	store.questions["Q1"] = fourAxisSchema()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	latest := base.Add(2 * time.Hour)
	store.answers["Q1"] = []*models.Answer{
		{ID: "a1", UserID: "u1", QuestionnaireID: "Q1", CreatedAt: base, Details: pick("INTJ")},
		{ID: "a2", UserID: "u2", QuestionnaireID: "Q1", CreatedAt: latest, Details: pick("INTJ")},
		{ID: "a3", UserID: "u3", QuestionnaireID: "Q1", CreatedAt: base.Add(time.Hour), Details: pick("ENFP")},
	}
	return latest
}

func TestAggregateHistogram(t *testing.T) {
	store := newStubStatsStore()
	latest := seedStats(store)
	svc := NewStatisticsService(store, nil)

	st, err := svc.Aggregate(context.Background(), "Q1")
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if st.Total != 3 {
		t.Fatalf("total = %d, want 3", st.Total)
	}
	if len(st.Distribution) != 2 || st.Distribution["INTJ"] != 2 || st.Distribution["ENFP"] != 1 {
		t.Fatalf("unexpected distribution %v", st.Distribution)
	}
	if st.LastSubmittedAt == nil || !st.LastSubmittedAt.Equal(latest) {
		t.Fatalf("last submitted = %v, want %v", st.LastSubmittedAt, latest)
	}
	if st.Failures != 0 {
		t.Fatalf("failures = %d, want 0", st.Failures)
	}
}

func TestAggregateTimeseries(t *testing.T) {
	store := newStubStatsStore()
	seedStats(store)
	store.answers["Q1"] = append(store.answers["Q1"], &models.Answer{
		ID: "a4", UserID: "u4", QuestionnaireID: "Q1",
		CreatedAt: time.Date(2025, 3, 2, 23, 30, 0, 0, time.UTC), Details: pick("ESTJ"),
	})
	st, err := NewStatisticsService(store, nil).Aggregate(context.Background(), "Q1")
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	want := []DailyCount{{Date: "2025-03-01", Count: 3}, {Date: "2025-03-02", Count: 1}}
	if len(st.Timeseries) != len(want) {
		t.Fatalf("timeseries = %+v, want %+v", st.Timeseries, want)
	}
	for i := range want {
		if st.Timeseries[i] != want[i] {
			t.Fatalf("timeseries[%d] = %+v, want %+v", i, st.Timeseries[i], want[i])
		}
	}
}

func TestAggregateEmpty(t *testing.T) {
	store := newStubStatsStore()
	store.questionnaires["Q1"] = &models.Questionnaire{ID: "Q1"}
	svc := NewStatisticsService(store, nil)

	st, err := svc.Aggregate(context.Background(), "Q1")
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if st.Total != 0 || len(st.Distribution) != 0 || st.LastSubmittedAt != nil {
		t.Fatalf("expected empty statistics, got %+v", st)
	}
	if _, err := svc.Aggregate(context.Background(), "missing"); err == nil {
		t.Fatalf("expected not found error")
	} else if se, ok := AsServiceError(err); !ok || se.Code != ErrorNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestAggregateIsolatesFailures(t *testing.T) {
	store := newStubStatsStore()
	seedStats(store)
	for i := 0; i < 7; i++ {
		store.answers["Q1"] = append(store.answers["Q1"], &models.Answer{
			ID:        "bad" + string(rune('0'+i)),
			CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			Details:   []models.AnswerDetail{{QuestionID: "deleted", OptionID: "x"}},
		})
	}
	svc := NewStatisticsService(store, nil)

	st, err := svc.Aggregate(context.Background(), "Q1")
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if st.Total != 10 {
		t.Fatalf("total = %d, want 10", st.Total)
	}
	if st.Failures != 7 {
		t.Fatalf("failures = %d, want 7", st.Failures)
	}
	if len(st.FailureReasons) != maxFailureReasons {
		t.Fatalf("reasons = %d, want %d", len(st.FailureReasons), maxFailureReasons)
	}
	if !strings.Contains(st.FailureReasons[0], "bad0") || !strings.Contains(st.FailureReasons[0], "deleted") {
		t.Fatalf("unexpected first reason %q", st.FailureReasons[0])
	}
	if st.Distribution["INTJ"] != 2 || st.Distribution["ENFP"] != 1 {
		t.Fatalf("unexpected distribution %v", st.Distribution)
	}
}

func TestAggregateUsesCache(t *testing.T) {
	store := newStubStatsStore()
	seedStats(store)
	cache := &memStatsCache{entries: map[string]*Statistics{}}
	svc := NewStatisticsService(store, cache)

	if _, err := svc.Aggregate(context.Background(), "Q1"); err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if _, err := svc.Aggregate(context.Background(), "Q1"); err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if store.streamed != 3 {
		t.Fatalf("streamed = %d, want 3 (second call cached)", store.streamed)
	}
	if _, ok := cache.entries["Q1"]; !ok {
		t.Fatalf("expected cached entry")
	}
}

func TestAggregateDoesNotCacheAcrossInvalidation(t *testing.T) {
	store := newStubStatsStore()
	seedStats(store)
	cache := &memStatsCache{entries: map[string]*Statistics{}}
	svc := NewStatisticsService(store, cache)
	ctx := context.Background()

	// a submission commits and invalidates while the fold is still running
	store.afterStream = func() {
		store.afterStream = nil
		store.answers["Q1"] = append(store.answers["Q1"], &models.Answer{
			ID: "a5", UserID: "u5", QuestionnaireID: "Q1", CreatedAt: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), Details: pick("ISFP"),
		})
		cache.InvalidateStatistics(ctx, "Q1")
	}
	first, err := svc.Aggregate(ctx, "Q1")
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if _, ok := cache.entries["Q1"]; ok {
		t.Fatalf("result folded before the invalidation must not be cached")
	}

	second, err := svc.Aggregate(ctx, "Q1")
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if second.Total != first.Total+1 || second.Distribution["ISFP"] != 1 {
		t.Fatalf("second aggregate = %+v, want the new answer counted", second)
	}
	if cached, ok := cache.entries["Q1"]; !ok || cached.Total != second.Total {
		t.Fatalf("expected the fresh result cached, got %+v", cached)
	}
}

func TestExportCSVFormats(t *testing.T) {
	store := newStubStatsStore()
	seedStats(store)
	svc := NewStatisticsService(store, nil)
	ctx := context.Background()

	res, err := svc.ExportCSV(ctx, "Q1", "")
	if err != nil {
		t.Fatalf("ExportCSV types returned error: %v", err)
	}
	want := "type,count\nINTJ,2\nENFP,1\n"
	if string(res.Data) != want {
		t.Fatalf("types csv = %q, want %q", res.Data, want)
	}

	res, err = svc.ExportCSV(ctx, "Q1", "answers")
	if err != nil {
		t.Fatalf("ExportCSV answers returned error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(res.Data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("answers csv lines = %d, want 4: %q", len(lines), res.Data)
	}
	if lines[0] != "answer_id,user_id,submitted_at,type" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[3] != "a3,u3,2025-03-01T13:00:00Z,ENFP" {
		t.Fatalf("unexpected row %q", lines[3])
	}

	if _, err := svc.ExportCSV(ctx, "Q1", "xml"); err == nil {
		t.Fatalf("expected invalid format error")
	}
}
