package services

import (
	"context"
	"strings"

	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
)

type StatisticsStore interface {
	GetQuestionnaire(ctx context.Context, id string) (*models.Questionnaire, error)
	ListQuestions(ctx context.Context, questionnaireID string) ([]*models.Question, error)
	// StreamAnswers calls fn once per answer of the questionnaire, with its details loaded,
	// in submission order. Returning an error from fn stops the stream.
	StreamAnswers(ctx context.Context, questionnaireID string, fn func(*models.Answer) error) error
}

// StatisticsCache is a best-effort cache of aggregation results. Implementations swallow
// their own transport errors.
//
// Each questionnaire carries a generation that InvalidateStatistics advances. A miss
// reports the generation current at read time; SetStatistics drops the value when the
// generation has moved since, so a fold that raced a submission never overwrites the
// invalidation. A negative generation means the cache could not tell and must not be filled.
type StatisticsCache interface {
	GetStatistics(ctx context.Context, questionnaireID string) (stats *Statistics, gen int64, ok bool)
	SetStatistics(ctx context.Context, questionnaireID string, gen int64, stats *Statistics)
	InvalidateStatistics(ctx context.Context, questionnaireID string)
}

type StatisticsService struct {
	store StatisticsStore
	cache StatisticsCache
}

func NewStatisticsService(store StatisticsStore, cache StatisticsCache) *StatisticsService {
	return &StatisticsService{store: store, cache: cache}
}

// Aggregate folds every stored answer of the questionnaire into a type histogram. Answers
// that fail to score are counted in Failures and do not stop the fold.
func (s *StatisticsService) Aggregate(ctx context.Context, questionnaireID string) (*Statistics, error) {
	if strings.TrimSpace(questionnaireID) == "" {
		return nil, NewInvalidError("questionnaire_id required")
	}
	var gen int64
	if s.cache != nil {
		st, g, ok := s.cache.GetStatistics(ctx, questionnaireID)
		if ok {
			return st, nil
		}
		gen = g
	}
	agg, err := s.fold(ctx, questionnaireID, nil)
	if err != nil {
		return nil, err
	}
	res := agg.Result()
	if s.cache != nil {
		s.cache.SetStatistics(ctx, questionnaireID, gen, res)
	}
	return res, nil
}

func (s *StatisticsService) fold(ctx context.Context, questionnaireID string, each func(*models.Answer, string)) (*Aggregator, error) {
	q, err := s.store.GetQuestionnaire(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, NewNotFoundError("questionnaire not found")
	}
	questions, err := s.store.ListQuestions(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	agg := NewAggregator(questionnaireID, NewSchemaIndex(questions))
	err = s.store.StreamAnswers(ctx, questionnaireID, func(a *models.Answer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		// scoring failures are recorded by the aggregator
		code, _ := agg.Add(a)
		if each != nil {
			each(a, code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

type StatisticsExport struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportCSV renders statistics as CSV. format "types" (default) yields the histogram,
// "answers" yields one row per stored answer with its computed type.
func (s *StatisticsService) ExportCSV(ctx context.Context, questionnaireID, format string) (*StatisticsExport, error) {
	if strings.TrimSpace(questionnaireID) == "" {
		return nil, NewInvalidError("questionnaire_id required")
	}
	if format == "" {
		format = "types"
	}
	switch format {
	case "types":
		st, err := s.Aggregate(ctx, questionnaireID)
		if err != nil {
			return nil, err
		}
		b, err := ExportTypesCSV(st)
		if err != nil {
			return nil, err
		}
		return &StatisticsExport{Filename: "types.csv", ContentType: "text/csv; charset=utf-8", Data: b}, nil
	case "answers":
		var rows []AnswerRow
		_, err := s.fold(ctx, questionnaireID, func(a *models.Answer, code string) {
			rows = append(rows, AnswerRow{AnswerID: a.ID, UserID: a.UserID, SubmittedAt: a.CreatedAt, Type: code})
		})
		if err != nil {
			return nil, err
		}
		b, err := ExportAnswersCSV(rows)
		if err != nil {
			return nil, err
		}
		return &StatisticsExport{Filename: "answers.csv", ContentType: "text/csv; charset=utf-8", Data: b}, nil
	default:
		return nil, NewInvalidError("unsupported format")
	}
}
