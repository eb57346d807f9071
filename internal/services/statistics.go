package services

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
	"time"

	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
)

// maxFailureReasons caps how many scoring failures are reported verbatim.
const maxFailureReasons = 5

type Statistics struct {
	QuestionnaireID string         `json:"questionnaire_id"`
	Total           int            `json:"total"`
	Distribution    map[string]int `json:"distribution"`
	LastSubmittedAt *time.Time     `json:"last_submitted_at,omitempty"`
	Failures        int            `json:"failures"`
	FailureReasons  []string       `json:"failure_reasons,omitempty"`
	Timeseries      []DailyCount   `json:"timeseries"`

	// Reliability is keyed by dimension and only lists dimensions with at least two
	// questions and two scored answers.
	Reliability map[models.Dimension]Reliability `json:"reliability,omitempty"`
}

// DailyCount is the number of submissions on one UTC day, scored or not.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Aggregator folds answers into Statistics one at a time. It keeps only the histogram and
// counters, so it can run over any number of answers.
type Aggregator struct {
	lookup ScoreLookup
	stats  Statistics
	byDay  map[string]int
	alpha  map[models.Dimension]*alphaAccumulator
}

func NewAggregator(questionnaireID string, lookup ScoreLookup) *Aggregator {
	return &Aggregator{
		lookup: lookup,
		stats: Statistics{
			QuestionnaireID: questionnaireID,
			Distribution:    map[string]int{},
		},
		byDay: map[string]int{},
		alpha: map[models.Dimension]*alphaAccumulator{},
	}
}

// Add scores one answer and returns its code. A scoring failure is recorded and returned,
// and the aggregator stays usable.
func (a *Aggregator) Add(ans *models.Answer) (string, error) {
	a.stats.Total++
	if a.stats.LastSubmittedAt == nil || ans.CreatedAt.After(*a.stats.LastSubmittedAt) {
		ts := ans.CreatedAt
		a.stats.LastSubmittedAt = &ts
	}
	a.byDay[ans.CreatedAt.UTC().Format("2006-01-02")]++
	code, err := ComputeType(ans.Details, a.lookup)
	if err != nil {
		a.stats.Failures++
		if len(a.stats.FailureReasons) < maxFailureReasons {
			a.stats.FailureReasons = append(a.stats.FailureReasons, "answer "+ans.ID+": "+err.Error())
		}
		return "", err
	}
	a.stats.Distribution[code]++
	a.addReliabilityRows(ans.Details)
	return code, nil
}

// addReliabilityRows runs only for answers that scored, so every lookup resolves.
func (a *Aggregator) addReliabilityRows(details []models.AnswerDetail) {
	rows := map[models.Dimension]map[string]float64{}
	for _, d := range details {
		dim, _ := a.lookup.QuestionDimension(d.QuestionID)
		score, _ := a.lookup.OptionScore(d.OptionID)
		if rows[dim] == nil {
			rows[dim] = map[string]float64{}
		}
		rows[dim][d.QuestionID] = float64(score)
	}
	for dim, row := range rows {
		acc := a.alpha[dim]
		if acc == nil {
			acc = newAlphaAccumulator()
			a.alpha[dim] = acc
		}
		acc.addRow(row)
	}
}

// Result returns a snapshot of the fold so far.
func (a *Aggregator) Result() *Statistics {
	out := a.stats
	out.Distribution = make(map[string]int, len(a.stats.Distribution))
	for k, v := range a.stats.Distribution {
		out.Distribution[k] = v
	}
	out.FailureReasons = append([]string(nil), a.stats.FailureReasons...)
	if a.stats.LastSubmittedAt != nil {
		ts := *a.stats.LastSubmittedAt
		out.LastSubmittedAt = &ts
	}
	out.Timeseries = buildTimeseries(a.byDay)
	for dim, acc := range a.alpha {
		if len(acc.items) < 2 || acc.n < 2 {
			continue
		}
		if out.Reliability == nil {
			out.Reliability = map[models.Dimension]Reliability{}
		}
		out.Reliability[dim] = Reliability{Alpha: acc.alpha(), Items: len(acc.items), N: acc.n}
	}
	return &out
}

func buildTimeseries(counts map[string]int) []DailyCount {
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]DailyCount, 0, len(days))
	for _, d := range days {
		out = append(out, DailyCount{Date: d, Count: counts[d]})
	}
	return out
}

type TypeCount struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

// SortedDistribution orders the histogram by count descending, then code.
func (s *Statistics) SortedDistribution() []TypeCount {
	out := make([]TypeCount, 0, len(s.Distribution))
	for code, n := range s.Distribution {
		out = append(out, TypeCount{Code: code, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// ExportTypesCSV renders the histogram as type,count rows.
func ExportTypesCSV(stats *Statistics) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"type", "count"})
	for _, tc := range stats.SortedDistribution() {
		if err := w.Write([]string{tc.Code, strconv.Itoa(tc.Count)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

type AnswerRow struct {
	AnswerID    string
	UserID      string
	SubmittedAt time.Time
	Type        string // empty when the answer could not be scored
}

// ExportAnswersCSV renders one row per answer.
func ExportAnswersCSV(rows []AnswerRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"answer_id", "user_id", "submitted_at", "type"})
	for _, r := range rows {
		rec := []string{r.AnswerID, r.UserID, r.SubmittedAt.UTC().Format(time.RFC3339), r.Type}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
