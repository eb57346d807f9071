package services

import "github.com/zzy10151020/MBTI-System-sub000/internal/models"

// ScoreLookup resolves the metadata the scoring engine needs for each answer detail.
type ScoreLookup interface {
	QuestionDimension(questionID string) (models.Dimension, bool)
	OptionScore(optionID string) (int, bool)
}

// DimensionSums holds the running signed total for each MBTI axis.
type DimensionSums struct {
	EI int `json:"EI"`
	SN int `json:"SN"`
	TF int `json:"TF"`
	JP int `json:"JP"`
}

func (s *DimensionSums) add(d models.Dimension, v int) {
	switch d {
	case models.DimensionEI:
		s.EI += v
	case models.DimensionSN:
		s.SN += v
	case models.DimensionTF:
		s.TF += v
	case models.DimensionJP:
		s.JP += v
	}
}

// Get returns the sum for one dimension.
func (s DimensionSums) Get(d models.Dimension) int {
	switch d {
	case models.DimensionEI:
		return s.EI
	case models.DimensionSN:
		return s.SN
	case models.DimensionTF:
		return s.TF
	case models.DimensionJP:
		return s.JP
	}
	return 0
}

// Code resolves the sums into a four-letter type. A sum of exactly zero resolves to the
// second letter of the axis (I, N, F, P).
func (s DimensionSums) Code() string {
	out := make([]byte, 0, len(models.Dimensions))
	for _, d := range models.Dimensions {
		pos, neg := d.Poles()
		if s.Get(d) > 0 {
			out = append(out, pos)
		} else {
			out = append(out, neg)
		}
	}
	return string(out)
}

// TallyDetails folds the details into per-dimension sums. Unresolvable questions or options
// fail with *ReferenceNotFoundError.
func TallyDetails(details []models.AnswerDetail, lookup ScoreLookup) (DimensionSums, error) {
	var sums DimensionSums
	for _, d := range details {
		dim, ok := lookup.QuestionDimension(d.QuestionID)
		if !ok {
			return DimensionSums{}, &ReferenceNotFoundError{Kind: "question", ID: d.QuestionID}
		}
		score, ok := lookup.OptionScore(d.OptionID)
		if !ok {
			return DimensionSums{}, &ReferenceNotFoundError{Kind: "option", ID: d.OptionID}
		}
		sums.add(dim, score)
	}
	return sums, nil
}

// ComputeType returns the MBTI code for one answer's details.
func ComputeType(details []models.AnswerDetail, lookup ScoreLookup) (string, error) {
	sums, err := TallyDetails(details, lookup)
	if err != nil {
		return "", err
	}
	return sums.Code(), nil
}

// SchemaIndex is a ScoreLookup built from a questionnaire's questions and their options.
type SchemaIndex struct {
	dimensions     map[string]models.Dimension
	scores         map[string]int
	optionQuestion map[string]string
	order          []string
}

func NewSchemaIndex(questions []*models.Question) *SchemaIndex {
	idx := &SchemaIndex{
		dimensions:     make(map[string]models.Dimension, len(questions)),
		scores:         map[string]int{},
		optionQuestion: map[string]string{},
		order:          make([]string, 0, len(questions)),
	}
	for _, q := range questions {
		if q == nil {
			continue
		}
		idx.dimensions[q.ID] = q.Dimension
		idx.order = append(idx.order, q.ID)
		for _, o := range q.Options {
			if o == nil {
				continue
			}
			idx.scores[o.ID] = o.Score
			idx.optionQuestion[o.ID] = q.ID
		}
	}
	return idx
}

func (i *SchemaIndex) QuestionDimension(questionID string) (models.Dimension, bool) {
	d, ok := i.dimensions[questionID]
	return d, ok
}

func (i *SchemaIndex) OptionScore(optionID string) (int, bool) {
	v, ok := i.scores[optionID]
	return v, ok
}

// OptionBelongsTo reports whether optionID is one of questionID's options.
func (i *SchemaIndex) OptionBelongsTo(optionID, questionID string) bool {
	return i.optionQuestion[optionID] == questionID
}

// QuestionCount is the number of questions in the indexed questionnaire.
func (i *SchemaIndex) QuestionCount() int { return len(i.order) }
