package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
	"github.com/zzy10151020/MBTI-System-sub000/internal/services"
)

const questionnaireColumns = `id, title, description, creator_id, published, created_at`

func scanQuestionnaire(row interface{ Scan(...any) error }) (*models.Questionnaire, error) {
	var (
		q         models.Questionnaire
		published int64
		created   int64
	)
	if err := row.Scan(&q.ID, &q.Title, &q.Description, &q.CreatorID, &published, &created); err != nil {
		return nil, err
	}
	q.Published = int64ToBool(published)
	q.CreatedAt = fromMillis(created)
	return &q, nil
}

func (s *Store) InsertQuestionnaire(ctx context.Context, q *models.Questionnaire) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO questionnaires (`+questionnaireColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		q.ID, q.Title, q.Description, q.CreatorID, boolToInt64(q.Published), toMillis(q.CreatedAt))
	return err
}

func (s *Store) GetQuestionnaire(ctx context.Context, id string) (*models.Questionnaire, error) {
	q, err := scanQuestionnaire(s.db.QueryRowContext(ctx,
		`SELECT `+questionnaireColumns+` FROM questionnaires WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

func (s *Store) UpdateQuestionnaire(ctx context.Context, q *models.Questionnaire) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE questionnaires SET title = $1, description = $2, published = $3 WHERE id = $4`,
		q.Title, q.Description, boolToInt64(q.Published), q.ID)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return services.NewNotFoundError("questionnaire not found")
	}
	return nil
}

// DeleteQuestionnaire removes both chains, answers→details and questions→options, in one
// transaction. Any failure rolls the whole deletion back.
func (s *Store) DeleteQuestionnaire(ctx context.Context, id string) (*services.DeleteResult, error) {
	out := &services.DeleteResult{}
	steps := []struct {
		query string
		count *int
	}{
		{`DELETE FROM answer_details WHERE answer_id IN (SELECT id FROM answers WHERE questionnaire_id = $1)`, &out.Details},
		{`DELETE FROM answers WHERE questionnaire_id = $1`, &out.Answers},
		{`DELETE FROM options WHERE question_id IN (SELECT id FROM questions WHERE questionnaire_id = $1)`, &out.Options},
		{`DELETE FROM questions WHERE questionnaire_id = $1`, &out.Questions},
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, st := range steps {
			res, err := tx.ExecContext(ctx, st.query, id)
			if err != nil {
				return fmt.Errorf("delete questionnaire %s: %w", id, err)
			}
			*st.count = rowsAffected(res)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM questionnaires WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete questionnaire %s: %w", id, err)
		}
		if rowsAffected(res) == 0 {
			return services.NewNotFoundError("questionnaire not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListQuestionnaires(ctx context.Context, f services.ListFilter) ([]*models.Questionnaire, int, error) {
	where := ""
	if f.PublishedOnly {
		where = ` WHERE published = 1`
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questionnaires`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionnaireColumns+` FROM questionnaires`+where+` ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*models.Questionnaire
	for rows.Next() {
		q, err := scanQuestionnaire(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

const questionColumns = `id, questionnaire_id, content, dimension, ord`

func scanQuestion(row interface{ Scan(...any) error }) (*models.Question, error) {
	var (
		q   models.Question
		dim string
	)
	if err := row.Scan(&q.ID, &q.QuestionnaireID, &q.Content, &dim, &q.Order); err != nil {
		return nil, err
	}
	q.Dimension = models.Dimension(dim)
	return &q, nil
}

// ListQuestions returns the questionnaire's questions in presentation order with their options.
func (s *Store) ListQuestions(ctx context.Context, questionnaireID string) ([]*models.Question, error) {
	return listQuestions(ctx, s.db, questionnaireID)
}

func listQuestions(ctx context.Context, q queryer, questionnaireID string) ([]*models.Question, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE questionnaire_id = $1 ORDER BY ord`, questionnaireID)
	if err != nil {
		return nil, err
	}
	var out []*models.Question
	byID := map[string]*models.Question{}
	for rows.Next() {
		qu, err := scanQuestion(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, qu)
		byID[qu.ID] = qu
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	orows, err := q.QueryContext(ctx,
		`SELECT o.id, o.question_id, o.content, o.score FROM options o
		 JOIN questions q ON q.id = o.question_id
		 WHERE q.questionnaire_id = $1 ORDER BY o.id`, questionnaireID)
	if err != nil {
		return nil, err
	}
	defer orows.Close()
	for orows.Next() {
		var o models.Option
		if err := orows.Scan(&o.ID, &o.QuestionID, &o.Content, &o.Score); err != nil {
			return nil, err
		}
		if parent, ok := byID[o.QuestionID]; ok {
			parent.Options = append(parent.Options, &o)
		}
	}
	return out, orows.Err()
}

func (s *Store) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

// InsertQuestion writes the question and any inline options together.
func (s *Store) InsertQuestion(ctx context.Context, q *models.Question) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO questions (`+questionColumns+`) VALUES ($1, $2, $3, $4, $5)`,
			q.ID, q.QuestionnaireID, q.Content, string(q.Dimension), q.Order)
		if err := mapQuestionErr(err); err != nil {
			return err
		}
		for _, o := range q.Options {
			if err := insertOption(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	})
}

func mapQuestionErr(err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return services.NewConflictError("question order already used")
	case isCheckViolation(err):
		return services.NewInvalidError("invalid dimension or order")
	}
	return err
}

func (s *Store) UpdateQuestion(ctx context.Context, q *models.Question) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET content = $1, dimension = $2 WHERE id = $3`,
		q.Content, string(q.Dimension), q.ID)
	if err := mapQuestionErr(err); err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return services.NewNotFoundError("question not found")
	}
	return nil
}

func (s *Store) DeleteQuestion(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM options WHERE question_id = $1`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if rowsAffected(res) == 0 {
			return services.NewNotFoundError("question not found")
		}
		return nil
	})
}

// ReorderQuestions rewrites positions to 1..n following order. Current positions are first
// lifted above the questionnaire's highest one, so neither step collides under
// UNIQUE (questionnaire_id, ord).
func (s *Store) ReorderQuestions(ctx context.Context, questionnaireID string, order []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var top int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(ord), 0) FROM questions WHERE questionnaire_id = $1`, questionnaireID).Scan(&top); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE questions SET ord = ord + $1 WHERE questionnaire_id = $2`, top, questionnaireID); err != nil {
			return mapQuestionErr(err)
		}
		for i, id := range order {
			res, err := tx.ExecContext(ctx,
				`UPDATE questions SET ord = $1 WHERE id = $2 AND questionnaire_id = $3`, i+1, id, questionnaireID)
			if err != nil {
				return mapQuestionErr(err)
			}
			if rowsAffected(res) == 0 {
				return services.NewInvalidError("question " + id + " is not part of this questionnaire")
			}
		}
		return nil
	})
}

func (s *Store) GetOption(ctx context.Context, id string) (*models.Option, error) {
	var o models.Option
	err := s.db.QueryRowContext(ctx,
		`SELECT id, question_id, content, score FROM options WHERE id = $1`, id).
		Scan(&o.ID, &o.QuestionID, &o.Content, &o.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func insertOption(ctx context.Context, q queryer, o *models.Option) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO options (id, question_id, content, score) VALUES ($1, $2, $3, $4)`,
		o.ID, o.QuestionID, o.Content, o.Score)
	if isCheckViolation(err) {
		return services.NewInvalidError("score must be -1 or 1")
	}
	return err
}

func (s *Store) InsertOption(ctx context.Context, o *models.Option) error {
	return insertOption(ctx, s.db, o)
}

func (s *Store) UpdateOption(ctx context.Context, o *models.Option) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE options SET content = $1, score = $2 WHERE id = $3`, o.Content, o.Score, o.ID)
	if isCheckViolation(err) {
		return services.NewInvalidError("score must be -1 or 1")
	}
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return services.NewNotFoundError("option not found")
	}
	return nil
}

func (s *Store) DeleteOption(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM options WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return services.NewNotFoundError("option not found")
	}
	return nil
}
