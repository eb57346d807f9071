package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
	"github.com/zzy10151020/MBTI-System-sub000/internal/services"
)

func (s *Store) HasAnswer(ctx context.Context, userID, questionnaireID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM answers WHERE user_id = $1 AND questionnaire_id = $2`, userID, questionnaireID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateAnswer inserts the answer row and its details in one transaction. The UNIQUE
// (user_id, questionnaire_id) constraint is the authoritative duplicate guard.
func (s *Store) CreateAnswer(ctx context.Context, a *models.Answer) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO answers (id, user_id, questionnaire_id, created_at) VALUES ($1, $2, $3, $4)`,
			a.ID, a.UserID, a.QuestionnaireID, toMillis(a.CreatedAt))
		if isUniqueViolation(err) {
			return &services.DuplicateSubmissionError{UserID: a.UserID, QuestionnaireID: a.QuestionnaireID}
		}
		if err != nil {
			return err
		}
		return insertDetails(ctx, tx, a)
	})
}

func insertDetails(ctx context.Context, tx *sql.Tx, a *models.Answer) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO answer_details (answer_id, question_id, option_id) VALUES ($1, $2, $3)`)
	if err != nil {
		return &services.PartialBatchFailure{AnswerID: a.ID, Err: err}
	}
	defer stmt.Close()
	for i, d := range a.Details {
		if _, err := stmt.ExecContext(ctx, a.ID, d.QuestionID, d.OptionID); err != nil {
			return &services.PartialBatchFailure{AnswerID: a.ID, Inserted: i, Err: err}
		}
	}
	return nil
}

func (s *Store) GetAnswer(ctx context.Context, id string) (*models.Answer, error) {
	var (
		a       models.Answer
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, questionnaire_id, created_at FROM answers WHERE id = $1`, id).
		Scan(&a.ID, &a.UserID, &a.QuestionnaireID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = fromMillis(created)
	details, err := s.answerDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Details = details
	return &a, nil
}

func (s *Store) answerDetails(ctx context.Context, answerID string) ([]models.AnswerDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, option_id FROM answer_details WHERE answer_id = $1 ORDER BY question_id`, answerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.AnswerDetail{}
	for rows.Next() {
		var d models.AnswerDetail
		if err := rows.Scan(&d.QuestionID, &d.OptionID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListAnswersByUser returns the user's answers, newest first, with details.
func (s *Store) ListAnswersByUser(ctx context.Context, userID string) ([]*models.Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.user_id, a.questionnaire_id, a.created_at, d.question_id, d.option_id
		 FROM answers a LEFT JOIN answer_details d ON d.answer_id = a.id
		 WHERE a.user_id = $1 ORDER BY a.id DESC, d.question_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Answer
	err = scanAnswerGroups(rows, func(a *models.Answer) error {
		out = append(out, a)
		return nil
	})
	return out, err
}

func (s *Store) CountAnswers(ctx context.Context, questionnaireID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE questionnaire_id = $1`, questionnaireID).Scan(&n)
	return n, err
}

// StreamAnswers walks the questionnaire's answers in submission order, handing fn one answer
// with its details at a time. fn runs while the cursor is open and must not query the Store.
func (s *Store) StreamAnswers(ctx context.Context, questionnaireID string, fn func(*models.Answer) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.user_id, a.questionnaire_id, a.created_at, d.question_id, d.option_id
		 FROM answers a LEFT JOIN answer_details d ON d.answer_id = a.id
		 WHERE a.questionnaire_id = $1 ORDER BY a.id, d.question_id`, questionnaireID)
	if err != nil {
		return err
	}
	defer rows.Close()
	return scanAnswerGroups(rows, fn)
}

// scanAnswerGroups folds consecutive joined rows sharing an answer id into one Answer.
func scanAnswerGroups(rows *sql.Rows, fn func(*models.Answer) error) error {
	var cur *models.Answer
	for rows.Next() {
		var (
			id, userID, qid string
			created         int64
			questionID      sql.NullString
			optionID        sql.NullString
		)
		if err := rows.Scan(&id, &userID, &qid, &created, &questionID, &optionID); err != nil {
			return err
		}
		if cur == nil || cur.ID != id {
			if cur != nil {
				if err := fn(cur); err != nil {
					return err
				}
			}
			cur = &models.Answer{ID: id, UserID: userID, QuestionnaireID: qid, CreatedAt: fromMillis(created), Details: []models.AnswerDetail{}}
		}
		if questionID.Valid {
			cur.Details = append(cur.Details, models.AnswerDetail{QuestionID: questionID.String, OptionID: optionID.String})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if cur != nil {
		return fn(cur)
	}
	return nil
}
