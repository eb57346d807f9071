package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zzy10151020/MBTI-System-sub000/internal/services"
)

var (
	_ services.AuthStore          = (*Store)(nil)
	_ services.QuestionnaireStore = (*Store)(nil)
	_ services.AnswerStore        = (*Store)(nil)
	_ services.StatisticsStore    = (*Store)(nil)
)

// Store implements the services' persistence interfaces on database/sql. Statements use
// $N placeholders numbered in order of first appearance, which every supported driver binds.
//
// SQLite runs with a single connection: never query s.db while rows or a tx are open.
type Store struct {
	db     *sql.DB
	driver Driver
}

func NewStore(db *sql.DB, driver Driver) (*Store, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	return &Store{db: db, driver: driver}, nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) logErr(prefix string, err error) {
	if err != nil {
		log.Printf("db %s: %v", prefix, err)
	}
}

// withTx runs fn in a transaction, committing on nil and rolling back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if e := tx.Commit(); e != nil {
			err = fmt.Errorf("commit: %w", e)
		}
	}()
	err = fn(tx)
	return
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func int64ToBool(v int64) bool { return v != 0 }

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func rowsAffected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}
