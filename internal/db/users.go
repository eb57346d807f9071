package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
	"github.com/zzy10151020/MBTI-System-sub000/internal/services"
)

const userColumns = `id, username, email, pass_hash, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u       models.User
		hash    string
		role    string
		created int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &hash, &role, &created); err != nil {
		return nil, err
	}
	u.PassHash = []byte(hash)
	u.Role = models.Role(role)
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

func (s *Store) findUser(ctx context.Context, where string, arg string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` = $1`, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, "username", username)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email", email)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, "id", id)
}

func (s *Store) InsertUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, u.Email, string(u.PassHash), string(u.Role), toMillis(u.CreatedAt))
	if isUniqueViolation(err) {
		return services.NewConflictError("username or email exists")
	}
	if isCheckViolation(err) {
		return services.NewInvalidError("invalid role")
	}
	return err
}
