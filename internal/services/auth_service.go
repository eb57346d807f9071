package services

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
)

type AuthStore interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	// InsertUser returns a conflict ServiceError when the username or email is taken.
	InsertUser(ctx context.Context, u *models.User) error
}

type TokenSigner func(uid, username string, role models.Role, ttl time.Duration) (string, error)

type AuthService struct {
	store     AuthStore
	now       func() time.Time
	idGen     func() string
	signToken TokenSigner
	tokenTTL  time.Duration
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func NewAuthService(store AuthStore, signer TokenSigner, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &AuthService{
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     newID,
		signToken: signer,
		tokenTTL:  ttl,
	}
}

const minPasswordLen = 6

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	u, err := s.createUser(ctx, username, email, password, models.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *AuthService) createUser(ctx context.Context, username, email, password string, role models.Role) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("username/email/password required")
	}
	if strings.Contains(username, "@") {
		return nil, NewInvalidError("username must not contain @")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, NewInvalidError("invalid email")
	}
	if len(password) < minPasswordLen {
		return nil, NewInvalidError("password too short")
	}
	existing, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError("username exists")
	}
	existing, err = s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError("email exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:        s.idGen(),
		Username:  username,
		Email:     email,
		PassHash:  hash,
		Role:      role,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login accepts either the username or the email as identifier.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("username/password required")
	}
	var (
		u   *models.User
		err error
	)
	if strings.Contains(identifier, "@") {
		u, err = s.store.FindUserByEmail(ctx, strings.ToLower(identifier))
	} else {
		u, err = s.store.FindUserByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(u.PassHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	return s.issue(u)
}

func (s *AuthService) issue(u *models.User) (*AuthResult, error) {
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(u.ID, u.Username, u.Role, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: u}, nil
}

func (s *AuthService) Me(ctx context.Context, uid string) (*models.User, error) {
	if uid == "" {
		return nil, NewUnauthorizedError("unauthorized")
	}
	u, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, NewNotFoundError("user not found")
	}
	return u, nil
}

// EnsureAdmin creates the bootstrap admin account unless the username already exists. It
// reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	existing, err := s.store.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if _, err := s.createUser(ctx, username, email, password, models.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}
