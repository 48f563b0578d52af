// Package service contains application services for accounts and analysis uploads.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgcrypto "github.com/and161185/analysis-keeper/internal/crypto"
	"github.com/and161185/analysis-keeper/internal/errs"
	"github.com/and161185/analysis-keeper/internal/limiter"
	"github.com/and161185/analysis-keeper/internal/model"
	"github.com/and161185/analysis-keeper/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// TokenTypeBearer is reported to clients alongside every access token.
const TokenTypeBearer = "Bearer"

// AuthService defines account operations.
type AuthService interface {
	// Signup creates a new user; errs.ErrAlreadyExists if the email is taken.
	Signup(ctx context.Context, email, password, name string) (*model.User, error)
	// Login applies rate-limiting and authenticates the user.
	Login(ctx context.Context, email, password, ip string) (model.LoginResult, error)
	// Me returns the caller's profile.
	Me(ctx context.Context, userID uuid.UUID) (*model.User, error)
	// ChangePassword replaces the digest after verifying the current password.
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error
	// UpdateName sets a new display name.
	UpdateName(ctx context.Context, userID uuid.UUID, name string) (*model.User, error)
}

// TokenIssuer issues access tokens for a user id.
type TokenIssuer interface {
	Issue(subject uuid.UUID) (string, time.Time, error)
}

type AuthServiceImpl struct {
	users  repository.UserRepository
	tokens TokenIssuer
	lim    limiter.Limiter
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, tokens TokenIssuer, lim limiter.Limiter) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	return &AuthServiceImpl{users: users, tokens: tokens, lim: lim}
}

// Signup validates input, rejects a taken email and stores an Argon2id digest.
func (s *AuthServiceImpl) Signup(ctx context.Context, email, password, name string) (*model.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return nil, fmt.Errorf("%w: email, password and name are required", errs.ErrValidation)
	}
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, errs.ErrAlreadyExists
	}
	digest, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return s.users.Save(ctx, &model.User{Email: email, Name: name, PwdHash: digest})
}

// Login authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, email, password, ip string) (model.LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return model.LoginResult{}, fmt.Errorf("%w: email and password are required", errs.ErrValidation)
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.LoginResult{}, err
	}
	if !allowed {
		return model.LoginResult{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.LoginResult{}, err
	}
	if err != nil || !pkgcrypto.VerifyPassword(password, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.LoginResult{}, errs.ErrRateLimited
		}
		// unknown email and wrong password look the same to the caller
		return model.LoginResult{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, email, ipHash)

	access, exp, err := s.tokens.Issue(u.ID)
	if err != nil {
		return model.LoginResult{}, err
	}
	return model.LoginResult{
		AccessToken: access,
		TokenType:   TokenTypeBearer,
		Email:       u.Email,
		Name:        u.Name,
		ExpiresAt:   exp,
	}, nil
}

func (s *AuthServiceImpl) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ChangePassword verifies current before storing a digest of next.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if next == "" {
		return fmt.Errorf("%w: new password is required", errs.ErrValidation)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !pkgcrypto.VerifyPassword(current, u.PwdHash) {
		return errs.ErrUnauthorized
	}
	digest, err := pkgcrypto.HashPassword(next)
	if err != nil {
		return err
	}
	u.PwdHash = digest
	_, err = s.users.Save(ctx, u)
	return err
}

func (s *AuthServiceImpl) UpdateName(ctx context.Context, userID uuid.UUID, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", errs.ErrValidation)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Name = name
	return s.users.Save(ctx, u)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
