// Package service contains application services for authentication and
// payment cards.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/and161185/txguard/internal/crypto"
	"github.com/and161185/txguard/internal/errs"
	"github.com/and161185/txguard/internal/limiter"
	"github.com/and161185/txguard/internal/model"
	"github.com/and161185/txguard/internal/repository"
)

const (
	minPasswordLen = 8
	maxUsernameLen = 64
	tokenLeeway    = 30 * time.Second
)

// AuthService defines authentication operations.
type AuthService interface {
	// Register creates a new user with secure password hashing.
	Register(ctx context.Context, username, password string) (userID string, err error)
	// LoginWithIP applies rate-limiting and authenticates the user.
	LoginWithIP(ctx context.Context, username, password string, ip string) (tokens model.Tokens, user model.User, err error)
	// ReAuthenticate verifies a step-up credential for an already authenticated user.
	ReAuthenticate(ctx context.Context, userID uuid.UUID, password, ip string) error
	// VerifyAccessToken validates an HS256 access token and returns its subject.
	VerifyAccessToken(token string) (uuid.UUID, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	reauthLim limiter.Limiter
	now       func() time.Time
}

// AuthOption customizes AuthServiceImpl.
type AuthOption func(*AuthServiceImpl)

// WithReauthLimiter uses l for step-up attempts instead of the login limiter.
func WithReauthLimiter(l limiter.Limiter) AuthOption {
	return func(s *AuthServiceImpl) { s.reauthLim = l }
}

// WithAuthClock overrides the token clock.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthServiceImpl) { s.now = now }
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter, opts ...AuthOption) *AuthServiceImpl {
	s := &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.reauthLim == nil {
		s.reauthLim = lim
	}
	return s
}

// Register creates a new user record with a per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", errs.BadRequest("username and password are required")
	}
	if len(username) > maxUsernameLen {
		return "", errs.BadRequest("username is too long")
	}
	if len(password) < minPasswordLen {
		return "", errs.BadRequest(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	saltAuth, err := pkgcrypto.RandBytes(pkgcrypto.SaltSize)
	if err != nil {
		return "", err
	}

	u := &model.User{
		ID:       uid,
		Username: username,
		PwdHash:  pkgcrypto.HashPassword([]byte(password), saltAuth),
		SaltAuth: saltAuth,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return "", err
	}
	return uid.String(), nil
}

// LoginWithIP authenticates with rate limiting by (username, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, username, password, ip string) (model.Tokens, model.User, error) {
	subject := limiter.SubjectLogin + username
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, subject, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.User{}, err
	}
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, subject, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		// unknown user and wrong password are indistinguishable
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, subject, ipHash)

	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// ReAuthenticate checks password against the stored hash of userID. Failures
// count towards a per-user lockout regardless of client address.
func (s *AuthServiceImpl) ReAuthenticate(ctx context.Context, userID uuid.UUID, password, _ string) error {
	subject := limiter.SubjectReauth + userID.String()

	allowed, _, err := s.reauthLim.Allow(ctx, subject, limiter.AnyIP)
	if err != nil {
		return fmt.Errorf("reauth limiter: %w", err)
	}
	if !allowed {
		return errs.ErrRateLimited
	}

	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	ok, err := pkgcrypto.VerifyPasswordContext(ctx, []byte(password), u.SaltAuth, u.PwdHash)
	if err != nil {
		return err
	}
	if !ok {
		if blocked, _, ferr := s.reauthLim.Failure(ctx, subject, limiter.AnyIP); ferr == nil && blocked {
			return errs.ErrRateLimited
		}
		return errs.ErrReauthFailed
	}
	_ = s.reauthLim.Success(ctx, subject, limiter.AnyIP)
	return nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// VerifyAccessToken verifies an HS256 token and returns its subject as a UUID.
func (s *AuthServiceImpl) VerifyAccessToken(token string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithLeeway(tokenLeeway), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return uuid.Nil, errs.ErrUnauthorized
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return id, nil
}
