package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/and161185/txguard/internal/crypto"
	"github.com/and161185/txguard/internal/errs"
	"github.com/and161185/txguard/internal/limiter"
	"github.com/and161185/txguard/internal/model"
	"github.com/and161185/txguard/internal/repository"
)

type fakeUsers struct {
	byName map[string]*model.User

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byName == nil {
		f.byName = map[string]*model.User{}
	}
	if _, exists := f.byName[u.Username]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byName[u.Username] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byName {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
	subjects     []string
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(_ context.Context, subject string, _ []byte) (bool, time.Duration, error) {
	l.allowCalls++
	l.subjects = append(l.subjects, subject)
	return l.allowOK, 0, l.allowErr
}

func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}

func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

func newUser(t *testing.T, name, password string) *model.User {
	t.Helper()
	salt, err := pkgcrypto.RandBytes(pkgcrypto.SaltSize)
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	return &model.User{
		ID:       uuid.Must(uuid.NewV4()),
		Username: name,
		SaltAuth: salt,
		PwdHash:  pkgcrypto.HashPassword([]byte(password), salt),
	}
}

func TestAuth_Register_Basics(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{byName: map[string]*model.User{}}
	s := NewAuthService(users, []byte("k"), time.Minute, &fakeLimiter{})

	for _, tc := range []struct{ user, pw string }{{"", ""}, {"alice", ""}, {"alice", "short"}, {string(make([]byte, 65)), "longenough"}} {
		_, err := s.Register(context.Background(), tc.user, tc.pw)
		var e *errs.Error
		if !errors.As(err, &e) || e.Code != "VALIDATION_ERROR" {
			t.Fatalf("Register(%q): want validation error, got %v", tc.user, err)
		}
	}

	id, err := s.Register(context.Background(), "alice", "password1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := uuid.FromString(id); err != nil {
		t.Fatalf("bad user id %q", id)
	}
	stored := users.byName["alice"]
	if !pkgcrypto.VerifyPassword([]byte("password1"), stored.SaltAuth, stored.PwdHash) {
		t.Fatalf("stored hash does not verify")
	}

	if _, err := s.Register(context.Background(), "alice", "password2"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists on duplicate username, got %v", err)
	}

	users.createErr = errors.New("boom")
	if _, err := s.Register(context.Background(), "bob", "password1"); err == nil {
		t.Fatalf("want propagated repo error")
	}
}

func TestAuth_LoginWithIP_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()

	u := newUser(t, "alice", "correct")
	users := &fakeUsers{byName: map[string]*model.User{"alice": u}}
	lim := &fakeLimiter{allowOK: true}
	s := NewAuthService(users, []byte("secret"), 2*time.Minute, lim)
	ctx := context.Background()

	lim.allowErr = errors.New("lim-err")
	if _, _, err := s.LoginWithIP(ctx, "alice", "correct", "1.2.3.4"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	lim.allowErr = nil

	lim.allowOK = false
	if _, _, err := s.LoginWithIP(ctx, "alice", "correct", "1.2.3.4"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	lim.allowOK = true

	if _, _, err := s.LoginWithIP(ctx, "nope", "x", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on missing user, got %v", err)
	}

	users.getErr = errors.New("db down")
	if _, _, err := s.LoginWithIP(ctx, "alice", "correct", ""); errors.Is(err, errs.ErrUnauthorized) || err == nil {
		t.Fatalf("want storage error surfaced, got %v", err)
	}
	users.getErr = nil

	lim.failBlocked = true
	if _, _, err := s.LoginWithIP(ctx, "alice", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited on blocked after failure, got %v", err)
	}

	lim.failBlocked = false
	if _, _, err := s.LoginWithIP(ctx, "alice", "wrong", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong password, got %v", err)
	}

	tok, gotUser, err := s.LoginWithIP(ctx, "alice", "correct", "127.0.0.1")
	if err != nil {
		t.Fatalf("LoginWithIP success: %v", err)
	}
	if tok.AccessToken == "" || tok.ExpiresAt.Before(time.Now()) {
		t.Fatalf("bad token: %+v", tok)
	}
	if gotUser.ID != u.ID {
		t.Fatalf("bad user returned: %+v", gotUser)
	}
	if lim.successCalls == 0 {
		t.Fatalf("expected Success() to be called")
	}
	if lim.subjects[0] != limiter.SubjectLogin+"alice" {
		t.Fatalf("unexpected limiter subject %q", lim.subjects[0])
	}
}

func TestAuth_VerifyAccessToken(t *testing.T) {
	t.Parallel()

	u := newUser(t, "bob", "password1")
	users := &fakeUsers{byName: map[string]*model.User{"bob": u}}
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s := NewAuthService(users, []byte("k"), time.Minute, &fakeLimiter{allowOK: true}, WithAuthClock(clock))

	tk, _, err := s.LoginWithIP(context.Background(), "bob", "password1", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !tk.ExpiresAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("expiry %v", tk.ExpiresAt)
	}

	id, err := s.VerifyAccessToken(tk.AccessToken)
	if err != nil || id != u.ID {
		t.Fatalf("VerifyAccessToken: id=%v err=%v", id, err)
	}

	other := NewAuthService(users, []byte("other"), time.Minute, &fakeLimiter{}, WithAuthClock(clock))
	if _, err := other.VerifyAccessToken(tk.AccessToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for foreign key, got %v", err)
	}

	late := NewAuthService(users, []byte("k"), time.Minute, &fakeLimiter{},
		WithAuthClock(func() time.Time { return now.Add(2 * time.Minute) }))
	if _, err := late.VerifyAccessToken(tk.AccessToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for expired token, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: u.ID.String()})
	raw, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := s.VerifyAccessToken(raw); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for alg=none, got %v", err)
	}

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: u.ID.String()})
	raw, _ = noExp.SignedString([]byte("k"))
	if _, err := s.VerifyAccessToken(raw); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized without exp, got %v", err)
	}
}

func TestAuth_ReAuthenticate(t *testing.T) {
	t.Parallel()

	u := newUser(t, "carol", "right-password")
	users := &fakeUsers{byName: map[string]*model.User{"carol": u}}
	login := &fakeLimiter{allowOK: true}
	reauth := &fakeLimiter{allowOK: true}
	s := NewAuthService(users, []byte("k"), time.Minute, login, WithReauthLimiter(reauth))
	ctx := context.Background()

	if err := s.ReAuthenticate(ctx, u.ID, "right-password", "10.0.0.1"); err != nil {
		t.Fatalf("ReAuthenticate: %v", err)
	}
	if reauth.successCalls != 1 || login.allowCalls != 0 {
		t.Fatalf("wrong limiter used: reauth=%+v login=%+v", reauth, login)
	}
	if reauth.subjects[0] != limiter.SubjectReauth+u.ID.String() {
		t.Fatalf("unexpected subject %q", reauth.subjects[0])
	}

	if err := s.ReAuthenticate(ctx, u.ID, "wrong", ""); !errors.Is(err, errs.ErrReauthFailed) {
		t.Fatalf("want ErrReauthFailed, got %v", err)
	}
	if reauth.failureCalls != 1 {
		t.Fatalf("failure not recorded")
	}

	reauth.failBlocked = true
	if err := s.ReAuthenticate(ctx, u.ID, "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited at threshold, got %v", err)
	}
	reauth.failBlocked = false

	reauth.allowOK = false
	if err := s.ReAuthenticate(ctx, u.ID, "right-password", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited while locked, got %v", err)
	}
	reauth.allowOK = true

	if err := s.ReAuthenticate(ctx, uuid.Must(uuid.NewV4()), "x", ""); !errors.Is(err, errs.ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}

	users.getErr = errors.New("db down")
	if err := s.ReAuthenticate(ctx, u.ID, "right-password", ""); err == nil || errors.Is(err, errs.ErrReauthFailed) {
		t.Fatalf("want storage error, got %v", err)
	}
	users.getErr = nil

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := s.ReAuthenticate(cctx, u.ID, "right-password", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
