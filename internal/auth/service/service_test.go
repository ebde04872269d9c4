package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"leadflow_backend/internal/auth/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type fakeUsers struct {
	users []repository.User
	err   error
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (repository.User, error) {
	if f.err != nil {
		return repository.User{}, f.err
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return repository.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetUserByID(_ context.Context, id uuid.UUID) (repository.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return repository.User{}, repository.ErrNotFound
}

func (f *fakeUsers) ListUsers(context.Context) ([]repository.User, error) {
	return f.users, f.err
}

type testConfig struct{}

func (testConfig) GetJWTAccessSecret() string       { return "test-secret" }
func (testConfig) GetAccessTokenTTL() time.Duration { return time.Hour }

func newTestService(users *fakeUsers) *Service {
	return New(users, testConfig{}, logger.NewWithWriter("test", io.Discard))
}

func TestLoginIssuesAccessToken(t *testing.T) {
	user := repository.User{ID: uuid.New(), Email: "ana@example.com", Name: "Ana", Role: "advisor"}
	svc := newTestService(&fakeUsers{users: []repository.User{user}})

	resp, err := svc.Login(context.Background(), "ANA@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.User.ID != user.ID || resp.User.Name != "Ana" {
		t.Fatalf("unexpected user %+v", resp.User)
	}

	parsed, err := jwt.Parse(resp.Token, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		t.Fatalf("token did not verify: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sub"] != user.ID.String() || claims["type"] != accessTokenType {
		t.Fatalf("unexpected claims %v", claims)
	}
}

func TestLoginUnknownUserIsUnauthorized(t *testing.T) {
	svc := newTestService(&fakeUsers{})

	_, err := svc.Login(context.Background(), "nobody@example.com")
	if !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Message != "User not found" {
		t.Fatalf("expected %q, got %v", "User not found", err)
	}
}

func TestLoginStoreFailureIsInternal(t *testing.T) {
	svc := newTestService(&fakeUsers{err: errors.New("connection refused")})

	if _, err := svc.Login(context.Background(), "ana@example.com"); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
