package service

import (
	"context"
	"errors"
	"time"

	"leadflow_backend/internal/auth/repository"
	"leadflow_backend/internal/auth/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenType = "access"
	msgUserNotFound = "User not found"
)

// Service issues access tokens for known users. Credential checks happen
// upstream; a user that exists may log in.
type Service struct {
	repo repository.UserReader
	cfg  config.AuthServiceConfig
	log  *logger.Logger
	now  func() time.Time
}

func New(repo repository.UserReader, cfg config.AuthServiceConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log, now: time.Now}
}

// Login returns the user record and a signed access token.
func (s *Service) Login(ctx context.Context, email string) (transport.LoginResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.AuthEvent("login", email, false, "unknown email")
			return transport.LoginResponse{}, apperr.Unauthorized(msgUserNotFound).WithOp("auth.Login")
		}
		s.log.DatabaseError("auth.Login", err)
		return transport.LoginResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load user", err).WithOp("auth.Login")
	}

	token, err := s.signJWT(user.ID, []string{user.Role}, s.cfg.GetAccessTokenTTL(), accessTokenType, s.cfg.GetJWTAccessSecret())
	if err != nil {
		return transport.LoginResponse{}, apperr.Wrap(apperr.KindInternal, "failed to sign token", err).WithOp("auth.Login")
	}

	s.log.AuthEvent("login", user.Email, true, "")
	return transport.LoginResponse{User: toUserResponse(user), Token: token}, nil
}

// GetMe returns the caller's own record.
func (s *Service) GetMe(ctx context.Context, userID uuid.UUID) (transport.UserResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.UserResponse{}, apperr.NotFound(msgUserNotFound)
		}
		return transport.UserResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load user", err)
	}
	return toUserResponse(user), nil
}

// ListUsers returns every active user, used by terminals to resolve advisor names.
func (s *Service) ListUsers(ctx context.Context) ([]transport.UserResponse, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		s.log.DatabaseError("auth.ListUsers", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list users", err)
	}
	out := make([]transport.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out, nil
}

func (s *Service) signJWT(userID uuid.UUID, roles []string, ttl time.Duration, tokenType, secret string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   userID.String(),
		"type":  tokenType,
		"roles": roles,
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}

	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tokenObj.SignedString([]byte(secret))
}

func toUserResponse(u repository.User) transport.UserResponse {
	return transport.UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		Category:  u.Category,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}
