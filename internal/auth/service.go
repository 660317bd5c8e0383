// Package auth implements the register, login, refresh, logout and me
// operations on top of the user directory, the refresh token store and the
// token codec.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/mockserver/internal/token"
	"github.com/example/mockserver/internal/tokenstore"
	"github.com/example/mockserver/internal/users"
)

// Directory is the subset of the user directory the service needs.
type Directory interface {
	FindByCredentials(ctx context.Context, identifier, password string) (users.User, bool)
	FindByID(ctx context.Context, id int64) (users.User, bool)
	Create(ctx context.Context, in users.NewUser) (users.User, error)
}

type Service struct {
	users    Directory
	refresh  tokenstore.Store
	codec    *token.Codec
	validate *validator.Validate
	log      *slog.Logger
}

func NewService(dir Directory, refresh tokenstore.Store, codec *token.Codec, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		users:    dir,
		refresh:  refresh,
		codec:    codec,
		validate: validator.New(),
		log:      log.With("component", "auth"),
	}
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required_without=Username"`
	Username string `json:"username"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type LoginInput struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

type loginCheck struct {
	Identifier string `validate:"required"`
	Password   string `validate:"required"`
}

// Session is returned by Register and Login.
type Session struct {
	User         map[string]any `json:"user"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, ErrRegisterFieldsRequired
	}

	u, err := s.users.Create(ctx, users.NewUser{
		Email:    in.Email,
		Username: in.Username,
		Password: in.Password,
		FullName: in.FullName,
		Role:     in.Role,
	})
	if errors.Is(err, users.ErrConflict) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	sess, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "user registered", "user_id", u.ID)
	return sess, nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	check := loginCheck{Identifier: firstNonEmpty(in.Identifier, in.Email, in.Username), Password: in.Password}
	if err := s.validate.Struct(check); err != nil {
		return nil, ErrLoginFieldsRequired
	}

	u, ok := s.users.FindByCredentials(ctx, check.Identifier, check.Password)
	if !ok {
		s.log.DebugContext(ctx, "login rejected")
		return nil, ErrInvalidCredentials
	}

	sess, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}
	s.log.DebugContext(ctx, "user logged in", "user_id", u.ID)
	return sess, nil
}

// Refresh exchanges a tracked, unexpired refresh token for a new access
// token. The refresh token itself stays valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, decoded := s.codec.Decode(refreshToken)
	owner, tracked, err := s.refresh.Get(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("lookup refresh token: %w", err)
	}
	if !decoded || !tracked {
		s.log.DebugContext(ctx, "refresh rejected", "decoded", decoded, "tracked", tracked)
		return "", ErrInvalidRefreshToken
	}
	sub, ok := claims.Subject()
	if !ok || sub != owner {
		s.log.DebugContext(ctx, "refresh rejected", "reason", "subject mismatch")
		return "", ErrInvalidRefreshToken
	}

	access, err := s.codec.Encode(token.Claims{token.ClaimSubject: sub}, token.AccessTTL)
	if err != nil {
		return "", fmt.Errorf("encode access token: %w", err)
	}
	s.log.DebugContext(ctx, "access token refreshed", "user_id", sub)
	return access, nil
}

// Logout forgets refreshToken. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refresh.Delete(ctx, refreshToken); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	s.log.DebugContext(ctx, "refresh token revoked")
	return nil
}

// Me resolves the user behind an Authorization header value.
func (s *Service) Me(ctx context.Context, authorization string) (map[string]any, error) {
	claims, ok := s.codec.Decode(BearerToken(authorization))
	if !ok {
		return nil, ErrUnauthorized
	}
	sub, ok := claims.Subject()
	if !ok {
		return nil, ErrUserNotFound
	}
	u, ok := s.users.FindByID(ctx, sub)
	if !ok {
		return nil, ErrUserNotFound
	}
	return u.Public(), nil
}

// BearerToken strips the "Bearer " scheme; anything else yields "".
func BearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return header[len(prefix):]
}

func (s *Service) issue(ctx context.Context, u users.User) (*Session, error) {
	access, err := s.codec.Encode(token.Claims{token.ClaimSubject: u.ID}, token.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("encode access token: %w", err)
	}
	refresh, err := s.codec.Encode(token.Claims{token.ClaimSubject: u.ID, token.ClaimType: token.TypeRefresh}, token.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("encode refresh token: %w", err)
	}
	if err := s.refresh.Put(ctx, refresh, u.ID); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &Session{User: u.Public(), AccessToken: access, RefreshToken: refresh}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
