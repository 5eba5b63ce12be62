package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"hightechcross/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Session is an authenticated request identity.
type Session struct {
	User    domain.User
	TokenID string
	Claims  *jwt.RegisteredClaims
}

// AuthService issues, verifies and revokes bearer tokens.
type AuthService struct {
	users  UserRepository
	tokens TokenStore
	secret []byte
	cfg    settings
}

func NewAuthService(users UserRepository, tokens TokenStore, secret string, opts ...Option) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		secret: []byte(secret),
		cfg:    newSettings(opts),
	}
}

// Login checks credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", domain.ErrInvalidCredentials
	}
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return "", domain.ErrInvalidCredentials
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", domain.ErrInvalidCredentials
	}

	now := s.cfg.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(u.ID, 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.tokenTTL)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	s.cfg.logger.Info("user logged in", slog.Int64("user_id", u.ID))
	return signed, nil
}

// Authenticate resolves a token to its user.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (Session, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.cfg.now))
	if err != nil || !token.Valid {
		return Session{}, domain.ErrInvalidToken
	}

	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, fmt.Errorf("check token: %w", err)
	}
	if revoked {
		return Session{}, domain.ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Session{}, domain.ErrInvalidToken
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return Session{}, domain.ErrInvalidToken
		}
		return Session{}, err
	}
	return Session{User: u, TokenID: claims.ID, Claims: claims}, nil
}

// Logout revokes the session's token until it expires.
func (s *AuthService) Logout(ctx context.Context, sess Session) error {
	expiresAt := s.cfg.now().Add(s.cfg.tokenTTL)
	if sess.Claims != nil && sess.Claims.ExpiresAt != nil {
		expiresAt = sess.Claims.ExpiresAt.Time
	}
	if err := s.tokens.Revoke(ctx, sess.TokenID, expiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
