package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"learnhub/internal/config"
	"learnhub/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken   = errors.New("missing bearer token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrEmptyJWTSecret = errors.New("jwt secret cannot be empty")
)

// IdentityClaims carry the requester; the user id is the subject.
type IdentityClaims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type identityKey struct{}

// WithIdentity attaches who to ctx.
func WithIdentity(ctx context.Context, who domain.Requester) context.Context {
	return context.WithValue(ctx, identityKey{}, who)
}

// IdentityFrom returns the requester attached to ctx, or a guest.
func IdentityFrom(ctx context.Context) domain.Requester {
	who, _ := ctx.Value(identityKey{}).(domain.Requester)
	return who
}

// SignIdentity issues an HS256 token for who, valid for ttl.
func SignIdentity(cfg config.JWTConfig, who domain.Requester, ttl time.Duration) (string, error) {
	if cfg.Secret == "" {
		return "", ErrEmptyJWTSecret
	}
	now := time.Now()
	claims := &IdentityClaims{
		Email: who.Email,
		Role:  who.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.UserID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

// ParseIdentity validates a token and returns the requester it names.
func ParseIdentity(cfg config.JWTConfig, raw string) (domain.Requester, error) {
	if cfg.Secret == "" {
		return domain.Requester{}, ErrEmptyJWTSecret
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &IdentityClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return domain.Requester{}, err
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return domain.Requester{}, ErrInvalidToken
	}

	return domain.Requester{
		UserID: claims.Subject,
		Email:  strings.ToLower(strings.TrimSpace(claims.Email)),
		Role:   claims.Role,
	}, nil
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
