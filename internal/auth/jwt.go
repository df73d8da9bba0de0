package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"staybook/internal/config"
	"staybook/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Gate verifies HMAC-signed bearer tokens and resolves them to a Caller.
type Gate struct {
	secret []byte
	issuer string
	skew   time.Duration
	now    func() time.Time
}

func NewGate(cfg config.AuthConfig) (*Gate, error) {
	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		return nil, errors.New("auth secret not configured")
	}
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = 2 * time.Minute
	}
	return &Gate{
		secret: []byte(secret),
		issuer: cfg.Issuer,
		skew:   skew,
		now:    time.Now,
	}, nil
}

// Resolve parses the token and returns the caller it identifies.
func (g *Gate) Resolve(tokenString string) (models.Caller, error) {
	if tokenString == "" {
		return models.Caller{}, ErrMissingToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithLeeway(g.skew),
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	}
	if g.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(g.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return g.secret, nil
	}, parserOpts...)
	if err != nil {
		return models.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return models.Caller{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Caller{}, fmt.Errorf("%w: claims not map", ErrInvalidToken)
	}
	return callerFromClaims(claims)
}

// Issue signs a token for caller valid for ttl. Used by tooling and tests.
func (g *Gate) Issue(caller models.Caller, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	now := g.now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(caller.ID, 10),
		"role": string(caller.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	if g.issuer != "" {
		claims["iss"] = g.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

func callerFromClaims(claims jwt.MapClaims) (models.Caller, error) {
	id, err := claimID(claims)
	if err != nil {
		return models.Caller{}, err
	}

	rawRole, _ := claims["role"].(string)
	role, err := models.ParseRole(rawRole)
	if err != nil {
		return models.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return models.Caller{ID: id, Role: role}, nil
}

// claimID reads the caller id from "sub", falling back to a numeric "id".
func claimID(claims jwt.MapClaims) (int64, error) {
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		id, err := strconv.ParseInt(sub, 10, 64)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("%w: subject is not a positive id", ErrInvalidToken)
		}
		return id, nil
	}
	switch v := claims["id"].(type) {
	case float64:
		if v > 0 && v == float64(int64(v)) {
			return int64(v), nil
		}
	case string:
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: missing caller id", ErrInvalidToken)
}

func ExtractBearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

type contextKey struct{}

func WithCaller(ctx context.Context, caller models.Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, caller)
}

func CallerFromContext(ctx context.Context) (models.Caller, bool) {
	caller, ok := ctx.Value(contextKey{}).(models.Caller)
	return caller, ok
}
