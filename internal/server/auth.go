package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/api"
)

// Claims are the identity claims carried by a caller's bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	logger *zap.Logger
}

func NewAuthenticator(secret string, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		logger: logger.With(zap.String("component", "auth")),
	}
}

// Verify parses tokenString and returns the caller it identifies.
func (a *Authenticator) Verify(tokenString string) (api.Caller, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return api.Caller{}, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return api.Caller{}, fmt.Errorf("invalid or expired token")
	}
	if claims.Subject == "" {
		return api.Caller{}, fmt.Errorf("token has no subject")
	}
	return api.Caller{
		UserID:  claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

// Issue signs a token for caller valid for ttl.
func (a *Authenticator) Issue(caller api.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:   caller.Email,
		Name:    caller.Name,
		Picture: caller.Picture,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware attaches the verified caller to the request context. Requests
// without a valid token pass through anonymously and the operation itself
// answers that authentication is required.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			next.ServeHTTP(w, r)
			return
		}
		caller, err := a.Verify(tokenString)
		if err != nil {
			a.logger.Debug("Rejected bearer token", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

type callerKey struct{}

func withCaller(ctx context.Context, caller api.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller attached by Middleware, or an anonymous one.
func CallerFrom(ctx context.Context) api.Caller {
	caller, _ := ctx.Value(callerKey{}).(api.Caller)
	return caller
}
