// Package session answers the one question the ledger asks of authentication:
// is there a usable session for this request.
package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// Session is the authenticated principal attached to a request
type Session struct {
	UserID    string
	Name      string
	ExpiresAt time.Time
}

// Claims represents the JWT claims
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// Manager issues and validates session tokens
type Manager struct {
	config *config.JWTConfig
	now    func() time.Time
}

// NewManager creates a new session manager
func NewManager(cfg *config.JWTConfig) *Manager {
	return &Manager{config: cfg, now: time.Now}
}

// Issue mints a signed session token for the user
func (m *Manager) Issue(userID, name string) (string, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Name: name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.Secret))
}

// Validate parses a token and returns the session it carries
func (m *Manager) Validate(tokenString string) (*Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Unauthorized("invalid session token")
		}
		return []byte(m.config.Secret), nil
	}, jwt.WithIssuer(m.config.Issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Unauthorized("session expired")
		}
		return nil, errors.Unauthorized("invalid session token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.Unauthorized("invalid session token")
	}

	s := &Session{UserID: claims.Subject, Name: claims.Name}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// session in the request context
func (m *Manager) Middleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.Error(w, errors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				httputil.Error(w, errors.Unauthorized("invalid authorization header format"))
				return
			}

			s, err := m.Validate(parts[1])
			if err != nil {
				log.Debug().Err(err).Msg("session validation failed")
				httputil.Error(w, err)
				return
			}

			ctx := WithSession(r.Context(), s)
			ctx = httputil.WithUserID(ctx, s.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type contextKey struct{}

// WithSession attaches a session to the context
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session on the context, if any
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}

// Require fails with UNAUTHORIZED when the context carries no session
func Require(ctx context.Context) (*Session, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return nil, errors.Unauthorized("no active session")
	}
	return s, nil
}

// System returns a context carrying the session used by background jobs
func System(ctx context.Context) context.Context {
	return WithSession(ctx, &Session{UserID: "system", Name: "scheduler"})
}
