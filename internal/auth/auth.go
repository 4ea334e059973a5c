package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sprintdeck/sprintdeck/internal/models"
	"github.com/sprintdeck/sprintdeck/internal/store"
)

// Identity is the verified user identity attached to a request.
type Identity struct {
	UserID string
}

type contextKey struct{}

// FromContext returns the identity stored by the middleware, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok
}

// WithIdentity returns a context carrying the given identity. Exposed for
// handler tests.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// Verifier resolves bearer tokens to identities against the session store.
// An optional bootstrap token grants access before any session exists, so a
// fresh deployment can mint its first session.
type Verifier struct {
	store          store.Store
	bootstrapToken string
}

// NewVerifier creates a Verifier backed by the given store.
func NewVerifier(s store.Store, bootstrapToken string) *Verifier {
	return &Verifier{store: s, bootstrapToken: bootstrapToken}
}

// NewToken generates a random 32-byte hex session token.
func NewToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Verify resolves a bearer token to an identity.
func (v *Verifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("missing token")
	}
	if v.bootstrapToken != "" && token == v.bootstrapToken {
		return &Identity{UserID: "bootstrap"}, nil
	}

	session, err := v.store.GetSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("invalid token")
	}
	if time.Now().After(session.ExpiresAt) {
		_ = v.store.DeleteSession(ctx, token)
		return nil, fmt.Errorf("session expired")
	}
	return &Identity{UserID: session.UserID}, nil
}

// IssueSession creates a new session for the given user.
func (v *Verifier) IssueSession(ctx context.Context, userID string, ttl time.Duration) (*models.Session, error) {
	session := &models.Session{
		Token:     NewToken(),
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := v.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Revoke deletes the session for the given token.
func (v *Verifier) Revoke(ctx context.Context, token string) error {
	return v.store.DeleteSession(ctx, token)
}

// Middleware rejects requests without a valid bearer token and stores the
// resolved identity in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		id, err := v.Verify(r.Context(), token)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
