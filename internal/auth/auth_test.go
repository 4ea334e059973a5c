package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintdeck/sprintdeck/internal/store"
)

func newTestVerifier(t *testing.T, bootstrapToken string) (*Verifier, store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	return NewVerifier(s, bootstrapToken), s
}

func TestNewToken(t *testing.T) {
	a := NewToken()
	b := NewToken()
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestVerify_Session(t *testing.T) {
	v, _ := newTestVerifier(t, "")
	ctx := context.Background()

	session, err := v.IssueSession(ctx, "u1", time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
}

func TestVerify_Failures(t *testing.T) {
	v, _ := newTestVerifier(t, "")
	ctx := context.Background()

	_, err := v.Verify(ctx, "")
	assert.Error(t, err)

	_, err = v.Verify(ctx, "no-such-token")
	assert.Error(t, err)
}

func TestVerify_ExpiredSession(t *testing.T) {
	v, _ := newTestVerifier(t, "")
	ctx := context.Background()

	session, err := v.IssueSession(ctx, "u1", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(ctx, session.Token)
	assert.Error(t, err)

	// Expired session is removed, not left behind
	_, err = v.Verify(ctx, session.Token)
	assert.Error(t, err)
}

func TestVerify_BootstrapToken(t *testing.T) {
	v, _ := newTestVerifier(t, "boot-secret")
	ctx := context.Background()

	id, err := v.Verify(ctx, "boot-secret")
	require.NoError(t, err)
	assert.Equal(t, "bootstrap", id.UserID)

	// Empty bootstrap config must not make the empty token valid
	v2, _ := newTestVerifier(t, "")
	_, err = v2.Verify(ctx, "")
	assert.Error(t, err)
}

func TestRevoke(t *testing.T) {
	v, _ := newTestVerifier(t, "")
	ctx := context.Background()

	session, err := v.IssueSession(ctx, "u1", time.Hour)
	require.NoError(t, err)
	require.NoError(t, v.Revoke(ctx, session.Token))

	_, err = v.Verify(ctx, session.Token)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	v, _ := newTestVerifier(t, "")
	ctx := context.Background()

	session, err := v.IssueSession(ctx, "u1", time.Hour)
	require.NoError(t, err)

	var gotUser string
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		require.True(t, ok)
		gotUser = id.UserID
	}))

	t.Run("valid token passes", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+session.Token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u1", gotUser)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "unauthorized")
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Basic abc123")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
