package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/photogate/internal/common"
	"github.com/dmitrijs2005/photogate/internal/logging"
	"github.com/dmitrijs2005/photogate/internal/server/auth"
	"github.com/dmitrijs2005/photogate/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newAuthenticator(t *testing.T, opts ...auth.Option) *auth.Authenticator {
	t.Helper()
	a, err := auth.NewAuthenticator([]byte(testSecret), time.Hour, opts...)
	require.NoError(t, err)
	return a
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

// protected serves 204 and records the identity it was given.
func protected(seen *auth.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFrom(r.Context())
		*seen = id
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAuth(t *testing.T) {
	a := newAuthenticator(t)
	valid, err := a.IssueToken("u-1", "alice")
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	old := newAuthenticator(t, auth.WithClock(func() time.Time { return past }))
	expired, err := old.IssueToken("u-1", "alice")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized, message: "authorization header required"},
		{name: "wrong scheme", header: "Basic " + valid, status: http.StatusForbidden, message: "invalid token"},
		{name: "empty token", header: "Bearer ", status: http.StatusUnauthorized, message: "authorization header required"},
		{name: "garbage", header: "Bearer not.a.jwt", status: http.StatusForbidden, message: "invalid token"},
		{name: "expired", header: "Bearer " + expired, status: http.StatusForbidden, message: "token expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen auth.Identity
			h := RequireAuth(a, logging.Nop{})(protected(&seen))

			req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
			if tt.header != "" {
				req.Header.Set(common.AuthorizationHeaderName, tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.message, decodeBody(t, rr)["error"])
			assert.Empty(t, seen.UserID)
		})
	}
}

func TestRequireAuth_ValidAndRevoked(t *testing.T) {
	a := newAuthenticator(t)
	token, err := a.IssueToken("u-1", "alice")
	require.NoError(t, err)

	var seen auth.Identity
	h := RequireAuth(a, logging.Nop{})(protected(&seen))

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	rr := call()
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "u-1", seen.UserID)
	assert.Equal(t, "alice", seen.Username)

	require.NoError(t, a.Revoke(context.Background(), seen))

	seen = auth.Identity{}
	rr = call()
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, seen.UserID)
}

type resolverFunc func(ctx context.Context, userID string) (storage.ObjectStore, error)

func (f resolverFunc) ForUser(ctx context.Context, userID string) (storage.ObjectStore, error) {
	return f(ctx, userID)
}

func withIdentity(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), identityKey, auth.Identity{UserID: userID})
	return r.WithContext(ctx)
}

func TestRequireStorage_NeedsSetup(t *testing.T) {
	hits := 0
	resolver := resolverFunc(func(context.Context, string) (storage.ObjectStore, error) {
		return nil, common.ErrNeedsSetup
	})
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatal("next must not run") })
	h := RequireStorage(resolver, "/s3-credentials", func() { hits++ }, logging.Nop{})(next)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, withIdentity(httptest.NewRequest(http.MethodGet, "/api/albums", nil), "u-1"))

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/s3-credentials", rr.Header().Get("Location"))
	assert.JSONEq(t, `{"error":"storage credentials required","redirect":"/s3-credentials"}`, rr.Body.String())
	assert.Equal(t, 1, hits)
}

func TestRequireStorage_BindsStore(t *testing.T) {
	mem := storage.NewMemoryStore("alice-photos", "https://s3.example.com")
	var asked string
	resolver := resolverFunc(func(_ context.Context, userID string) (storage.ObjectStore, error) {
		asked = userID
		return mem, nil
	})

	var got storage.ObjectStore
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = StoreFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireStorage(resolver, "/s3-credentials", nil, logging.Nop{})(next)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, withIdentity(httptest.NewRequest(http.MethodGet, "/api/albums", nil), "u-7"))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "u-7", asked)
	assert.Same(t, mem, got)
}

func TestRequireStorage_DirectoryFailure(t *testing.T) {
	resolver := resolverFunc(func(context.Context, string) (storage.ObjectStore, error) {
		return nil, common.ErrDirectory
	})
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatal("next must not run") })
	h := RequireStorage(resolver, "/s3-credentials", nil, logging.Nop{})(next)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, withIdentity(httptest.NewRequest(http.MethodGet, "/api/albums", nil), "u-1"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal server error", decodeBody(t, rr)["error"])
}

func TestRequireStorage_NoIdentity(t *testing.T) {
	resolver := resolverFunc(func(context.Context, string) (storage.ObjectStore, error) {
		t.Fatal("resolver must not run")
		return nil, nil
	})
	h := RequireStorage(resolver, "/s3-credentials", nil, logging.Nop{})(http.NotFoundHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/albums", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
