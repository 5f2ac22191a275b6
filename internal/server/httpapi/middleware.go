package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/photogate/internal/common"
	"github.com/dmitrijs2005/photogate/internal/logging"
	"github.com/dmitrijs2005/photogate/internal/server/auth"
	"github.com/dmitrijs2005/photogate/internal/server/storage"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey int

const (
	identityKey contextKey = iota
	storeKey
)

// TokenVerifier checks bearer tokens and revokes them on logout.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (auth.Identity, error)
	Revoke(ctx context.Context, id auth.Identity) error
}

// StoreResolver builds the caller's object store.
type StoreResolver interface {
	ForUser(ctx context.Context, userID string) (storage.ObjectStore, error)
}

// IdentityFrom returns the verified caller bound by RequireAuth.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}

// StoreFrom returns the store bound by RequireStorage.
func StoreFrom(ctx context.Context) (storage.ObjectStore, bool) {
	s, ok := ctx.Value(storeKey).(storage.ObjectStore)
	return s, ok
}

// RequireAuth validates "Authorization: Bearer <token>". A missing header
// is 401; a token that fails verification is 403.
func RequireAuth(tokens TokenVerifier, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(common.AuthorizationHeaderName)
			if header == "" {
				writeError(w, r, log, common.ErrUnauthenticated)
				return
			}

			token, ok := strings.CutPrefix(header, common.BearerPrefix)
			if !ok {
				writeError(w, r, log, common.ErrInvalidToken)
				return
			}

			id, err := tokens.VerifyToken(r.Context(), strings.TrimSpace(token))
			if err != nil {
				writeError(w, r, log, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStorage resolves the caller's store. When the caller has not set up
// storage yet the response is a 302 to setupPath with a JSON body naming it.
func RequireStorage(stores StoreResolver, setupPath string, onSetup func(), log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, r, log, common.ErrUnauthenticated)
				return
			}

			store, err := stores.ForUser(r.Context(), id.UserID)
			if err != nil {
				if errors.Is(err, common.ErrNeedsSetup) {
					if onSetup != nil {
						onSetup()
					}
					w.Header().Set("Location", setupPath)
					writeJSON(w, http.StatusFound, errorBody{Error: common.ErrNeedsSetup.Error(), Redirect: setupPath})
					return
				}
				writeError(w, r, log, err)
				return
			}

			ctx := context.WithValue(r.Context(), storeKey, store)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestLogger logs method, path, status and duration of every request.
func requestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Info(r.Context(), "request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
