package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"habittracker/internal/access"
	"habittracker/internal/service"

	"github.com/rs/zerolog"
)

type authenticator interface {
	Authenticate(ctx context.Context, token string) (access.Identity, error)
}

// HTTPAuth resolves "Authorization: Bearer <jwt>" to an identity.
type HTTPAuth struct {
	users authenticator
}

func NewHTTPAuth(users authenticator) *HTTPAuth {
	return &HTTPAuth{users: users}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			writeError(w, http.StatusUnauthorized, service.ErrUnauthenticated.Error())
			return
		}

		id, err := a.users.Authenticate(r.Context(), token)
		if errors.Is(err, service.ErrUnauthenticated) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, service.ErrUnauthenticated.Error())
			return
		}
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// identityFrom returns the caller set by HTTPAuth.
func identityFrom(ctx context.Context) (access.Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(access.Identity)
	return id, ok
}
