package interceptor

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/flowup/shared/utilities"
)

type contextKey struct{}

// SessionKey is the context key under which RequireSession stores the session.
var SessionKey = contextKey{}

// SessionResolver loads the session referenced by the request, failing when
// there is none.
type SessionResolver[T any] func(r *http.Request) (T, error)

// Options configures RequireSession.
type Options struct {
	// LoginPath receives unauthenticated page requests with a returnTo query.
	LoginPath string
	// APIPrefix marks routes that answer 401 instead of redirecting.
	APIPrefix string
	Logger    *zerolog.Logger
}

// RequireSession rejects requests without a live session. Page requests are
// redirected to the login route, API requests get a JSON 401.
func RequireSession[T any](resolve SessionResolver[T], opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := resolve(r)
			if err != nil {
				if opts.Logger != nil {
					opts.Logger.Debug().Err(err).Str("path", r.URL.Path).Msg("request without session")
				}
				reject(w, r, opts)
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session stored by RequireSession.
func SessionFromContext[T any](ctx context.Context) (T, bool) {
	session, ok := ctx.Value(SessionKey).(T)
	return session, ok
}

func reject(w http.ResponseWriter, r *http.Request, opts Options) {
	if opts.APIPrefix != "" && strings.HasPrefix(r.URL.Path, opts.APIPrefix) {
		utilities.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := url.Values{}
	q.Set("returnTo", r.URL.RequestURI())
	http.Redirect(w, r, opts.LoginPath+"?"+q.Encode(), http.StatusFound)
}
