// Package publicpath bounces signed-in users away from the pages that only
// make sense without a session, such as the sign-in form.
package publicpath

import (
	"net/http"

	slogctx "github.com/veqryn/slog-context"
)

// RedirectTarget is where signed-in users are sent instead.
const RedirectTarget = "/"

// Middleware redirects requests for one of the given paths to RedirectTarget
// when they carry a non-empty cookie with the given name. Paths match exactly.
func Middleware(cookieName string, paths []string) func(http.Handler) http.Handler {
	public := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		public[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := public[r.URL.Path]; ok && hasCookie(r, cookieName) {
				slogctx.Debug(r.Context(), "Redirecting signed-in user away from a public path", "path", r.URL.Path)
				http.Redirect(w, r, RedirectTarget, http.StatusTemporaryRedirect)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasCookie(r *http.Request, name string) bool {
	c, err := r.Cookie(name)
	return err == nil && c.Value != ""
}
