package console

import (
	"errors"
	"net/http"

	"hermandad.org/internal/auth"
	"hermandad.org/internal/notify"
	"hermandad.org/internal/obs"
)

// Paths reachable without a session.
var publicPaths = map[string]bool{
	"/":             true,
	"/login":        true,
	"/healthz":      true,
	"/readyz":       true,
	"/metrics":      true,
	"/unauthorized": true,
}

// probePaths never touch the session store.
var probePaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

func isPublicPath(path string) bool { return publicPaths[path] }

func principalFrom(r *http.Request) (auth.Principal, bool) {
	return auth.PrincipalFromContext(r.Context())
}

// guard resolves the stored session of the workspace. Private paths without
// a live session are redirected to /login.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if probePaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		ws := workspaceFrom(r.Context())
		principal, err := auth.Authenticate(r.Context(), s.store, ws.ID, s.now())
		if err == nil {
			r = r.WithContext(auth.ContextWithPrincipal(r.Context(), principal))
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		switch {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, auth.ErrSessionExpired):
			s.restart(ws.ID, "Su sesión ha expirado, inicie sesión nuevamente")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		case errors.Is(err, auth.ErrUnauthenticated):
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		default:
			obs.Error("session load failed", map[string]any{
				"request_id": obs.RequestIDFromContext(r.Context()),
				"error":      err.Error(),
			})
			respondError(w, r, http.StatusServiceUnavailable, "session store unavailable")
		}
	})
}

// require lets h run only when the principal holds capability.
func (s *Server) require(capability string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.Require(r.Context(), capability); err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
			return
		}
		h(w, r)
	}
}

// expire ends the session after the API rejected its token.
func (s *Server) expire(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	if ws != nil {
		if err := s.store.Clear(r.Context(), ws.ID); err != nil {
			obs.Warn("clear session failed", map[string]any{"error": err.Error()})
		}
		s.restart(ws.ID, "Su sesión ha expirado, inicie sesión nuevamente")
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// restart replaces the workspace of id with an empty one, optionally
// queuing a warning for the next screen.
func (s *Server) restart(id, warning string) {
	s.workspaces.drop(id)
	if warning != "" {
		notify.Warning(s.workspaces.get(id, s.now()).notifier, warning)
	}
}
