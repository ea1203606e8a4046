// Package httpapi exposes the travel assistant over JSON HTTP: auth, usage
// probes, the gated chat/feature dispatch and the billing webhook.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/viajai/server/internal/auth"
	"github.com/viajai/server/internal/billing"
	"github.com/viajai/server/internal/core"
	"github.com/viajai/server/internal/session"
	"github.com/viajai/server/internal/store"
	logx "github.com/viajai/server/pkg/logger"
)

// Server holds the wired collaborators behind the HTTP surface.
type Server struct {
	ctrl      *session.Controller
	sessions  *auth.Sessions
	users     *store.Store
	webhook   *billing.Webhook
	env       core.Environment
	rateLimit int
}

// New wires the HTTP surface. rateLimit is requests per IP per minute; a
// non-positive value disables the limiter.
func New(ctrl *session.Controller, sessions *auth.Sessions, users *store.Store, webhook *billing.Webhook, env core.Environment, rateLimit int) *Server {
	return &Server{
		ctrl:      ctrl,
		sessions:  sessions,
		users:     users,
		webhook:   webhook,
		env:       env,
		rateLimit: rateLimit,
	}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.LimitByIP(s.rateLimit, time.Minute))
		}
		r.Use(s.withIdentity)

		r.Get("/health", s.handleHealth)
		r.Get("/check_auth", s.handleCheckAuth)
		r.Get("/check_usage", s.handleCheckUsage)
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/chat", s.handleChat)
		r.Post("/feature/{id}", s.handleFeature)
		r.Get("/user/usage", s.handleUserUsage)
	})

	r.Post("/webhook/kiwify", s.handleKiwifyWebhook)

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logx.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type identityKey struct{}

// withIdentity resolves the caller from the session cookie, minting a token
// for first-time visitors so their conversation has a stable key.
func (s *Server) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if c, err := r.Cookie(auth.CookieName); err == nil {
			token = c.Value
		}
		if token == "" {
			token = s.sessions.NewToken()
			http.SetCookie(w, s.sessionCookie(token))
		}

		id := session.Identity{SessionID: token, ClientIP: clientIP(r)}

		if userID, ok, err := s.sessions.UserID(r.Context(), token); err != nil {
			respondError(w, err)
			return
		} else if ok {
			u, err := s.users.UserByID(r.Context(), userID)
			switch {
			case err == nil:
				id.User = u
			case err == store.ErrNotFound:
				// Stale binding; treat as anonymous.
				_ = s.sessions.Unbind(r.Context(), token)
			default:
				respondError(w, err)
				return
			}
		}

		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) sessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.env.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
}

func identityFrom(r *http.Request) session.Identity {
	id, _ := r.Context().Value(identityKey{}).(session.Identity)
	return id
}

// clientIP keys the anonymous trial quota: the first forwarded hop when the
// service sits behind a proxy, otherwise the peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
