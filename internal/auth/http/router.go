package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/taskdeck/taskdeck/internal/auth/service"
	"github.com/taskdeck/taskdeck/internal/auth/store"
	"github.com/taskdeck/taskdeck/pkg/httpx"
	"github.com/taskdeck/taskdeck/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store         store.Store
	Accounts      *service.AccountService
	Authority     *service.SessionAuthority
	Authenticator *service.Authenticator
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAccounts()
	r.registerSessions()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAccounts() {
	// POST /register - strict rate limit by IP (public account creation)
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(&RegisterHandler{Accounts: r.Accounts},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /login - strict rate limit by IP (brute force prevention)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(&LoginHandler{Accounts: r.Accounts, Authority: r.Authority},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /change-password - re-verifies the current password, so it gets
	// the strict limit too.
	r.Mux.Handle("POST /v1/auth/change-password",
		httpx.Chain(&ChangePasswordHandler{Accounts: r.Accounts},
			AuthnMiddleware(r.Authenticator),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSessions() {
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(&LogoutHandler{Authority: r.Authority},
			AuthnMiddleware(r.Authenticator),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(&LogoutAllHandler{Authority: r.Authority},
			AuthnMiddleware(r.Authenticator),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// POST /tab-session - a new tab has no key yet, so the tab check is
	// skipped here and only here.
	r.Mux.Handle("POST /v1/auth/tab-session",
		httpx.Chain(&TabSessionHandler{Authority: r.Authority},
			AuthnSkipTabMiddleware(r.Authenticator),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /v1/auth/sessions",
		httpx.Chain(&SessionsHandler{Authority: r.Authority},
			AuthnMiddleware(r.Authenticator),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /v1/auth/security-events",
		httpx.Chain(&SecurityEventsHandler{Store: r.store},
			AuthnMiddleware(r.Authenticator),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /v1/auth/profile",
		httpx.Chain(&ProfileHandler{Store: r.store},
			AuthnMiddleware(r.Authenticator),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	r.Mux.Handle("GET /metrics", promhttp.Handler())
}
