package http

import (
	"net/http"
	"time"

	"github.com/alone-wolf/rutify/internal/domain"
	obsmw "github.com/alone-wolf/rutify/internal/observability/middleware"
	"github.com/alone-wolf/rutify/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	CORSOrigins       []string
	RateLimitPerMin   int
	NotifyRequireAuth bool
	RequestTimeout    time.Duration
}

type Deps struct {
	Auth   service.AuthService
	Notify service.NotifyService
	WS     http.Handler
	Config RouterConfig
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(obsmw.WithRequestAndTrace)
	r.Use(obsmw.PropagateRequestID)
	r.Use(chimw.Recoverer)
	r.Use(obsmw.WithMetrics)
	if cfg.RateLimitPerMin > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   originsOrAny(cfg.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id", "X-Trace-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: len(cfg.CORSOrigins) > 0,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Long-lived; kept outside the request timeout.
	if d.WS != nil {
		r.Get("/ws", d.WS.ServeHTTP)
	}

	notify := notifyHandlers{svc: d.Notify}
	auth := authHandlers{svc: d.Auth}

	r.Group(func(api chi.Router) {
		api.Use(chimw.Timeout(cfg.RequestTimeout))

		api.Group(func(pr chi.Router) {
			if cfg.NotifyRequireAuth {
				pr.Use(requireBearer(d.Auth, domain.TokenKindNotifyBearer))
			}
			pr.Post("/notify", notify.postNotify)
			pr.Get("/notify", notify.getNotify)
		})

		api.Get("/api/notifies", notify.list)
		api.Get("/api/stats", notify.stats)
		api.Get("/api/states", notify.stats)

		api.Post("/auth/register", auth.register)
		api.Post("/auth/login", auth.login)

		api.Group(func(pr chi.Router) {
			pr.Use(requireBearer(d.Auth, domain.TokenKindUserSession))

			pr.Delete("/api/notifies", notify.deleteAll)
			pr.Delete("/api/notifies/{id}", notify.deleteOne)

			pr.Get("/auth/profile", auth.profile)
			pr.Post("/auth/tokens", auth.createToken)
			pr.Get("/auth/tokens", auth.listTokens)
			pr.Delete("/auth/tokens/{id}", auth.revokeToken)
			pr.Post("/auth/logout", auth.logout)
			pr.Post("/auth/logout/all", auth.logoutAll)
			pr.Get("/auth/admin/tokens", auth.listAllTokens)
		})
	})

	return r
}

func originsOrAny(in []string) []string {
	if len(in) == 0 {
		return []string{"*"}
	}
	return in
}
