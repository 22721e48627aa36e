package routes

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/rentals-backend/api/controllers"
	"github.com/angelmondragon/rentals-backend/api/middleware"
	"github.com/angelmondragon/rentals-backend/internal/auth"
	"github.com/angelmondragon/rentals-backend/internal/availability"
	"github.com/angelmondragon/rentals-backend/internal/booking"
	"github.com/angelmondragon/rentals-backend/internal/catalog"
	"github.com/angelmondragon/rentals-backend/internal/clients"
	"github.com/angelmondragon/rentals-backend/internal/payments"
	"github.com/angelmondragon/rentals-backend/internal/uploads"
	"github.com/angelmondragon/rentals-backend/internal/users"
	"github.com/angelmondragon/rentals-backend/pkg/auth/session"
	"github.com/angelmondragon/rentals-backend/pkg/config"
	"github.com/angelmondragon/rentals-backend/pkg/logger"
	"github.com/angelmondragon/rentals-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/rentals-backend/pkg/redis"
)

// cacheStore backs login throttling and idempotent replays.
type cacheStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Dependencies is everything the HTTP surface needs from cmd/api.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Ready       map[string]controllers.Pinger

	Cache    cacheStore
	Sessions session.AccessSessionChecker

	Auth         auth.Service
	Users        users.Service
	Catalog      catalog.Service
	Availability availability.Checker
	Clients      clients.Service
	Booking      booking.Service
	Payments     payments.Service
	Uploads      uploads.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginUsernameLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/robots.txt", controllers.Robots())
	mountStatic(r, cfg.Media)

	maxUploadBytes := int64(cfg.Media.MaxUploadMB) << 20

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", controllers.Version(cfg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Cache, logg)).
			Post("/login/access-token", controllers.AuthLogin(deps.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Use(middleware.Idempotency(deps.Cache, logg))

			r.Post("/logout", controllers.AuthLogout(deps.Auth, logg))

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", controllers.UsersMe(deps.Users, logg))
				r.Get("/{userID}", controllers.UsersGet(deps.Users, logg))
				r.With(middleware.RequireSuperuser(logg)).Get("/", controllers.UsersList(deps.Users, logg))
				r.With(middleware.RequireSuperuser(logg)).Post("/", controllers.UsersCreate(deps.Users, logg))
			})

			r.Route("/items", func(r chi.Router) {
				r.Get("/", controllers.ItemsList(deps.Catalog, logg))
				r.Post("/", controllers.ItemCreate(deps.Catalog, logg))
				for _, facet := range catalog.Facets() {
					r.Get("/"+string(facet), controllers.ItemFacetValues(deps.Catalog, facet, logg))
				}
				r.Get("/distinct/{facet}", controllers.ItemFacet(deps.Catalog, logg))
				r.Get("/availability/{itemID}", controllers.ItemAvailability(deps.Availability, logg))
				r.Route("/{itemID}", func(r chi.Router) {
					r.Get("/", controllers.ItemGet(deps.Catalog, logg))
					r.Put("/", controllers.ItemUpdate(deps.Catalog, logg))
					r.Patch("/", controllers.ItemUpdate(deps.Catalog, logg))
					r.Delete("/", controllers.ItemDelete(deps.Catalog, logg))
					r.Get("/availability", controllers.ItemAvailability(deps.Availability, logg))
					r.Post("/variants", controllers.VariantCreate(deps.Catalog, logg))
				})
			})

			r.Route("/variants/{variantID}", func(r chi.Router) {
				r.Get("/", controllers.VariantGet(deps.Catalog, logg))
				r.Put("/", controllers.VariantUpdate(deps.Catalog, logg))
				r.Patch("/", controllers.VariantUpdate(deps.Catalog, logg))
				r.Delete("/", controllers.VariantDelete(deps.Catalog, logg))
				r.Patch("/stock", controllers.VariantStock(deps.Catalog, logg))
				r.Get("/availability", controllers.VariantAvailability(deps.Availability, logg))
				r.Post("/maintenance", controllers.VariantMaintenance(deps.Booking, logg))
				r.Post("/restore", controllers.VariantRestore(deps.Booking, logg))
				r.Put("/status", controllers.VariantStatus(deps.Booking, logg))
			})

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", controllers.ClientsList(deps.Clients, logg))
				r.Post("/", controllers.ClientCreate(deps.Clients, logg))
				r.Get("/{clientID}", controllers.ClientGet(deps.Clients, logg))
				r.Put("/{clientID}", controllers.ClientUpdate(deps.Clients, logg))
				r.Patch("/{clientID}", controllers.ClientUpdate(deps.Clients, logg))
				r.Delete("/{clientID}", controllers.ClientDelete(deps.Clients, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrdersList(deps.Booking, logg))
				r.Post("/", controllers.OrderCreate(deps.Booking, logg))
				r.Route("/{orderID}", func(r chi.Router) {
					r.Get("/", controllers.OrderGet(deps.Booking, logg))
					r.Put("/", controllers.OrderUpdate(deps.Booking, logg))
					r.Patch("/", controllers.OrderUpdate(deps.Booking, logg))
					r.Delete("/", controllers.OrderArchive(deps.Booking, logg))
					r.Post("/status", controllers.OrderStatus(deps.Booking, logg))
					r.Get("/payments", controllers.OrderPaymentsList(deps.Payments, logg))
					r.Post("/payments", controllers.OrderPaymentCreate(deps.Booking, logg))
				})
			})

			r.Post("/upload/image", controllers.UploadImage(deps.Uploads, maxUploadBytes, logg))
		})
	})

	return r
}

// mountStatic serves uploaded images when they are published by this process.
func mountStatic(r chi.Router, cfg config.MediaConfig) {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if cfg.UploadDir == "" || !strings.HasPrefix(base, "/") {
		return
	}
	fs := http.StripPrefix(base, http.FileServer(http.Dir(cfg.UploadDir)))
	r.Handle(base+"/*", fs)
}
