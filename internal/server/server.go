package server

import (
	"context"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/playku/playku/internal/analytics"
	"github.com/playku/playku/internal/audio"
	"github.com/playku/playku/internal/auth"
	"github.com/playku/playku/internal/catalog"
	"github.com/playku/playku/internal/database"
	"github.com/playku/playku/internal/docs"
	"github.com/playku/playku/internal/httputil"
	"github.com/playku/playku/internal/ratelimit"
	"github.com/playku/playku/internal/settings"
	"github.com/playku/playku/internal/shop"
	"github.com/playku/playku/internal/shopify"
	"github.com/playku/playku/internal/validate"
	"github.com/playku/playku/internal/webhook"
)

const (
	limiterSweepInterval = time.Minute
	webhookPruneInterval = time.Hour
	webhookRetention     = 72 * time.Hour
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB                database.DBTX
	Pinger            Pinger
	Storage           audio.ObjectStorage
	Geo               analytics.GeoResolver
	TokenSealer       *shop.Sealer
	TokenExchanger    shop.Exchanger
	HTTPClient        *http.Client
	ShopifyAPIKey     string
	ShopifyAPISecret  string
	ShopifyAPIVersion string
	BaseURL           string
	MaxUploadBytes    int64
	StorageEndpoint   string
	InjectAssetDir    string
	AdminFS           fs.FS
	// ProxyMaxAge bounds how old a signed app proxy request may be. Zero
	// disables the check.
	ProxyMaxAge time.Duration
}

type Server struct {
	router chi.Router
	cfg    Config
	pinger Pinger

	shops     *shop.Store
	catalog   *catalog.Handler
	settings  *settings.Handler
	analytics *analytics.Handler
	audio     *audio.Handler
	shop      *shop.Handler
	webhooks  *webhook.Handler
	inject    *injectHandler

	session   *auth.Handler
	admin     *auth.Handler
	proxy     *auth.ProxyVerifier
	limiters  []*ratelimit.Limiter
	proxyRate *ratelimit.Limiter
	adminRate *ratelimit.Limiter
}

func New(cfg Config) *Server {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)

	s := &Server{router: r, cfg: cfg, pinger: cfg.Pinger}
	s.inject = newInjectHandler(cfg.InjectAssetDir, cfg.BaseURL+"/inject")

	if cfg.DB != nil {
		s.shops = shop.NewStore(cfg.DB, cfg.TokenSealer, cfg.ShopifyAPIVersion, cfg.HTTPClient)

		exchanger := cfg.TokenExchanger
		if exchanger == nil {
			exchanger = shopify.NewTokenExchanger(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, cfg.HTTPClient)
		}

		s.catalog = catalog.NewHandler(catalog.NewRepository(cfg.DB), s.shops, s.shops)
		s.settings = settings.NewHandler(settings.NewRepository(cfg.DB), s.shops)
		s.analytics = analytics.NewHandler(cfg.DB, cfg.Geo)
		s.shop = shop.NewHandler(s.shops, exchanger, s.inject.scriptURL())
		s.webhooks = webhook.NewHandler(cfg.DB, cfg.ShopifyAPISecret, s.shops)
		if cfg.Storage != nil {
			s.audio = audio.NewHandler(cfg.Storage, cfg.MaxUploadBytes)
		}

		s.session = auth.NewHandler(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, nil)
		s.admin = auth.NewHandler(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, s.shops)
		s.proxy = auth.NewProxyVerifier(cfg.ShopifyAPISecret, cfg.ProxyMaxAge)

		s.proxyRate = ratelimit.NewLimiter(5, 30, ratelimit.WithKey(ratelimit.ByShopAndIP))
		s.adminRate = ratelimit.NewLimiter(10, 40)
		s.limiters = append(s.limiters, s.proxyRate, s.adminRate)
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start runs the background housekeeping until ctx is done.
func (s *Server) Start(ctx context.Context) {
	for _, l := range s.limiters {
		go l.Run(ctx, limiterSweepInterval)
	}
	if s.cfg.DB != nil {
		go webhook.RunPruner(ctx, s.cfg.DB, webhookPruneInterval, webhookRetention)
	}
}

func (s *Server) routes() {
	s.router.Route("/inject", func(r chi.Router) {
		r.Use(publicAssetHeaders)
		r.NotFound(notFoundJSON)
		r.Get("/playku.js", s.inject.serveLoader)
		r.Get("/playku.wasm", s.inject.serveAsset)
		r.Get("/wasm_exec.js", s.inject.serveAsset)
	})

	if s.webhooks != nil {
		s.router.Post("/webhooks", s.webhooks.Receive)
	}

	if s.proxy != nil {
		s.router.Route("/apps/playku", func(r chi.Router) {
			r.Use(s.proxyRate.Middleware)
			r.Use(s.proxy.Middleware)
			r.NotFound(notFoundJSON)
			r.Post("/", s.catalog.Catalog)
			r.Get("/settings", s.settings.Widget)
			r.Post("/events", s.analytics.Track)
			r.Get("/{handle}", s.catalog.Lookup)
		})
	}

	s.router.Group(func(r chi.Router) {
		r.Use(securityHeaders(SecurityConfig{
			BaseURL:         s.cfg.BaseURL,
			StorageEndpoint: s.cfg.StorageEndpoint,
		}))

		r.Route("/api", func(r chi.Router) {
			r.NotFound(notFoundJSON)
			r.Get("/health", s.handleHealth)
			r.Get("/limits", s.handleLimits)
			r.Get("/docs", docs.HandleDocs)
			r.Get("/docs/openapi.yaml", docs.HandleSpec)
			if s.admin == nil {
				return
			}

			r.Group(func(r chi.Router) {
				r.Use(s.adminRate.Middleware)
				r.With(s.session.Middleware).Post("/session", s.shop.Session)

				r.Group(func(r chi.Router) {
					r.Use(s.admin.Middleware)
					r.Post("/script-tag", s.shop.RegisterScriptTag)
					r.Post("/metafield-definition", s.shop.CreateMetafieldDefinition)

					r.Get("/settings", s.settings.Get)
					r.Put("/settings", s.settings.Put)

					r.Get("/themes", s.catalog.ListThemes)
					r.Put("/themes/{theme}", s.catalog.PutTheme)

					r.Get("/products", s.catalog.ListProducts)
					r.Put("/products/{id}/audio", s.catalog.SetProductAudio)

					r.Get("/analytics", s.analytics.Summary)

					if s.audio != nil {
						r.Post("/audio/uploads", s.audio.CreateUpload)
						r.Post("/audio/uploads/complete", s.audio.CompleteUpload)
					}
				})
			})
		})

		if s.cfg.AdminFS != nil {
			admin := newAdminFileServer(s.cfg.AdminFS)
			r.NotFound(admin.ServeHTTP)
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func notFoundJSON(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteError(w, http.StatusNotFound, "not found")
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	limits := map[string]any{"fields": validate.FieldLimits()}
	if s.cfg.MaxUploadBytes > 0 {
		limits["maxUploadBytes"] = s.cfg.MaxUploadBytes
	}
	httputil.WriteJSON(w, http.StatusOK, limits)
}
