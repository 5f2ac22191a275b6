// Package httpapi exposes the gateway over HTTP: the chi router, its auth and
// storage middleware and the JSON handlers.
package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/photogate/internal/logging"
	"github.com/dmitrijs2005/photogate/internal/server/metrics"
	"github.com/dmitrijs2005/photogate/internal/server/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps are the collaborators the router needs. PublicStore is optional; the
// public download route exists only when it is set.
type Deps struct {
	Users          UserAPI
	Gallery        Gallery
	Tokens         TokenVerifier
	Stores         StoreResolver
	PublicStore    storage.ObjectStore
	Metrics        *metrics.Metrics
	Logger         logging.Logger
	BaseURL        string
	SetupPath      string
	AllowedOrigins []string
}

func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = logging.Nop{}
	}
	log = log.With("module", "httpapi")

	m := d.Metrics
	if m == nil {
		m = metrics.New()
	}

	h := &handler{
		users:       d.Users,
		gallery:     d.Gallery,
		tokens:      d.Tokens,
		publicStore: d.PublicStore,
		baseURL:     d.BaseURL,
		metrics:     m,
		log:         log,
	}

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "Location"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		if d.PublicStore != nil {
			r.Get("/public/download", h.publicDownload)
		}

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(d.Tokens, log))

			r.Post("/logout", h.logout)
			r.Get("/config", h.config)
			r.Post("/user/s3-credentials", h.setStorageCredentials)

			r.Group(func(r chi.Router) {
				r.Use(RequireStorage(d.Stores, d.SetupPath, m.RecordSetupRequired, log))

				r.Get("/albums", h.listAlbums)
				r.Get("/settings", h.settings)
				r.Get("/images", h.listImages)
				r.Post("/upload", h.upload)
				r.Get("/download", h.download)
			})
		})
	})

	return r
}
