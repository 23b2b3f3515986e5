// Package http is the thin transport layer over the registry service.
package http

import (
	"net/http"
	"strings"
	"time"

	"registry/internal/auth"
	obsmw "registry/internal/observability/middleware"
	"registry/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(svc *service.Service, verifier *auth.Verifier, corsOrigins string) http.Handler {
	h := &handlers{svc: svc}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(httprate.LimitByIP(100, 1*time.Minute))

	origins := strings.Split(corsOrigins, ",")
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   originsIfSet(origins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Logger)
	r.Use(obsmw.WithMetrics)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/packages", h.upload)
	r.Get("/tarballs/{oid}", h.tarball)
	r.Get("/packages/{namespace}/{package}", h.getPackage)
	r.Get("/packages/{namespace}/{package}/maintainers", h.listMaintainers)
	r.Get("/packages/{namespace}/{package}/{version}", h.getPackageVersion)

	// endpoints below act on behalf of an authenticated user
	r.Group(func(r chi.Router) {
		r.Use(verifier.Middleware)
		r.Post("/packages/{namespace}/{package}/uploadToken", h.createUploadToken)
		r.Post("/packages/{namespace}/{package}/verify", h.verifyUserRole)
		r.Post("/packages/{namespace}/{package}/delete", h.deletePackage)
		r.Post("/packages/{namespace}/{package}/{version}/delete", h.deletePackageVersion)
		r.Post("/ratings/{namespace}/{package}", h.ratePackage)
		r.Post("/report/{namespace}/{package}", h.reportPackage)
		r.Get("/report/view", h.viewReports)
	})

	return r
}

func originsIfSet(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
