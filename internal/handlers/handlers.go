// Package handlers exposes the services over HTTP with JSON and CSV
// responses on the route layout the web client expects.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mmynk/homequest/internal/auth"
	"github.com/mmynk/homequest/internal/metrics"
	"github.com/mmynk/homequest/internal/middleware"
	"github.com/mmynk/homequest/internal/service"
)

const defaultMaxUpload = 5 << 20

// Options tunes the transport.
type Options struct {
	// MaxUploadBytes caps the size of an uploaded CSV file.
	MaxUploadBytes int64
	// Production hides internal error details from responses.
	Production bool
}

// Handler serves the REST API.
type Handler struct {
	buyers   *service.BuyerService
	transfer *service.TransferService
	accounts *service.AuthService
	opts     Options
}

// New creates a Handler over the given services.
func New(buyers *service.BuyerService, transfer *service.TransferService, accounts *service.AuthService, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	return &Handler{
		buyers:   buyers,
		transfer: transfer,
		accounts: accounts,
		opts:     opts,
	}
}

// Routes builds the router. m may be nil, which disables /metrics.
func (h *Handler) Routes(jwtManager *auth.JWTManager, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)
	if m != nil {
		r.Use(m.Middleware)
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("pong"))
	})

	requireAuth := middleware.RequireAuth(jwtManager)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/signup", h.SignUp)
		r.Post("/signin", h.SignIn)
		r.Get("/csv_template", h.CSVTemplate)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/signout", h.SignOut)
			r.Get("/me", h.Me)
			r.Post("/import_csv", h.ImportCSV)
			r.Get("/export", h.ExportCSV)
			r.Get("/stats", h.Stats)
		})
	})

	r.Route("/buyer", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/add_buyers", h.AddBuyer)
		r.Get("/buyer", h.Buyers)
		r.Delete("/delete", h.DeleteBuyer)
		r.Put("/update_status", h.UpdateStatus)
		r.Put("/update_buyer", h.UpdateBuyer)
		r.Put("/edit/{id}", h.UpdateBuyer)
		r.Get("/history", h.History)
		r.Get("/get_count", h.Count)
	})

	return r
}
