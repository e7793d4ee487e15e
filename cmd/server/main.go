package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Simplici0/printcost/internal/auth"
	"github.com/Simplici0/printcost/internal/config"
	"github.com/Simplici0/printcost/internal/db"
	"github.com/Simplici0/printcost/internal/estimator"
	"github.com/Simplici0/printcost/internal/history"
	"github.com/Simplici0/printcost/internal/logger"
	"github.com/Simplici0/printcost/internal/migrations"
	"github.com/Simplici0/printcost/internal/pricing"
	"github.com/Simplici0/printcost/internal/seed"
	"github.com/Simplici0/printcost/internal/spools"
)

type server struct {
	auth      *auth.Service
	estimator *estimator.Service
	spools    *spools.Registry
	history   *history.Store
}

type errorResponse struct {
	Error string `json:"error"`
}

func main() {
	cfg := config.Load()

	pricingCfg, err := config.LoadPricing(cfg.PricingPath)
	if err != nil {
		fatal("failed to load pricing configuration", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		fatal("failed to open database", err)
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		fatal("failed to run database migrations", err)
	}

	if cfg.IsDev() {
		stats, err := seed.Run(database, seed.Config{AdminEmail: cfg.AdminEmail, AdminPassword: cfg.AdminPassword})
		if err != nil {
			fatal("failed to seed database", err)
		}
		logger.Info("seed finished", "inserts", stats.Inserts)
	}

	srv := newServer(database, cfg.SessionSecret, pricingCfg)

	addr := ":" + cfg.Port
	logger.Info("listening", "addr", addr, "spool_records", pricingCfg.UseSpoolRecords, "requires_login", pricingCfg.RequiresAuthenticatedUser)
	if err := http.ListenAndServe(addr, srv.routes()); err != nil {
		fatal("server stopped", err)
	}
}

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func newServer(database *sql.DB, sessionSecret string, pricingCfg pricing.PricingConfig) *server {
	registry := spools.NewRegistry(database)
	return &server{
		auth:      auth.NewService(database, sessionSecret),
		estimator: estimator.NewService(pricingCfg, registry),
		spools:    registry,
		history:   history.NewStore(database),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Post("/login", s.handleLoginSubmit)
	r.Post("/logout", s.handleLogout)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/settings", s.handleSettings)
		r.Post("/estimate", s.handleEstimate)

		r.Group(func(r chi.Router) {
			r.Use(s.estimateLoginGate)
			r.Get("/estimates", s.handleEstimatesList)
			r.Get("/estimates/{id}", s.handleEstimateDetail)
			r.Get("/estimates/{id}/text", s.handleEstimateText)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/spools", s.handleSpoolsList)
			r.Post("/spools", s.handleSpoolsCreate)
			r.Post("/spools/{id}", s.handleSpoolsUpdate)
			r.Put("/tools/{tool}/spool", s.handleToolSelect)
			r.Delete("/tools/{tool}/spool", s.handleToolDeselect)
		})
	})

	return r
}

func (s *server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")
	user, valid, err := s.auth.Authenticate(r.Context(), email, password)
	if err != nil {
		logger.Error("authentication error", "error", err)
		writeError(w, http.StatusInternalServerError, "authentication error")
		return
	}
	if !valid {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := s.auth.SetSessionCookie(w, user); err != nil {
		logger.Error("failed to start session", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "authentication error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.estimator.Pricing())
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.IsAuthenticated(r) {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// estimateLoginGate hides saved estimates from anonymous users when pricing requires a login,
// matching what handleEstimate shows them.
func (s *server) estimateLoginGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.estimator.Pricing().RequiresAuthenticatedUser && !s.auth.IsAuthenticated(r) {
			writeError(w, http.StatusUnauthorized, estimator.NotLoggedIn)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logger.Error("failed to encode response", "status", status, "error", err)
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(errorResponse{Error: "failed to encode response"})
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
