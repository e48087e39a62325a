package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"agribot/internal/config"
	"agribot/internal/domain"
	"agribot/internal/metrics"
	"agribot/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AdminStore is the slice of the profile store the web surface needs.
type AdminStore interface {
	Stats(ctx context.Context) (*store.Stats, error)
	SearchTurns(ctx context.Context, query string, limit int) ([]domain.ConversationTurn, error)
	UpdateFarmer(ctx context.Context, phone string, upd domain.FarmerUpdate) error
}

// Web exposes health, stats, metrics, conversation search, and farmer
// profile updates over HTTP. The WhatsApp webhook is mounted on the same
// server so one listener serves both.
type Web struct {
	cfg      config.WebConfig
	store    AdminStore
	whatsapp http.Handler // optional, nil when the channel is disabled
	logger   *slog.Logger
	server   *http.Server
}

type WebChannelConfig struct {
	Config   config.WebConfig
	Store    AdminStore
	WhatsApp http.Handler
	Logger   *slog.Logger
}

func NewWeb(cfg WebChannelConfig) *Web {
	return &Web{
		cfg:      cfg.Config,
		store:    cfg.Store,
		whatsapp: cfg.WhatsApp,
		logger:   cfg.Logger,
	}
}

// Router builds the chi router. Admin endpoints sit behind bearer auth when
// a token is configured; health and the webhook stay open.
func (w *Web) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", w.handleHealth)

	if w.whatsapp != nil {
		r.Mount("/webhook", w.whatsapp)
	}

	r.Group(func(r chi.Router) {
		if w.cfg.AuthToken != "" {
			r.Use(w.bearerAuth)
		}
		r.Get("/stats", w.handleStats)
		r.Get("/metrics", metrics.Collector.Handler())
		r.Get("/conversations", w.handleConversations)
		r.Patch("/farmers/{phone}", w.handleUpdateFarmer)
	})

	return r
}

// Start runs the HTTP server until the context is cancelled.
func (w *Web) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", w.cfg.Host, w.cfg.Port)
	w.server = &http.Server{
		Addr:              addr,
		Handler:           w.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		w.logger.Info("web server listening", "addr", addr)
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return w.Stop()
	}
}

func (w *Web) Stop() error {
	if w.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return w.server.Shutdown(ctx)
}

func (w *Web) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+w.cfg.AuthToken {
			http.Error(rw, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func (w *Web) handleHealth(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": metrics.Collector.Uptime().String(),
	})
}

func (w *Web) handleStats(rw http.ResponseWriter, r *http.Request) {
	st, err := w.store.Stats(r.Context())
	if err != nil {
		w.logger.Error("stats query failed", "err", err)
		http.Error(rw, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(rw, http.StatusOK, st)
}

func (w *Web) handleConversations(rw http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	turns, err := w.store.SearchTurns(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		w.logger.Error("conversation search failed", "err", err)
		http.Error(rw, "Internal error", http.StatusInternalServerError)
		return
	}
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	writeJSON(rw, http.StatusOK, turns)
}

func (w *Web) handleUpdateFarmer(rw http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")

	var upd domain.FarmerUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(rw, "Bad request", http.StatusBadRequest)
		return
	}

	if err := w.store.UpdateFarmer(r.Context(), phone, upd); err != nil {
		w.logger.Warn("farmer update failed", "phone", phone, "err", err)
		http.Error(rw, "Not found", http.StatusNotFound)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{"status": "updated"})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
