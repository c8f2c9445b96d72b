package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/digkill/TiendiaBot/internal/models"
	"github.com/digkill/TiendiaBot/internal/session"
	"github.com/digkill/TiendiaBot/internal/telemetry"
)

// PushReceiver applies a push notification to the chat it is addressed to.
type PushReceiver interface {
	HandlePush(ctx context.Context, chatID int64, data models.PushData) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, text string) (sent, total int, err error)
}

type Server struct {
	addr        string
	username    string
	password    string
	log         *slog.Logger
	push        PushReceiver
	broadcaster Broadcaster
	router      *chi.Mux
}

func NewServer(addr, username, password string, log *slog.Logger, push PushReceiver, broadcaster Broadcaster) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.Middleware)

	s := &Server{
		addr:        addr,
		username:    username,
		password:    password,
		log:         log,
		push:        push,
		broadcaster: broadcaster,
		router:      r,
	}
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(protected chi.Router) {
		protected.Use(s.basicAuthMiddleware())
		protected.Post("/push", s.handlePush)
		protected.Post("/broadcast", s.handleBroadcast)
	})
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("admin shutdown error", "err", err)
		}
	}()

	s.log.Info("admin server listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pushRequest mirrors the payload of an Expo-style push message. To is the
// push token registered by the chat, which is the chat id.
type pushRequest struct {
	To   string          `json:"to"`
	Data models.PushData `json:"data"`
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(req.To), 10, 64)
	if err != nil {
		http.Error(w, "invalid push token", http.StatusBadRequest)
		return
	}
	if req.Data.Action == "" {
		http.Error(w, "action required", http.StatusBadRequest)
		return
	}

	if err := s.push.HandlePush(r.Context(), chatID, req.Data); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			http.Error(w, "chat not signed in", http.StatusNotFound)
			return
		}
		s.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type broadcastRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}

	sent, total, err := s.broadcaster.Broadcast(r.Context(), req.Message)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sent":  sent,
		"total": total,
	})
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.username || pass != s.password {
				w.Header().Set("WWW-Authenticate", `Basic realm="tiendia"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("admin handler error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
