// Package server exposes the api operations over HTTP. Every operation is a
// POST to /v1/<operation> with a body of the form {"data": {...}} and
// answers {"result": {...}}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/api"
)

const maxBodyBytes = 1 << 20

type Server struct {
	service *api.Service
	auth    *Authenticator
	addr    string
	logger  *zap.Logger
}

func New(service *api.Service, auth *Authenticator, addr string, logger *zap.Logger) *Server {
	return &Server{
		service: service,
		auth:    auth,
		addr:    addr,
		logger:  logger.With(zap.String("component", "http")),
	}
}

// Router builds the chi router with every operation mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	svc := s.service
	r.Route("/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Post("/submit_message", handle(s, svc.SubmitMessage))
		r.Post("/list_facts", handle(s, svc.ListFacts))
		r.Post("/facts_summary", handleNoInput(s, svc.FactsSummary))
		r.Post("/facts_by_priority", handle(s, svc.FactsByPriority))
		r.Post("/generate_recommendations", handle(s, svc.GenerateRecommendations))
		r.Post("/recommendation_tags", handleNoInput(s, svc.RecommendationTags))
		r.Post("/update_fact", handle(s, svc.UpdateFact))
		r.Post("/delete_fact", handle(s, svc.DeleteFact))
		r.Post("/chat", handle(s, svc.Chat))
		r.Post("/chat_history", handleNoInput(s, svc.ChatHistory))
		r.Post("/clear_chat", handleNoInput(s, svc.ClearChat))
		r.Post("/store_profile", handleNoInput(s, svc.StoreProfile))
		r.Post("/generate_random_cards", handle(s, svc.GenerateRandomCards))
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type resultEnvelope struct {
	Result any `json:"result"`
}

type errorBody struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func handle[Req, Resp any](s *Server, op func(context.Context, api.Caller, Req) Resp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in envelope[Req]
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
			return
		}
		s.writeJSON(w, op(r.Context(), CallerFrom(r.Context()), in.Data))
	}
}

func handleNoInput[Resp any](s *Server, op func(context.Context, api.Caller) Resp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, op(r.Context(), CallerFrom(r.Context())))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resultEnvelope{Result: v}); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Status = code
	body.Error.Message = message
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode error", zap.Error(err))
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("Request handled",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}
