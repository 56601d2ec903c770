package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voiced/internal/registry"
	"voiced/pkg/types"
)

// Service defines the methods required by the admin HTTP API layer.
type Service interface {
	Status() types.StatusResponse
	Skills() []types.SkillStatus
	RecentEvents() []map[string]any
	Say(ctx context.Context, req types.SayRequest) error
	Query(ctx context.Context, req types.QueryRequest) (map[string]string, error)
	Ready() bool
}

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !svc.Ready() {
			writeJSONError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Get("/skills", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"skills": svc.Skills()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"events": svc.RecentEvents()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Post("/say", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.SayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.DeviceID) == "" || strings.TrimSpace(req.Text) == "" {
			writeJSONError(w, http.StatusBadRequest, "device_id and text are required")
			return
		}
		start := time.Now()
		if err := svc.Say(r.Context(), req); err != nil {
			if he, ok := err.(HTTPError); ok {
				writeJSONError(w, he.StatusCode(), err.Error())
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if zlog != nil {
			z := zlog.Info().Str("device", req.DeviceID).Dur("dur", time.Since(start))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("say dispatched")
		}
		w.WriteHeader(http.StatusAccepted)
	})

	r.Post("/query", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Skill) == "" || strings.TrimSpace(req.Name) == "" {
			writeJSONError(w, http.StatusBadRequest, "skill and name are required")
			return
		}
		results, err := svc.Query(r.Context(), req)
		if err != nil {
			switch {
			case registry.IsNotFound(err):
				writeJSONError(w, http.StatusNotFound, err.Error())
			default:
				writeJSONError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.QueryResponse{Results: results}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Handle("/metrics", promhttp.Handler())
	MountSwagger(r)
	return r
}
