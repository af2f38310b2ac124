package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/hospital-workflow/internal/storage"
)

// HealthHandler reports process and dependency health. pgPool and redis are
// nil when the server runs on the in-memory store.
type HealthHandler struct {
	pgPool  *pgxpool.Pool
	redis   *redis.Client
	store   storage.ObjectStore
	env     string
	version string
}

func NewHealthHandler(pgPool *pgxpool.Pool, redis *redis.Client, store storage.ObjectStore, env, version string) *HealthHandler {
	return &HealthHandler{
		pgPool:  pgPool,
		redis:   redis,
		store:   store,
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	// Postgres holds every document; without it nothing works.
	if h.pgPool != nil {
		if err := ping(ctx, h.pgPool.Ping); err != nil {
			deps["postgres"] = "down"
			status = "error"
		} else {
			deps["postgres"] = "ok"
		}
	} else {
		deps["postgres"] = "disabled"
	}

	// Redis only guards writes, reads keep working.
	if h.redis != nil {
		if err := ping(ctx, func(c context.Context) error { return h.redis.Ping(c).Err() }); err != nil {
			deps["redis"] = "down"
			status = degrade(status)
		} else {
			deps["redis"] = "ok"
		}
	} else {
		deps["redis"] = "disabled"
	}

	if h.store != nil {
		if err := ping(ctx, h.store.Ping); err != nil {
			deps["object_store"] = "down"
			status = degrade(status)
		} else {
			deps["object_store"] = "ok"
		}
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	c, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return fn(c)
}

func degrade(status string) string {
	if status == "ok" {
		return "degraded"
	}
	return status
}
