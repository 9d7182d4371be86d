// Package health serves liveness and readiness probes for the process and
// the backing services it needs (MongoDB and Redis).
package health

import (
	"context"
	"net/http"
	"sync"

	"github.com/dalemusser/filesmanager/internal/app/system/jsonutil"
	"github.com/dalemusser/filesmanager/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is a backing service the process depends on.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f(ctx).
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Mongo pings the primary of client.
func Mongo(client *mongo.Client) Pinger {
	return PingFunc(func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	})
}

// Service names a dependency in probe output.
type Service struct {
	Name string
	Pinger
}

// Response is the body of GET /health.
type Response struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

type Handler struct {
	services []Service
	logger   *zap.Logger
}

func NewHandler(logger *zap.Logger, services ...Service) *Handler {
	return &Handler{services: services, logger: logger}
}

// Routes serves /, /ready and /live under the mount point.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Check)
	r.Get("/ready", h.Ready)
	r.Get("/live", h.Live)
	return r
}

// MountRootEndpoints adds the Kubernetes probe paths /ready, /readyz and
// /livez to r.
func MountRootEndpoints(r chi.Router, h *Handler) {
	r.Get("/ready", h.Ready)
	r.Get("/readyz", h.Ready)
	r.Get("/livez", h.Live)
}

// probe pings all services in parallel under one Ping deadline. Failures
// are logged and returned by name.
func (h *Handler) probe(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()

	errs := make([]error, len(h.services))
	var wg sync.WaitGroup
	for i, svc := range h.services {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = svc.Ping(ctx)
		}()
	}
	wg.Wait()

	failed := map[string]error{}
	for i, err := range errs {
		if err != nil {
			name := h.services[i].Name
			failed[name] = err
			h.logger.Warn("health probe failed", zap.String("service", name), zap.Error(err))
		}
	}
	return failed
}

// Check reports every service as "ok" or "unavailable"; any failure makes
// the whole response 503 "degraded".
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	failed := h.probe(r.Context())

	resp := Response{Status: "ok", Services: make(map[string]string, len(h.services))}
	for _, svc := range h.services {
		resp.Services[svc.Name] = "ok"
		if failed[svc.Name] != nil {
			resp.Services[svc.Name] = "unavailable"
			resp.Status = "degraded"
		}
	}

	status := http.StatusOK
	if len(failed) > 0 {
		status = http.StatusServiceUnavailable
	}
	jsonutil.JSON(w, status, resp)
}

// Ready is 200 only when every service answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if len(h.probe(r.Context())) > 0 {
		jsonutil.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	jsonutil.OK(w, map[string]string{"status": "ready"})
}

// Live never touches a dependency.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	jsonutil.OK(w, map[string]string{"status": "alive"})
}
