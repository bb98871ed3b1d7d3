package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"NetDistill/internal/compactor"
	"NetDistill/internal/config"
	"NetDistill/internal/model"
	"NetDistill/internal/sink"
	"NetDistill/internal/source"
)

func main() {
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Source.Root == "" {
		log.Fatalf("No segment root configured; API server cannot start.")
	}

	handler := &APIHandler{cfg: cfg}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/compact", handler.compactHandler).Methods("POST")

	addr := cfg.API.ListenAddr
	if addr == "" {
		addr = ":8090"
	}
	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Printf("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("API server exited.")
}

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	cfg *config.Config
}

type compactRequest struct {
	HourStart int64 `json:"hour_start"`
	HourEnd   int64 `json:"hour_end"`
}

// metricsCapture delegates to an underlying sink while keeping the final
// metrics for the HTTP response.
type metricsCapture struct {
	inner   model.EventSink
	metrics *model.Metrics
}

func (c *metricsCapture) OnGroup(rec *model.GroupRecord) { c.inner.OnGroup(rec) }
func (c *metricsCapture) OnScan(sum *model.ScanSummary)  { c.inner.OnScan(sum) }
func (c *metricsCapture) OnMetrics(m *model.Metrics) {
	c.metrics = m
	c.inner.OnMetrics(m)
}

// compactHandler runs one window synchronously and returns its metrics.
func (h *APIHandler) compactHandler(w http.ResponseWriter, r *http.Request) {
	var req compactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}
	if req.HourEnd <= req.HourStart {
		http.Error(w, "hour_end must be greater than hour_start", http.StatusBadRequest)
		return
	}

	eventSink, cleanup, err := buildSink(h.cfg)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to create sink: %v", err), http.StatusInternalServerError)
		return
	}
	defer cleanup()

	capture := &metricsCapture{inner: eventSink}
	src := source.NewFilesystemSource(h.cfg.Source.Root)

	if err := compactor.RunHour(src, capture, &h.cfg.Pipeline, req.HourStart, req.HourEnd); err != nil {
		var cfgErr *model.ConfigError
		status := http.StatusBadGateway
		if errors.As(err, &cfgErr) {
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf("run failed: %v", err), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(capture.metrics); err != nil {
		log.Printf("Failed to encode metrics response: %v", err)
	}
}

// buildSink picks the first enabled sink from config, defaulting to JSON
// lines on stdout.
func buildSink(cfg *config.Config) (model.EventSink, func(), error) {
	switch {
	case cfg.Sinks.ClickHouse.Enabled:
		ch, err := sink.NewClickHouseSink(cfg.Sinks.ClickHouse)
		if err != nil {
			return nil, nil, err
		}
		return ch, func() { ch.Close() }, nil
	case cfg.Sinks.NATS.Enabled:
		ns, err := sink.NewNATSSink(cfg.Sinks.NATS)
		if err != nil {
			return nil, nil, err
		}
		return ns, ns.Close, nil
	default:
		return sink.NewTextSink(os.Stdout), func() {}, nil
	}
}
