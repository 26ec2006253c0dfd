package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"topology-aware-planner/core/pkg/bandwidth"
	"topology-aware-planner/core/pkg/estimator"
)

// New builds the HTTP server exposing the bandwidth ingestion and query
// endpoints plus metrics and health.
func New(addr string, model *bandwidth.Model, est *estimator.Estimator) *http.Server {
	h := &Handler{model: model, estimator: est}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/samples", h.IngestSample).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/estimate", h.QueryEstimate).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/rank", h.RankDestinations).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	return &http.Server{
		Addr:    addr,
		Handler: r,
	}
}

// Run serves until SIGINT/SIGTERM, then shuts down gracefully.
func Run(srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		klog.Infof("Bandwidth endpoints listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		klog.Infof("Got signal %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
