// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics counts device exchanges for Prometheus
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the exchange metrics and the registry they live in
type Collector struct {
	registry *prometheus.Registry

	exchanges *prometheus.CounterVec
	errors    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// New creates a collector on a private registry
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fmtvend_exchanges_total",
				Help: "Device exchanges by outcome",
			},
			[]string{"profile", "command", "status"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fmtvend_exchange_errors_total",
				Help: "Failed exchanges by error kind",
			},
			[]string{"profile", "kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fmtvend_exchange_duration_seconds",
				Help:    "Time from send to decoded reply, including the reply delay",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 7.5, 10, 15, 30},
			},
			[]string{"profile"},
		),
	}
	c.registry.MustRegister(c.exchanges, c.errors, c.duration)
	return c
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe records one finished exchange. kind is ignored on success.
func (c *Collector) Observe(profile, command string, ok bool, kind string, elapsed time.Duration) {
	status := "success"
	if !ok {
		status = "failure"
		c.errors.WithLabelValues(profile, kind).Inc()
	}
	c.exchanges.WithLabelValues(profile, command, status).Inc()
	c.duration.WithLabelValues(profile).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Mux returns /metrics and /health routes
func (c *Collector) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Serve runs the metrics HTTP server until ctx is canceled
func (c *Collector) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
