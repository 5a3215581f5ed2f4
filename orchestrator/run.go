// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"careflow/platform/shared/logger"
)

// Run starts the CareFlow orchestrator service.
//
// Environment variables:
//
//	PORT            - HTTP server port (default: 8082)
//	BACKEND_URL     - backend tool API base URL (default: http://localhost:3000)
//	ROUTING_CONFIG  - path to the routing config YAML (optional)
//	REDIS_URL       - signals prefetch cache (optional)
//	DATABASE_URL    - Postgres audit trail (optional)
//	JWT_SECRET      - operator endpoint auth secret (optional; empty disables auth)
func Run() {
	svcLog := logger.New("orchestrator")
	svcLog.Info("", "", "Starting CareFlow orchestrator", nil)

	cfg := DefaultRoutingConfig()
	if path := os.Getenv("ROUTING_CONFIG"); path != "" {
		loaded, err := LoadRoutingConfig(path)
		if err != nil {
			log.Printf("[Run] Failed to load routing config %s, using defaults: %v", path, err)
		} else {
			cfg = loaded
		}
	}

	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		backendURL = "http://localhost:3000"
	}
	backend := NewBackendClient(backendURL, 10*time.Second)

	var cache *SignalsCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c, err := NewSignalsCache(redisURL, DefaultSignalsTTL)
		if err != nil {
			log.Printf("[Run] Signals cache unavailable, continuing without it: %v", err)
		} else {
			cache = c
			defer cache.Close()
		}
	}

	hub := NewOperatorHub()
	bridge := NewHandoffBridge(hub, cfg.HandoffTimeout)
	hub.SetBridge(bridge)

	workers := BuildWorkers(cfg)
	if workers == nil {
		log.Printf("[Run] No workers configured; only human-first routing will succeed")
	}

	classifier := NewScenarioClassifier(cfg)
	collector := NewSignalCollector(backend, classifier, cfg, cache)
	dispatcher := NewWorkerDispatcher(workers, bridge, hub, backend, cfg)
	metrics := NewRoutingMetrics(bridge)
	RegisterMetrics(prometheus.DefaultRegisterer)

	audit := NewAuditTrail(os.Getenv("DATABASE_URL"))
	defer audit.Close()

	engine := NewRoutingEngine(collector, dispatcher, metrics, audit)
	api := NewAPIHandler(engine, bridge, metrics)
	auth := NewOperatorAuth(os.Getenv("JWT_SECRET"))

	router := mux.NewRouter()
	router.HandleFunc("/health", api.HandleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/chat/message", api.HandleChatMessage).Methods(http.MethodPost)
	v1.HandleFunc("/stats", api.HandleStats).Methods(http.MethodGet)
	v1.Handle("/operator/input", auth.Middleware(http.HandlerFunc(api.HandleOperatorInput))).Methods(http.MethodPost)

	router.Handle("/ws/operator/{conversationId}", auth.Middleware(http.HandlerFunc(hub.HandleWebSocket)))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // handoff waits can exceed any sane write timeout
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		svcLog.Info("", "", "HTTP server listening", map[string]interface{}{"port": port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Run] HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	svcLog.Info("", "", "Shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[Run] Graceful shutdown failed: %v", err)
	}
}
