// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command datachat starts the Bodezy DataChat API server.
//
// DataChat answers business questions over the company database:
// a Gemini-backed generator proposes a SQL statement, the safety gate
// validates and rewrites it for the caller's tenant, and the result comes
// back inline, as an empty-result message, or as an export link.
//
// Usage:
//
//	go run ./cmd/datachat
//	go run ./cmd/datachat -port 9090
//
// Required environment:
//
//	GOOGLE_API_KEY  - Gemini API key (GEMINI_API_KEY also accepted)
//	DATABASE_URI    - Postgres connection string
//
// Example request:
//
//	curl -X POST http://localhost:8080/api \
//	  -H "Content-Type: application/json" \
//	  -H "X-Empresa-ID: 9" \
//	  -d '{"pregunta": "¿Cuántos clientes activos tengo?"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/bodezy/datachat/services/agent"
	"github.com/bodezy/datachat/services/api"
	"github.com/bodezy/datachat/services/gate"
	"github.com/bodezy/datachat/services/llm"
	"github.com/bodezy/datachat/services/report"
	"github.com/bodezy/datachat/services/storage/postgres"
)

func main() {
	port := flag.Int("port", defaultPort(), "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	// Local development convenience; a missing .env is not an error.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation for incoming requests.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx := context.Background()

	db, err := postgres.Open(ctx, postgres.LoadDBConfig())
	if err != nil {
		slog.Error("Failed to open database", slog.String("error", llm.SafeLogString(err.Error())))
		os.Exit(1)
	}
	executor := postgres.NewExecutor(db)

	geminiClient, err := llm.NewGeminiClient()
	if err != nil {
		slog.Error("Failed to create Gemini client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	generator := agent.New(geminiClient, os.Getenv("DB_SCHEMA_HINT"))

	gateCfg := gate.LoadConfig()
	auditor := gate.NewAuditor(slog.Default(), gateCfg.AuditEnabled)
	safetyGate := gate.New(gateCfg, executor, auditor)

	handlers := api.NewHandlers(generator, safetyGate, executor, report.NewBuilder())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("bodezy-datachat"))
	router.Use(cors.Default())
	if *debug {
		router.Use(gin.Logger())
	}

	api.RegisterRoutes(router.Group(""), handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(*port, gateCfg)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down DataChat server")
		if err := db.Close(); err != nil {
			slog.Warn("Failed to close database", slog.String("error", err.Error()))
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting DataChat server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// defaultPort reads PORT from the environment, matching what the hosting
// platform injects. Falls back to 8080.
func defaultPort() int {
	if raw := os.Getenv("PORT"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil && p > 0 {
			return p
		}
	}
	return 8080
}

func printBanner(port int, cfg gate.Config) {
	fmt.Printf(`
╔══════════════════════════════════════════════╗
║             Bodezy DataChat API              ║
╚══════════════════════════════════════════════╝

  Port:             %d
  Inline threshold: %d rows
  Preview limit:    %d rows
  Audit log:        %v

  POST /api      - answer a business question
  GET  /health   - health check
  GET  /metrics  - Prometheus metrics

`, port, cfg.InlineThreshold, cfg.PreviewLimit, cfg.AuditEnabled)
}
