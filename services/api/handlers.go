// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bodezy/datachat/services/gate"
	"github.com/bodezy/datachat/services/report"
	"github.com/bodezy/datachat/services/storage/postgres"
)

// tenantHeader is set by the reverse proxy after session validation.
// Legacy callers instead embed "empresa_id = <n>" in the question text.
const tenantHeader = "X-Empresa-ID"

var legacyTenantRe = regexp.MustCompile(`(?i)\bempresa_id\s*=\s*(\d+)`)

// Generator is the agent surface the handlers need.
type Generator interface {
	GenerateQuery(ctx context.Context, question string, tenantID int64) (gate.GeneratorResult, error)
	SynthesizeAnswer(ctx context.Context, question, statement string, result *postgres.ResultSet) (string, error)
}

// StatementExecutor runs a validated read-only statement.
type StatementExecutor interface {
	Execute(ctx context.Context, statement string) (*postgres.ResultSet, error)
}

// Handlers holds the collaborators behind the chat endpoint.
//
// Thread Safety: Safe for concurrent use when its collaborators are.
type Handlers struct {
	generator Generator
	gate      *gate.Gate
	executor  StatementExecutor
	reports   report.Builder
}

// NewHandlers creates the handler set.
func NewHandlers(generator Generator, g *gate.Gate, executor StatementExecutor, reports report.Builder) *Handlers {
	return &Handlers{
		generator: generator,
		gate:      g,
		executor:  executor,
		reports:   reports,
	}
}

// HandleQuery handles POST /api (and the legacy POST /).
//
// Description:
//
//	Resolves the tenant, runs the generator, pushes its trace through the
//	safety gate, and renders one of the four outcomes: the generator's
//	conversational text, an inline synthesized answer, an empty-result
//	message, or a report download link. A denial answers 200 with a fixed
//	message — from the chat user's point of view it is a normal reply,
//	and the internal reason stays in the audit log.
//
// Response:
//
//	200 OK: QueryResponse
//	400 Bad Request: missing question or unresolvable tenant
//	500 Internal Server Error: generator or database failure (generic body)
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Pregunta == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgNoQuestion})
		return
	}

	tenantID, err := resolveTenant(c, req.Pregunta)
	if err != nil {
		logger.Warn("Request without resolvable tenant", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgNoTenant})
		return
	}
	logger = logger.With(slog.Int64("tenant_id", tenantID))

	exportIntent := req.Exportar || h.gate.Config().DetectExportIntent(req.Pregunta)

	trace, err := h.generator.GenerateQuery(c.Request.Context(), req.Pregunta, tenantID)
	if err != nil {
		logger.Error("Query generation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgInternal})
		return
	}

	decision, err := h.gate.Evaluate(c.Request.Context(), trace, tenantID, exportIntent)
	if err != nil {
		if errors.Is(err, gate.ErrDenied) {
			c.JSON(http.StatusOK, QueryResponse{Respuesta: msgDenied})
			return
		}
		logger.Error("Gate evaluation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgInternal})
		return
	}

	respuesta, err := h.renderDecision(c.Request.Context(), req.Pregunta, trace, decision)
	if err != nil {
		logger.Error("Rendering answer failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgInternal})
		return
	}
	c.JSON(http.StatusOK, QueryResponse{Respuesta: respuesta})
}

// renderDecision turns a routing decision into chat text.
func (h *Handlers) renderDecision(ctx context.Context, question string, trace gate.GeneratorResult, decision gate.RoutingDecision) (string, error) {
	switch decision.Kind {
	case gate.DecisionEmpty:
		return msgEmpty, nil

	case gate.DecisionReport:
		return h.reports.Message(decision.RowCount, decision.Statement), nil

	default: // DecisionInline
		if decision.Statement == "" {
			// No statement was found; the generator answered conversationally.
			if trace.FinalOutput != "" {
				return trace.FinalOutput, nil
			}
			return msgEmpty, nil
		}

		result, err := h.executor.Execute(ctx, decision.Statement)
		if err != nil {
			return "", err
		}
		if result.Empty() {
			return msgEmpty, nil
		}
		return h.generator.SynthesizeAnswer(ctx, question, decision.Statement, result)
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// resolveTenant extracts the tenant id, header first, then the legacy
// in-question form. The header comes from the proxy and wins. Failure is
// gate.ErrMissingTenantID so callers can branch with errors.Is.
func resolveTenant(c *gin.Context, question string) (int64, error) {
	if raw := c.GetHeader(tenantHeader); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			return id, nil
		}
		return 0, gate.ErrMissingTenantID
	}

	if m := legacyTenantRe.FindStringSubmatch(question); m != nil {
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, gate.ErrMissingTenantID
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}
