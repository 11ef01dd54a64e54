// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gate

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Auditor produces structured audit log entries for gate decisions.
//
// Description:
//
//	Logs verdicts and routing outcomes with slog. Entries carry the
//	request id, tenant id, the internal denial reason, and a SHA256 hash
//	of the candidate statement — never the statement text itself, which
//	may embed data from the question. The hash is enough to correlate a
//	denial with a replayed generator output during an investigation.
//
// Thread Safety: Safe for concurrent use (slog.Logger is concurrent-safe).
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates an auditor writing to the given logger.
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{logger: logger, enabled: enabled}
}

// LogDenied records a validator denial with its internal reason.
//
// Inputs:
//   - ctx: Context containing trace information.
//   - requestID: The per-request id.
//   - tenantID: The caller's tenant.
//   - statement: The denied candidate (hashed, not logged verbatim).
//   - reason: The failing rule.
func (a *Auditor) LogDenied(ctx context.Context, requestID string, tenantID int64, statement string, reason DenyReason) {
	if !a.enabled {
		return
	}
	a.loggerWithTrace(ctx).Warn("statement denied",
		slog.String("event", "gate_denied"),
		slog.String("request_id", requestID),
		slog.Int64("tenant_id", tenantID),
		slog.String("reason", reason.String()),
		slog.String("statement_hash", hashStatement(statement)),
		slog.Int64("timestamp", time.Now().UnixMilli()),
	)
}

// LogAllowed records an allowed statement after normalization.
func (a *Auditor) LogAllowed(ctx context.Context, requestID string, tenantID int64, statement string) {
	if !a.enabled {
		return
	}
	a.loggerWithTrace(ctx).Info("statement allowed",
		slog.String("event", "gate_allowed"),
		slog.String("request_id", requestID),
		slog.Int64("tenant_id", tenantID),
		slog.String("statement_hash", hashStatement(statement)),
		slog.Int64("timestamp", time.Now().UnixMilli()),
	)
}

// LogRouting records the routing decision for an allowed statement.
func (a *Auditor) LogRouting(ctx context.Context, requestID string, tenantID int64, decision RoutingDecision, exportIntent bool) {
	if !a.enabled {
		return
	}
	a.loggerWithTrace(ctx).Info("statement routed",
		slog.String("event", "gate_routed"),
		slog.String("request_id", requestID),
		slog.Int64("tenant_id", tenantID),
		slog.String("decision", decision.Kind.String()),
		slog.Int64("row_count", decision.RowCount),
		slog.Bool("export_intent", exportIntent),
		slog.Int64("timestamp", time.Now().UnixMilli()),
	)
}

// loggerWithTrace returns a logger enriched with trace context.
func (a *Auditor) loggerWithTrace(ctx context.Context) *slog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return a.logger
	}
	return a.logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}

// hashStatement computes the SHA256 hex digest of a statement for audit
// correlation. Returns empty string for empty input.
func hashStatement(statement string) string {
	if statement == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(statement))
	return fmt.Sprintf("%x", sum)
}
