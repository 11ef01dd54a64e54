// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Gate composes extraction, validation, normalization, and routing into the
// per-request safety pipeline. It holds configuration and collaborators
// only; all per-request state is local to Evaluate.
//
// Thread Safety: Safe for concurrent use.
type Gate struct {
	cfg     Config
	prober  Prober
	auditor *Auditor
}

// New creates a gate over the given prober.
//
// Inputs:
//   - cfg: Gate configuration (thresholds, keywords, audit switch).
//   - prober: The database collaborator for cardinality probes.
//   - auditor: Audit logger. Nil disables auditing.
func New(cfg Config, prober Prober, auditor *Auditor) *Gate {
	if auditor == nil {
		auditor = NewAuditor(nil, false)
	}
	return &Gate{cfg: cfg, prober: prober, auditor: auditor}
}

// Config returns the gate's configuration.
func (g *Gate) Config() Config { return g.cfg }

// Evaluate runs the full pipeline over one generator result.
//
// Description:
//
//	extract → validate → normalize → route. Evaluate never re-invokes the
//	generator. Outcomes:
//	  - No statement found: an Inline decision with an empty Statement —
//	    the caller answers with the generator's own final text. Not an
//	    error; conversational answers are legitimate.
//	  - Validation denial: ErrDenied. The internal reason goes to the
//	    audit log and metrics only; the caller must surface its fixed,
//	    non-parameterized denial message.
//	  - Otherwise: the routing decision over the normalized statement.
//
// Inputs:
//   - ctx: Context for cancellation; bounds the probe.
//   - result: The generator's trace.
//   - tenantID: The caller's tenant from trusted request context.
//   - exportIntent: Resolved export-intent signal.
//
// Outputs:
//   - RoutingDecision: The response channel and normalized statement.
//   - error: ErrDenied on a validation failure, nil otherwise.
func (g *Gate) Evaluate(ctx context.Context, result GeneratorResult, tenantID int64, exportIntent bool) (RoutingDecision, error) {
	ctx, span := otel.Tracer("bodezy.datachat").Start(ctx, "gate.Evaluate",
		oteltrace.WithAttributes(
			attribute.Int64("tenant_id", tenantID),
			attribute.Bool("export_intent", exportIntent),
		),
	)
	defer span.End()

	requestID := uuid.New().String()

	statement, found := ExtractStatement(result)
	if !found {
		span.SetAttributes(attribute.String("outcome", "no_statement"))
		span.SetStatus(codes.Ok, "")
		return RoutingDecision{Kind: DecisionInline}, nil
	}

	verdict := Validate(statement, tenantID)
	RecordVerdict(verdict)
	if !verdict.Allowed {
		g.auditor.LogDenied(ctx, requestID, tenantID, statement, verdict.Reason)
		span.SetAttributes(attribute.String("deny_reason", verdict.Reason.String()))
		span.SetStatus(codes.Error, "statement denied")
		return RoutingDecision{}, ErrDenied
	}

	normalized := Normalize(statement, tenantID, exportIntent, g.cfg.PreviewLimit)
	g.auditor.LogAllowed(ctx, requestID, tenantID, normalized)

	probeStart := time.Now()
	decision := Route(ctx, g.prober, normalized, exportIntent, g.cfg.InlineThreshold)
	RecordProbeLatency(time.Since(probeStart).Seconds())
	RecordRouting(decision)
	g.auditor.LogRouting(ctx, requestID, tenantID, decision, exportIntent)

	span.SetAttributes(attribute.String("outcome", decision.Kind.String()))
	span.SetStatus(codes.Ok, "")
	return decision, nil
}
