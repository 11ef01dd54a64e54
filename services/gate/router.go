// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gate

import (
	"context"
	"log/slog"
)

// Prober measures the cardinality of a statement without materializing its
// rows. The Postgres implementation wraps the statement in
// SELECT COUNT(*) FROM (<stmt>) AS probe.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Prober interface {
	ProbeCount(ctx context.Context, statement string) (int64, error)
}

// Route decides the response channel for a normalized statement.
//
// Description:
//
//	Runs the cardinality probe and applies, in order:
//	  - rowCount == 0            → Empty
//	  - exportIntent, or
//	    rowCount > inlineThreshold → Report
//	  - otherwise                → Inline
//
//	The probe is a best-effort optimization, not a correctness
//	requirement: a probe failure (malformed subquery, timeout) is treated
//	as zero rows and logged, never propagated. An empty result always
//	routes to Empty, export intent or not — there is nothing to export.
//
// Inputs:
//   - ctx: Context for cancellation; bounds the probe.
//   - prober: The database collaborator.
//   - statement: The normalized statement.
//   - exportIntent: True when the caller wants the full result set.
//   - inlineThreshold: Maximum row count still rendered inline.
//
// Outputs:
//   - RoutingDecision: The channel plus the statement and probed count.
func Route(ctx context.Context, prober Prober, statement string, exportIntent bool, inlineThreshold int64) RoutingDecision {
	rowCount, err := prober.ProbeCount(ctx, statement)
	if err != nil {
		slog.Warn("Cardinality probe failed, assuming empty result",
			slog.String("error", err.Error()))
		rowCount = 0
	}

	if rowCount == 0 {
		return RoutingDecision{Kind: DecisionEmpty, Statement: statement}
	}

	if exportIntent || rowCount > inlineThreshold {
		return RoutingDecision{Kind: DecisionReport, Statement: statement, RowCount: rowCount}
	}

	return RoutingDecision{Kind: DecisionInline, Statement: statement, RowCount: rowCount}
}
