// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// validationsTotal counts validated statements by result.
	// Labels: result (allowed, denied)
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datachat",
		Subsystem: "gate",
		Name:      "validations_total",
		Help:      "Total validated candidate statements by result",
	}, []string{"result"})

	// denialsTotal counts denials by rule.
	// Labels: reason (not_select, forbidden_keyword, broad_tenant_table_query, tenant_mismatch)
	denialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datachat",
		Subsystem: "gate",
		Name:      "denials_total",
		Help:      "Total validator denials by failing rule",
	}, []string{"reason"})

	// routingTotal counts routing decisions by channel.
	// Labels: decision (empty, inline, report)
	routingTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "datachat",
		Subsystem: "gate",
		Name:      "routing_total",
		Help:      "Total routing decisions by response channel",
	}, []string{"decision"})

	// probeLatencySeconds measures the COUNT(*) probe latency, failures included.
	probeLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "datachat",
		Subsystem: "gate",
		Name:      "probe_latency_seconds",
		Help:      "Cardinality probe latency",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
)

// RecordVerdict records a validation outcome.
func RecordVerdict(verdict Verdict) {
	if verdict.Allowed {
		validationsTotal.WithLabelValues("allowed").Inc()
		return
	}
	validationsTotal.WithLabelValues("denied").Inc()
	denialsTotal.WithLabelValues(verdict.Reason.String()).Inc()
}

// RecordRouting records a routing decision.
func RecordRouting(decision RoutingDecision) {
	routingTotal.WithLabelValues(decision.Kind.String()).Inc()
}

// RecordProbeLatency records one probe round-trip.
func RecordProbeLatency(seconds float64) {
	probeLatencySeconds.Observe(seconds)
}
