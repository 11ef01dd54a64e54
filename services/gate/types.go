// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gate implements the SQL safety gate that sits between the LLM
// query generator and the tenant database. It extracts a candidate SELECT
// statement from the generator's output, validates it against an ordered
// set of tenant-isolation rules, normalizes it (tenant filter injection,
// preview limit), and routes the result to an inline answer, an export
// report, or an empty-result message based on a COUNT(*) probe.
//
// The validation rules are deliberately lexical, not a SQL parser. A
// statement can defeat detection via string concatenation, comments that
// split a keyword, or unicode look-alikes. That is an accepted trade-off:
// the gate is a pragmatic guard against an untrusted generator backed by a
// read-only database role, not a formally verified sandbox. The rules are
// redundant on purpose (the per-table scope rule and the leak scan overlap)
// rather than relying on one clever regex.
//
// Thread Safety:
//
//	All exported types are safe for concurrent use unless documented
//	otherwise. The gate holds no cross-request state.
package gate

import (
	"errors"
	"fmt"
)

// DenyReason identifies which validation rule rejected a statement.
// Reasons are a fixed taxonomy for logs and metrics; they are never echoed
// back to the end user.
type DenyReason int

const (
	// ReasonNone means the statement passed all rules.
	ReasonNone DenyReason = iota

	// ReasonNotSelect means the statement is not SELECT-shaped
	// (neither SELECT nor WITH ... SELECT).
	ReasonNotSelect

	// ReasonForbiddenKeyword means the statement contains a mutating or
	// DDL keyword as a whole word.
	ReasonForbiddenKeyword

	// ReasonBroadTenantTableQuery means the statement reads the tenant
	// registry table without binding its primary key to the caller's tenant.
	ReasonBroadTenantTableQuery

	// ReasonTenantMismatch means the statement binds the tenant foreign key
	// to a tenant id other than the caller's, anywhere in the statement.
	ReasonTenantMismatch
)

// String returns the log-stable name of the reason.
func (r DenyReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNotSelect:
		return "not_select"
	case ReasonForbiddenKeyword:
		return "forbidden_keyword"
	case ReasonBroadTenantTableQuery:
		return "broad_tenant_table_query"
	case ReasonTenantMismatch:
		return "tenant_mismatch"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// Verdict is the outcome of validating one candidate statement.
//
// Thread Safety: Verdict is a value type. Safe to copy.
type Verdict struct {
	// Allowed is true if the statement passed every rule.
	Allowed bool

	// Reason is the rule that denied the statement (ReasonNone if allowed).
	Reason DenyReason
}

// Allow returns the allowing verdict.
func Allow() Verdict { return Verdict{Allowed: true} }

// Deny returns a denying verdict with the given reason.
func Deny(reason DenyReason) Verdict { return Verdict{Reason: reason} }

// AgentStep is one intermediate action recorded by the generator: a tool
// invocation with its structured arguments plus any free-text rationale the
// model produced alongside it.
//
// Thread Safety: AgentStep is safe for concurrent read access.
type AgentStep struct {
	// ToolName is the tool the generator invoked (e.g. "sql_db_query").
	ToolName string

	// Args holds the structured tool-call arguments as decoded JSON.
	Args map[string]any

	// Log is the free-text rationale or observation attached to the step.
	Log string
}

// GeneratorResult is the full trace of one generator invocation, consumed
// only by the extractor. It is a tagged representation of the generator's
// loosely-typed output: structured tool calls, per-step log text, and the
// final natural-language answer.
//
// Thread Safety: GeneratorResult is safe for concurrent read access.
type GeneratorResult struct {
	// Steps are the intermediate tool-call records, in execution order.
	Steps []AgentStep

	// FinalOutput is the generator's final natural-language text.
	FinalOutput string
}

// DecisionKind selects the response channel for a request.
type DecisionKind int

const (
	// DecisionEmpty means the probe found no rows; a fixed "no results"
	// message is returned.
	DecisionEmpty DecisionKind = iota

	// DecisionInline means the result is small enough to answer inline.
	DecisionInline

	// DecisionReport means the result is delivered as a downloadable
	// report instead of inline text.
	DecisionReport
)

// String returns the log-stable name of the decision kind.
func (k DecisionKind) String() string {
	switch k {
	case DecisionEmpty:
		return "empty"
	case DecisionInline:
		return "inline"
	case DecisionReport:
		return "report"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// RoutingDecision is the routing outcome for one validated statement.
//
// Thread Safety: RoutingDecision is a value type. Safe to copy.
type RoutingDecision struct {
	// Kind selects the response channel.
	Kind DecisionKind

	// Statement is the normalized SQL (set for Inline and Report).
	Statement string

	// RowCount is the probed cardinality of the statement (0 on probe failure).
	RowCount int64
}

// Sentinel errors surfaced by the gate. User-facing messages are fixed and
// defined by the API layer; these carry the internal taxonomy.
var (
	// ErrMissingTenantID is returned when a request carries no resolvable
	// tenant context. Fatal for the request.
	ErrMissingTenantID = errors.New("gate: missing tenant id")

	// ErrDenied wraps a validation denial. The DenyReason travels in the
	// audit log, not in this error.
	ErrDenied = errors.New("gate: statement denied by safety validator")
)
