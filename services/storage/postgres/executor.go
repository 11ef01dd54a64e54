// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotReadOnly is returned when a statement reaches the executor without
// a SELECT or WITH prefix. The safety validator upstream should have caught
// it; this is the storage layer's own backstop.
var ErrNotReadOnly = errors.New("postgres: statement is not read-only")

// defaultQueryTimeout bounds a single statement when the caller's context
// carries no deadline of its own.
const defaultQueryTimeout = 30 * time.Second

// ResultSet is the materialized outcome of a read-only statement.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Empty reports whether the result has no rows.
func (r *ResultSet) Empty() bool { return len(r.Rows) == 0 }

// Executor runs validated read-only statements on the business database.
//
// Description:
//
//	The executor trusts that statements have already passed the safety
//	pipeline, but still refuses anything that is not SELECT/WITH shaped.
//	It implements the gate's Prober interface via ProbeCount.
//
// Thread Safety: Safe for concurrent use (sql.DB is a pool).
type Executor struct {
	db *sql.DB
}

// NewExecutor creates an executor over an open connection pool.
func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// ProbeCount measures a statement's cardinality without materializing rows.
//
// Description:
//
//	Wraps the statement as SELECT COUNT(*) FROM (<stmt>) AS probe and
//	runs it. The wrapped form requires the inner statement to be a valid
//	subquery, which the normalizer guarantees (no trailing semicolon).
//
// Inputs:
//   - ctx: Context for cancellation.
//   - statement: The normalized read-only statement.
//
// Outputs:
//   - int64: The row count.
//   - error: Non-nil when the probe query fails.
func (e *Executor) ProbeCount(ctx context.Context, statement string) (int64, error) {
	if err := checkReadOnly(statement); err != nil {
		return 0, err
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	probe := fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS probe", statement)

	var count int64
	if err := e.db.QueryRowContext(ctx, probe).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: probing row count: %w", err)
	}
	return count, nil
}

// Execute runs a read-only statement and materializes its result set.
//
// Description:
//
//	Used for the inline answer path, where the statement already carries
//	a preview LIMIT. Byte-slice column values are converted to strings so
//	the result serializes cleanly to JSON for answer synthesis.
//
// Outputs:
//   - *ResultSet: Columns and rows in statement order.
//   - error: ErrNotReadOnly for a non-SELECT statement, otherwise any
//     query or scan failure.
func (e *Executor) Execute(ctx context.Context, statement string) (*ResultSet, error) {
	if err := checkReadOnly(statement); err != nil {
		return nil, err
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	rows, err := e.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("postgres: executing statement: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("postgres: reading columns: %w", err)
	}

	result := &ResultSet{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("postgres: scanning row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating rows: %w", err)
	}

	return result, nil
}

// checkReadOnly verifies the statement starts with SELECT or WITH.
func checkReadOnly(statement string) error {
	trimmed := strings.ToLower(strings.TrimSpace(statement))
	if strings.HasPrefix(trimmed, "select") || strings.HasPrefix(trimmed, "with") {
		return nil
	}
	return ErrNotReadOnly
}

// withDefaultTimeout applies the default query timeout unless the caller's
// context already carries a deadline.
func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultQueryTimeout)
}
