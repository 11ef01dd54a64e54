// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gate

import (
	"context"
	"errors"
	"testing"
)

// fakeProber returns a fixed count or error.
type fakeProber struct {
	count int64
	err   error

	lastStatement string
}

func (f *fakeProber) ProbeCount(_ context.Context, statement string) (int64, error) {
	f.lastStatement = statement
	return f.count, f.err
}

func TestRoute_EmptyResult(t *testing.T) {
	prober := &fakeProber{count: 0}

	d := Route(context.Background(), prober, "SELECT 1", false, 20)
	if d.Kind != DecisionEmpty {
		t.Errorf("kind = %s, want empty", d.Kind)
	}
}

func TestRoute_EmptyBeatsExportIntent(t *testing.T) {
	// Zero rows routes to Empty even when the caller asked for an export.
	prober := &fakeProber{count: 0}

	d := Route(context.Background(), prober, "SELECT 1", true, 20)
	if d.Kind != DecisionEmpty {
		t.Errorf("kind = %s, want empty regardless of export intent", d.Kind)
	}
}

func TestRoute_InlineUnderThreshold(t *testing.T) {
	prober := &fakeProber{count: 15}

	d := Route(context.Background(), prober, "SELECT * FROM ventas WHERE empresa_id = 9", false, 20)
	if d.Kind != DecisionInline {
		t.Errorf("kind = %s, want inline", d.Kind)
	}
	if d.RowCount != 15 {
		t.Errorf("rowCount = %d, want 15", d.RowCount)
	}
}

func TestRoute_ReportOverThreshold(t *testing.T) {
	prober := &fakeProber{count: 21}

	d := Route(context.Background(), prober, "SELECT * FROM ventas WHERE empresa_id = 9", false, 20)
	if d.Kind != DecisionReport {
		t.Errorf("kind = %s, want report", d.Kind)
	}
}

func TestRoute_ExportIntentForcesReport(t *testing.T) {
	prober := &fakeProber{count: 5000}
	stmt := "SELECT * FROM ventas WHERE empresa_id = 9"

	d := Route(context.Background(), prober, stmt, true, 20)
	if d.Kind != DecisionReport {
		t.Fatalf("kind = %s, want report", d.Kind)
	}
	if d.Statement != stmt {
		t.Errorf("statement = %q, want the full statement", d.Statement)
	}
	if d.RowCount != 5000 {
		t.Errorf("rowCount = %d, want 5000", d.RowCount)
	}

	// Small export is still a report: the caller asked for the file.
	prober.count = 3
	d = Route(context.Background(), prober, stmt, true, 20)
	if d.Kind != DecisionReport {
		t.Errorf("small export: kind = %s, want report", d.Kind)
	}
}

func TestRoute_ProbeFailureIsEmpty(t *testing.T) {
	// The probe is best-effort; a failure degrades to "no results" rather
	// than surfacing an error.
	prober := &fakeProber{err: errors.New("syntax error near probe")}

	d := Route(context.Background(), prober, "SELECT 1", false, 20)
	if d.Kind != DecisionEmpty {
		t.Errorf("kind = %s, want empty on probe failure", d.Kind)
	}
}
