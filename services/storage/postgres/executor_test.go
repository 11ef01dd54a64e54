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
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestProbeCount_WrapsStatement(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db)

	inner := "SELECT * FROM ventas WHERE empresa_id = 9 LIMIT 1000"
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT COUNT(*) FROM (" + inner + ") AS probe")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	count, err := exec.ProbeCount(context.Background(), inner)
	if err != nil {
		t.Fatalf("ProbeCount() error = %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
	assertSQLMock(t, mock)
}

func TestProbeCount_QueryFailure(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnError(errors.New("relation does not exist"))

	_, err := exec.ProbeCount(context.Background(), "SELECT * FROM no_existe")
	if err == nil {
		t.Fatal("ProbeCount() = nil error, want query failure")
	}
	assertSQLMock(t, mock)
}

func TestProbeCount_RejectsNonSelect(t *testing.T) {
	db, _ := newSQLMock(t)
	exec := NewExecutor(db)

	_, err := exec.ProbeCount(context.Background(), "DELETE FROM ventas")
	if !errors.Is(err, ErrNotReadOnly) {
		t.Errorf("ProbeCount() error = %v, want ErrNotReadOnly", err)
	}
}

func TestExecute_MaterializesRows(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db)

	stmt := "SELECT nombre, total FROM ventas WHERE empresa_id = 9 LIMIT 1000"
	mock.ExpectQuery(regexp.QuoteMeta(stmt)).
		WillReturnRows(sqlmock.NewRows([]string{"nombre", "total"}).
			AddRow([]byte("Distribuidora Sur"), 1250.50).
			AddRow([]byte("Comercial Norte"), 890.00))

	result, err := exec.Execute(context.Background(), stmt)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "nombre" {
		t.Errorf("columns = %v", result.Columns)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(result.Rows))
	}
	// Byte slices come back as strings.
	if got, ok := result.Rows[0][0].(string); !ok || got != "Distribuidora Sur" {
		t.Errorf("rows[0][0] = %v (%T), want string", result.Rows[0][0], result.Rows[0][0])
	}
	if result.Empty() {
		t.Error("Empty() = true for a two-row result")
	}
	assertSQLMock(t, mock)
}

func TestExecute_EmptyResult(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db)

	stmt := "SELECT nombre FROM clientes WHERE empresa_id = 9 AND activo = false LIMIT 1000"
	mock.ExpectQuery(regexp.QuoteMeta(stmt)).
		WillReturnRows(sqlmock.NewRows([]string{"nombre"}))

	result, err := exec.Execute(context.Background(), stmt)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Empty() {
		t.Errorf("Empty() = false, rows = %v", result.Rows)
	}
	assertSQLMock(t, mock)
}

func TestExecute_RejectsNonSelect(t *testing.T) {
	db, _ := newSQLMock(t)
	exec := NewExecutor(db)

	for _, stmt := range []string{
		"DROP TABLE ventas",
		"UPDATE clientes SET activo = false",
		"",
	} {
		if _, err := exec.Execute(context.Background(), stmt); !errors.Is(err, ErrNotReadOnly) {
			t.Errorf("Execute(%q) error = %v, want ErrNotReadOnly", stmt, err)
		}
	}
}

func TestExecute_CTEAllowed(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := NewExecutor(db)

	stmt := "WITH t AS (SELECT total FROM ventas WHERE empresa_id = 9) SELECT SUM(total) FROM t"
	mock.ExpectQuery(regexp.QuoteMeta(stmt)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(10500.75))

	result, err := exec.Execute(context.Background(), stmt)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 1 {
		t.Errorf("got %d rows, want 1", len(result.Rows))
	}
	assertSQLMock(t, mock)
}
