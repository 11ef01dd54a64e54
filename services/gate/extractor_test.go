// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gate

import (
	"strings"
	"testing"
)

func TestExtractStatement_StructuredQueryArg(t *testing.T) {
	result := GeneratorResult{
		Steps: []AgentStep{
			{
				ToolName: "sql_db_query",
				Args:     map[string]any{"query": "SELECT nombre FROM clientes WHERE empresa_id = 3"},
			},
		},
		FinalOutput: "Aquí están los clientes.",
	}

	stmt, found := ExtractStatement(result)
	if !found {
		t.Fatal("expected a statement from structured args")
	}
	if stmt != "SELECT nombre FROM clientes WHERE empresa_id = 3" {
		t.Errorf("statement = %q, want verbatim structured arg", stmt)
	}
}

func TestExtractStatement_InputArgFallback(t *testing.T) {
	result := GeneratorResult{
		Steps: []AgentStep{
			{ToolName: "sql_db_query", Args: map[string]any{"input": "select total from ventas"}},
		},
	}

	stmt, found := ExtractStatement(result)
	if !found || stmt != "select total from ventas" {
		t.Errorf("stmt = %q, found = %v; want the input arg", stmt, found)
	}
}

func TestExtractStatement_StructuredArgWinsOverFence(t *testing.T) {
	// Precedence: the structured argument beats a conflicting fenced block.
	result := GeneratorResult{
		Steps: []AgentStep{
			{
				ToolName: "sql_db_query",
				Args:     map[string]any{"query": "SELECT 1"},
				Log:      "Running:\n```sql\nSELECT 2\n```",
			},
		},
		FinalOutput: "```sql\nSELECT 3\n```",
	}

	stmt, found := ExtractStatement(result)
	if !found || stmt != "SELECT 1" {
		t.Errorf("stmt = %q, found = %v; structured arg should win", stmt, found)
	}
}

func TestExtractStatement_FencedBlockInLog(t *testing.T) {
	result := GeneratorResult{
		Steps: []AgentStep{
			{Log: "Voy a consultar la base:\n```sql\nSELECT nombre FROM productos\n```\nlisto"},
		},
	}

	stmt, found := ExtractStatement(result)
	if !found || stmt != "SELECT nombre FROM productos" {
		t.Errorf("stmt = %q, found = %v; want fenced block body", stmt, found)
	}
}

func TestExtractStatement_FencedBlockInFinalOutput(t *testing.T) {
	result := GeneratorResult{
		FinalOutput: "La consulta sería:\n```SQL\nWITH ultimos AS (SELECT * FROM ventas) SELECT * FROM ultimos\n```",
	}

	stmt, found := ExtractStatement(result)
	if !found {
		t.Fatal("expected CTE statement from fenced block")
	}
	if !strings.HasPrefix(stmt, "WITH ultimos") {
		t.Errorf("stmt = %q, want the WITH ... SELECT body", stmt)
	}
}

func TestExtractStatement_RawTrailingText(t *testing.T) {
	result := GeneratorResult{
		FinalOutput: "Claro, la consulta es: SELECT COUNT(*) FROM ventas\n```",
	}

	stmt, found := ExtractStatement(result)
	if !found || stmt != "SELECT COUNT(*) FROM ventas" {
		t.Errorf("stmt = %q, found = %v; want trailing text with fence trimmed", stmt, found)
	}
}

func TestExtractStatement_NothingFound(t *testing.T) {
	result := GeneratorResult{
		Steps:       []AgentStep{{Log: "pensando..."}},
		FinalOutput: "Hola, soy tu asistente. ¿En qué puedo ayudarte?",
	}

	stmt, found := ExtractStatement(result)
	if found {
		t.Errorf("found = true with stmt %q, want no statement for conversational output", stmt)
	}
}

func TestExtractStatement_ConversationalWithIsNotSQL(t *testing.T) {
	// An English/Spanish "with" that is never followed by a SELECT must not
	// be mistaken for a CTE.
	result := GeneratorResult{
		FinalOutput: "With pleasure! I can help you with that report tomorrow.",
	}

	if stmt, found := ExtractStatement(result); found {
		t.Errorf("found = true with stmt %q, want none", stmt)
	}
}

func TestExtractStatement_NonSelectToolArgIgnored(t *testing.T) {
	result := GeneratorResult{
		Steps: []AgentStep{
			{ToolName: "sql_db_query", Args: map[string]any{"query": "DROP TABLE clientes"}},
		},
	}

	if stmt, found := ExtractStatement(result); found {
		t.Errorf("found = true with stmt %q; non-SELECT args must fall through", stmt)
	}
}

func TestIsSelectShaped(t *testing.T) {
	cases := []struct {
		stmt string
		want bool
	}{
		{"SELECT 1", true},
		{"  \n select * from ventas", true},
		{"WITH t AS (SELECT 1) SELECT * FROM t", true},
		{"with t as (select 1) select * from t", true},
		{"UPDATE ventas SET total=0", false},
		{"with great power", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsSelectShaped(tc.stmt); got != tc.want {
			t.Errorf("IsSelectShaped(%q) = %v, want %v", tc.stmt, got, tc.want)
		}
	}
}
