// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent drives the query generator: it turns a business question
// into a generator trace (tool calls plus free text) and, for inline
// answers, turns executed rows back into a chat reply. The agent never
// executes SQL itself; extraction and validation of whatever the model
// produced happen downstream.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bodezy/datachat/services/gate"
	"github.com/bodezy/datachat/services/llm"
	"github.com/bodezy/datachat/services/storage/postgres"
)

// sqlQueryToolName is the function the model is told to call with its
// candidate statement.
const sqlQueryToolName = "sql_db_query"

// maxSynthesisRows caps how many rows ride into the answer-synthesis
// prompt. The preview limit upstream is larger than what a chat answer
// can usefully show.
const maxSynthesisRows = 50

// Agent wraps the LLM client with the two generation tasks of the service.
//
// Thread Safety: Safe for concurrent use when the client is.
type Agent struct {
	client     llm.Client
	schemaHint string
}

// New creates an agent over an LLM client.
//
// Inputs:
//   - client: The generation backend.
//   - schemaHint: Optional schema description appended to the generation
//     prompt. Empty is fine; the model then relies on the question alone.
func New(client llm.Client, schemaHint string) *Agent {
	return &Agent{client: client, schemaHint: schemaHint}
}

// sqlQueryTool is the single tool offered to the generator.
var sqlQueryTool = []llm.ToolDef{{
	Type: "function",
	Function: llm.ToolFunction{
		Name:        sqlQueryToolName,
		Description: "Propone una consulta SQL de solo lectura (SELECT) que responde la pregunta del usuario.",
		Parameters: llm.ToolParameters{
			Type: "object",
			Properties: map[string]llm.ToolParamDef{
				"query": {Type: "string", Description: "La consulta SQL completa."},
			},
			Required: []string{"query"},
		},
	},
}}

// GenerateQuery asks the model for a statement answering the question.
//
// Description:
//
//	Single generation turn with the sql_db_query tool offered. The
//	model's tool calls become structured steps; its free text becomes
//	the final output. Nothing here runs or trusts the statement — the
//	trace goes to the safety pipeline as-is. A purely conversational
//	answer (no tool call, no SQL in the text) is a legitimate outcome.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - question: The user's business question, verbatim.
//   - tenantID: The caller's tenant, given to the model as a filter hint.
//
// Outputs:
//   - gate.GeneratorResult: The tagged trace for extraction.
//   - error: Non-nil when the generation call itself fails.
func (a *Agent) GenerateQuery(ctx context.Context, question string, tenantID int64) (gate.GeneratorResult, error) {
	messages := []llm.ChatMessage{
		{Role: "system", Content: generationSystemPrompt(a.schemaHint, tenantID)},
		{Role: "user", Content: question},
	}

	temp := float32(0)
	result, err := a.client.ChatWithTools(ctx, messages, llm.GenerationParams{Temperature: &temp}, sqlQueryTool)
	if err != nil {
		return gate.GeneratorResult{}, fmt.Errorf("agent: generating query: %w", err)
	}

	trace := gate.GeneratorResult{FinalOutput: result.Content}
	for _, call := range result.ToolCalls {
		trace.Steps = append(trace.Steps, gate.AgentStep{
			ToolName: call.Name,
			Args:     call.ArgumentsMap(),
		})
	}
	return trace, nil
}

// SynthesizeAnswer turns executed rows into a friendly Spanish reply.
//
// Description:
//
//	Second generation turn over {question, statement, rows}. Rows are
//	serialized as compact JSON and truncated to maxSynthesisRows; the
//	model is asked for a short answer with a Markdown table when one
//	helps.
//
// Outputs:
//   - string: The chat reply.
//   - error: Non-nil when serialization or the generation call fails.
func (a *Agent) SynthesizeAnswer(ctx context.Context, question, statement string, result *postgres.ResultSet) (string, error) {
	rowsJSON, err := serializeRows(result)
	if err != nil {
		return "", fmt.Errorf("agent: serializing rows: %w", err)
	}

	messages := []llm.Message{
		{Role: "system", Content: synthesisSystemPrompt},
		{Role: "user", Content: fmt.Sprintf(
			"Pregunta: %s\nConsulta SQL: %s\nResultado SQL: %s\nRespuesta:",
			question, statement, rowsJSON)},
	}

	temp := float32(0)
	answer, err := a.client.Chat(ctx, messages, llm.GenerationParams{Temperature: &temp})
	if err != nil {
		return "", fmt.Errorf("agent: synthesizing answer: %w", err)
	}
	return answer, nil
}

// serializeRows renders the result set as a compact JSON object with the
// column list and at most maxSynthesisRows rows.
func serializeRows(result *postgres.ResultSet) (string, error) {
	rows := result.Rows
	truncated := false
	if len(rows) > maxSynthesisRows {
		rows = rows[:maxSynthesisRows]
		truncated = true
	}

	payload := map[string]any{
		"columns": result.Columns,
		"rows":    rows,
	}
	if truncated {
		payload["truncated"] = true
		payload["total_rows"] = len(result.Rows)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
