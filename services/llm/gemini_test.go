// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewGeminiClient_MissingKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := NewGeminiClient(); err == nil {
		t.Error("NewGeminiClient() = nil error, want missing-key error")
	}
}

func TestNewGeminiClient_LegacyKeyFallback(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "legacy-key")
	t.Setenv("GEMINI_MODEL", "")

	client, err := NewGeminiClient()
	if err != nil {
		t.Fatalf("NewGeminiClient() error = %v", err)
	}
	if client.apiKey != "legacy-key" {
		t.Errorf("apiKey = %q, want the GEMINI_API_KEY fallback", client.apiKey)
	}
	if client.model != defaultGeminiModel {
		t.Errorf("model = %q, want %q", client.model, defaultGeminiModel)
	}
}

func TestChat_Success(t *testing.T) {
	var gotReq geminiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "models/gemini-1.5-flash:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("x-goog-api-key = %q, want test-key", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}

		resp := geminiResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{
					Role:  "model",
					Parts: []geminiPart{{Text: "Hay 42 clientes activos."}},
				},
				FinishReason: "STOP",
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewGeminiClientWithConfig("test-key", "gemini-1.5-flash", server.URL)

	messages := []Message{
		{Role: "system", Content: "Eres un asistente de datos."},
		{Role: "user", Content: "¿Cuántos clientes activos hay?"},
	}
	got, err := client.Chat(context.Background(), messages, GenerationParams{})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != "Hay 42 clientes activos." {
		t.Errorf("Chat() = %q", got)
	}

	// The system turn maps onto systemInstruction, not contents.
	if gotReq.SystemInstruction == nil {
		t.Fatal("request systemInstruction is nil")
	}
	if len(gotReq.Contents) != 1 || gotReq.Contents[0].Role != "user" {
		t.Errorf("contents = %+v, want a single user turn", gotReq.Contents)
	}
	if gotReq.GenerationConfig != nil {
		t.Error("generationConfig should be omitted when no params are set")
	}
}

func TestChat_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	client := NewGeminiClientWithConfig("test-key", "gemini-1.5-flash", server.URL)

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hola"}}, GenerationParams{})
	if err == nil {
		t.Fatal("Chat() = nil error, want status error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error %q should carry the status code", err)
	}
}

func TestChat_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	client := NewGeminiClientWithConfig("test-key", "gemini-1.5-flash", server.URL)

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hola"}}, GenerationParams{})
	if err == nil || !strings.Contains(err.Error(), "no candidates") {
		t.Errorf("Chat() error = %v, want no-candidates error", err)
	}
}

func TestChatWithTools_FunctionCall(t *testing.T) {
	var gotReq geminiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		resp := geminiResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{
					Role: "model",
					Parts: []geminiPart{{
						FunctionCall: &geminiFunctionCall{
							Name: "sql_db_query",
							Args: map[string]any{"query": "SELECT COUNT(*) FROM clientes WHERE empresa_id = 9"},
						},
					}},
				},
				FinishReason: "STOP",
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewGeminiClientWithConfig("test-key", "gemini-1.5-flash", server.URL)

	tools := []ToolDef{{
		Type: "function",
		Function: ToolFunction{
			Name:        "sql_db_query",
			Description: "Ejecuta una consulta SQL de solo lectura.",
			Parameters: ToolParameters{
				Type: "object",
				Properties: map[string]ToolParamDef{
					"query": {Type: "string", Description: "La consulta SQL."},
				},
				Required: []string{"query"},
			},
		},
	}}

	result, err := client.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "¿Cuántos clientes tengo?"}},
		GenerationParams{}, tools)
	if err != nil {
		t.Fatalf("ChatWithTools() error = %v", err)
	}

	if result.StopReason != "tool_use" {
		t.Errorf("stopReason = %q, want tool_use", result.StopReason)
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(result.ToolCalls))
	}
	call := result.ToolCalls[0]
	if call.Name != "sql_db_query" {
		t.Errorf("tool name = %q", call.Name)
	}
	if call.ID != "gemini-call-0" {
		t.Errorf("synthetic id = %q, want gemini-call-0", call.ID)
	}
	args := call.ArgumentsMap()
	if q, _ := args["query"].(string); !strings.HasPrefix(q, "SELECT COUNT(*)") {
		t.Errorf("args[query] = %v", args["query"])
	}

	// The tool declaration must ride in the request.
	if len(gotReq.Tools) != 1 || len(gotReq.Tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("request tools = %+v", gotReq.Tools)
	}
	if gotReq.Tools[0].FunctionDeclarations[0].Name != "sql_db_query" {
		t.Errorf("declared tool = %q", gotReq.Tools[0].FunctionDeclarations[0].Name)
	}
}

func TestChatWithTools_ToolResultTurn(t *testing.T) {
	var gotReq geminiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		resp := geminiResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{
					Role:  "model",
					Parts: []geminiPart{{Text: "Tienes 42 clientes."}},
				},
				FinishReason: "STOP",
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewGeminiClientWithConfig("test-key", "gemini-1.5-flash", server.URL)

	messages := []ChatMessage{
		{Role: "user", Content: "¿Cuántos clientes tengo?"},
		{Role: "assistant", ToolCalls: []ToolCallResponse{{
			ID:        "gemini-call-0",
			Name:      "sql_db_query",
			Arguments: json.RawMessage(`{"query": "SELECT COUNT(*) FROM clientes WHERE empresa_id = 9"}`),
		}}},
		{Role: "tool", ToolName: "sql_db_query", Content: `{"count": 42}`},
	}

	result, err := client.ChatWithTools(context.Background(), messages, GenerationParams{}, nil)
	if err != nil {
		t.Fatalf("ChatWithTools() error = %v", err)
	}
	if result.Content != "Tienes 42 clientes." {
		t.Errorf("content = %q", result.Content)
	}
	if result.StopReason != "end" {
		t.Errorf("stopReason = %q, want end", result.StopReason)
	}

	// user turn, model functionCall turn, user functionResponse turn.
	if len(gotReq.Contents) != 3 {
		t.Fatalf("got %d content turns, want 3", len(gotReq.Contents))
	}
	if gotReq.Contents[1].Role != "model" || gotReq.Contents[1].Parts[0].FunctionCall == nil {
		t.Errorf("turn 1 = %+v, want a model functionCall turn", gotReq.Contents[1])
	}
	fr := gotReq.Contents[2].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "sql_db_query" {
		t.Errorf("turn 2 = %+v, want a functionResponse turn", gotReq.Contents[2])
	}
}

func TestChat_GenerationConfigWiring(t *testing.T) {
	var gotReq geminiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		resp := geminiResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{Parts: []geminiPart{{Text: "ok"}}},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewGeminiClientWithConfig("test-key", "gemini-1.5-flash", server.URL)

	temp := float32(0.2)
	maxTokens := 1024
	_, err := client.Chat(context.Background(),
		[]Message{{Role: "user", Content: "hola"}},
		GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	cfg := gotReq.GenerationConfig
	if cfg == nil {
		t.Fatal("generationConfig missing from request")
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", cfg.Temperature)
	}
	if cfg.MaxOutputTokens == nil || *cfg.MaxOutputTokens != 1024 {
		t.Errorf("maxOutputTokens = %v, want 1024", cfg.MaxOutputTokens)
	}
}
