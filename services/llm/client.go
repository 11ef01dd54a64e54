// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides the Gemini client used by the query generator.
package llm

import (
	"context"
	"encoding/json"
)

// Message is a single turn in a plain-text conversation.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`
}

// GenerationParams controls sampling for a single request. Nil pointer
// fields mean "use the provider default".
//
// Thread Safety: GenerationParams is a value type; safe to copy.
type GenerationParams struct {
	Temperature *float32
	TopP        *float32
	TopK        *int
	MaxTokens   *int
	Stop        []string

	// ModelOverride selects a different model for this request only.
	ModelOverride string
}

// Client is the provider interface consumed by the agent layer.
//
// Description:
//
//	Chat handles plain multi-turn text generation. ChatWithTools extends
//	it with function calling and returns the model's tool invocations so
//	the caller can run them (or, here, inspect them without running them).
//
// Thread Safety: Implementations must be safe for concurrent use.
type Client interface {
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)
	ChatWithTools(ctx context.Context, messages []ChatMessage, params GenerationParams, tools []ToolDef) (*ChatWithToolsResult, error)
}

// ToolDef is a provider-agnostic tool definition following the common
// function-calling schema. The Gemini client converts it to
// functionDeclarations wire format.
type ToolDef struct {
	// Type is always "function".
	Type string `json:"type"`

	Function ToolFunction `json:"function"`
}

// ToolFunction carries the function name, description, and parameter schema.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

// ToolParameters is the JSON Schema object describing a tool's parameters.
type ToolParameters struct {
	// Type is always "object".
	Type string `json:"type"`

	Properties map[string]ToolParamDef `json:"properties,omitempty"`
	Required   []string                `json:"required,omitempty"`
}

// ToolParamDef describes one parameter in JSON Schema terms.
type ToolParamDef struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// ChatMessage is a conversation turn that can carry tool-call metadata.
// Plain turns use Role + Content; assistant turns may carry ToolCalls;
// tool-result turns carry ToolName (required by Gemini's functionResponse).
type ChatMessage struct {
	Role       string             `json:"role"`
	Content    string             `json:"content,omitempty"`
	ToolCalls  []ToolCallResponse `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
	ToolName   string             `json:"tool_name,omitempty"`
}

// ToolCallResponse is one tool invocation requested by the model.
// Gemini does not assign call IDs, so the client generates synthetic ones.
type ToolCallResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ArgumentsMap decodes the call arguments into a generic map.
//
// Outputs:
//   - map[string]any: The decoded arguments. Empty map for empty or
//     malformed arguments, never nil.
func (t *ToolCallResponse) ArgumentsMap() map[string]any {
	args := make(map[string]any)
	if len(t.Arguments) == 0 {
		return args
	}
	if err := json.Unmarshal(t.Arguments, &args); err != nil {
		return make(map[string]any)
	}
	return args
}

// ChatWithToolsResult is the outcome of a ChatWithTools call.
type ChatWithToolsResult struct {
	// Content is the text response. May be empty when the model only
	// requested tool calls.
	Content string

	// ToolCalls contains the model's tool invocations, in order.
	ToolCalls []ToolCallResponse

	// StopReason is "tool_use" when tool calls are present, "end" otherwise.
	StopReason string
}
