// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiClient implements Client against the Gemini REST API
// (generateContent). Supports multi-turn chat and function calling.
//
// Thread Safety: GeminiClient is safe for concurrent use.
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewGeminiClient creates a client from environment variables.
//
// Description:
//
//	Reads GOOGLE_API_KEY (falling back to GEMINI_API_KEY) and
//	GEMINI_MODEL. Defaults to gemini-1.5-flash when no model is set.
//
// Outputs:
//   - *GeminiClient: The configured client.
//   - error: Non-nil when no API key is present.
func NewGeminiClient() (*GeminiClient, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is missing (GOOGLE_API_KEY)")
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = defaultGeminiModel
		slog.Info("GEMINI_MODEL not set, using default", slog.String("model", model))
	}

	return &GeminiClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    "https://generativelanguage.googleapis.com/v1beta",
	}, nil
}

// NewGeminiClientWithConfig creates a client with explicit configuration.
// Used by tests to point at a mock server.
func NewGeminiClientWithConfig(apiKey, model, baseURL string) *GeminiClient {
	return &GeminiClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// Wire types for the generateContent endpoint.

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []geminiToolDeclaration `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string              `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResp `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFunctionResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiFunctionDeclaration struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

type geminiToolDeclaration struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Chat implements Client.Chat using the generateContent API.
func (g *GeminiClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	req := geminiRequest{GenerationConfig: buildGenConfig(params)}

	for _, msg := range messages {
		switch strings.ToLower(msg.Role) {
		case "system":
			req.SystemInstruction = &geminiContent{
				Parts: []geminiPart{{Text: msg.Content}},
			}
		case "assistant":
			req.Contents = append(req.Contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: msg.Content}},
			})
		default:
			// "user" and anything unrecognized.
			req.Contents = append(req.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: msg.Content}},
			})
		}
	}

	apiResp, err := g.send(ctx, req, params.ModelOverride)
	if err != nil {
		return "", err
	}

	text := candidateText(apiResp)
	if text == "" {
		return "", fmt.Errorf("gemini: returned empty text content")
	}
	return text, nil
}

// ChatWithTools implements Client.ChatWithTools.
//
// Description:
//
//	Converts the generic tool and message types to Gemini wire format.
//	Tool results become functionResponse parts; assistant tool calls
//	become functionCall parts on a model turn. Returned tool calls get
//	synthetic IDs since Gemini does not assign any.
//
// Thread Safety: This method is safe for concurrent use.
func (g *GeminiClient) ChatWithTools(ctx context.Context, messages []ChatMessage,
	params GenerationParams, tools []ToolDef) (*ChatWithToolsResult, error) {

	req := geminiRequest{GenerationConfig: buildGenConfig(params)}

	if len(tools) > 0 {
		var decls []geminiFunctionDeclaration
		for _, td := range tools {
			decls = append(decls, geminiFunctionDeclaration{
				Name:        td.Function.Name,
				Description: td.Function.Description,
				Parameters:  td.Function.Parameters,
			})
		}
		req.Tools = []geminiToolDeclaration{{FunctionDeclarations: decls}}
	}

	for _, msg := range messages {
		switch {
		case msg.Role == "system":
			req.SystemInstruction = &geminiContent{
				Parts: []geminiPart{{Text: msg.Content}},
			}

		case msg.Role == "tool" && msg.ToolName != "":
			var respData map[string]any
			if err := json.Unmarshal([]byte(msg.Content), &respData); err != nil {
				respData = map[string]any{"result": msg.Content}
			}
			req.Contents = append(req.Contents, geminiContent{
				Role: "user",
				Parts: []geminiPart{{
					FunctionResponse: &geminiFunctionResp{Name: msg.ToolName, Response: respData},
				}},
			})

		case msg.Role == "assistant" && len(msg.ToolCalls) > 0:
			var parts []geminiPart
			if msg.Content != "" {
				parts = append(parts, geminiPart{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, geminiPart{
					FunctionCall: &geminiFunctionCall{Name: tc.Name, Args: tc.ArgumentsMap()},
				})
			}
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: parts})

		case msg.Role == "assistant":
			req.Contents = append(req.Contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: msg.Content}},
			})

		default:
			req.Contents = append(req.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: msg.Content}},
			})
		}
	}

	apiResp, err := g.send(ctx, req, params.ModelOverride)
	if err != nil {
		return nil, err
	}

	result := &ChatWithToolsResult{Content: candidateText(apiResp)}
	callIndex := 0
	for _, part := range apiResp.Candidates[0].Content.Parts {
		if part.FunctionCall == nil {
			continue
		}
		argsJSON, err := json.Marshal(part.FunctionCall.Args)
		if err != nil {
			argsJSON = []byte(`{}`)
		}
		result.ToolCalls = append(result.ToolCalls, ToolCallResponse{
			ID:        fmt.Sprintf("gemini-call-%d", callIndex),
			Name:      part.FunctionCall.Name,
			Arguments: json.RawMessage(argsJSON),
		})
		callIndex++
	}

	if len(result.ToolCalls) > 0 {
		result.StopReason = "tool_use"
	} else {
		result.StopReason = "end"
	}
	return result, nil
}

// send marshals the request, posts it, and decodes the response.
func (g *GeminiClient) send(ctx context.Context, req geminiRequest, modelOverride string) (*geminiResponse, error) {
	model := g.model
	if modelOverride != "" {
		model = modelOverride
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("gemini: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	slog.Debug("Sending request to Gemini",
		slog.String("model", model),
		slog.Int("content_count", len(req.Contents)),
	)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: API returned status %d: %s", resp.StatusCode, SafeLogString(string(bodyBytes)))
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("gemini: parsing response JSON: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("gemini: API error [%d] %s: %s",
			apiResp.Error.Code, apiResp.Error.Status, SafeLogString(apiResp.Error.Message))
	}
	if len(apiResp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: returned no candidates")
	}
	return &apiResp, nil
}

// candidateText joins the text parts of the first candidate.
func candidateText(resp *geminiResponse) string {
	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, "")
}

// buildGenConfig converts params to wire format. Returns nil when every
// field is default so the key is omitted from the payload.
func buildGenConfig(params GenerationParams) *geminiGenerationConfig {
	cfg := &geminiGenerationConfig{
		Temperature:     params.Temperature,
		TopP:            params.TopP,
		TopK:            params.TopK,
		MaxOutputTokens: params.MaxTokens,
		StopSequences:   params.Stop,
	}
	if cfg.Temperature == nil && cfg.TopP == nil && cfg.TopK == nil &&
		cfg.MaxOutputTokens == nil && len(cfg.StopSequences) == 0 {
		return nil
	}
	return cfg
}
