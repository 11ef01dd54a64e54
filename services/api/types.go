// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package api exposes the chat endpoint: question in, answer out. All
// user-facing text is Spanish and fixed; internal failure detail never
// reaches the response body.
package api

// QueryRequest is the body of POST /api.
type QueryRequest struct {
	// Pregunta is the user's business question.
	Pregunta string `json:"pregunta"`

	// Exportar forces the report path regardless of keyword detection.
	Exportar bool `json:"exportar,omitempty"`
}

// QueryResponse is the success body. Respuesta is Markdown-capable chat text.
type QueryResponse struct {
	Respuesta string `json:"respuesta"`
}

// ErrorResponse is the failure body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Fixed user-facing messages. Denials and empties deliberately share no
// wording with the internal reason taxonomy.
const (
	msgNoQuestion = "No se proporcionó ninguna pregunta."
	msgNoTenant   = "No se pudo identificar tu empresa. Vuelve a iniciar sesión e inténtalo de nuevo."
	msgDenied     = "Lo siento, no puedo ejecutar esa consulta. Por favor reformula tu pregunta."
	msgEmpty      = "No encontré resultados para tu consulta."
	msgInternal   = "Ocurrió un error procesando tu pregunta. Inténtalo de nuevo en unos momentos."
)
