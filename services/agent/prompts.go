// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import "fmt"

// generationSystemPrompt builds the system prompt for the query generator.
//
// The tenant filter instruction is a hint to improve first-pass quality;
// correctness does not depend on the model honoring it. Statements missing
// the filter are rejected or rewritten downstream.
func generationSystemPrompt(schemaHint string, tenantID int64) string {
	prompt := fmt.Sprintf(
		"Eres un asistente de datos para un sistema de gestión empresarial sobre PostgreSQL.\n"+
			"Cuando la pregunta requiera datos, llama a la herramienta sql_db_query con una única consulta SELECT.\n"+
			"Reglas:\n"+
			"- Solo consultas de lectura (SELECT). Nunca INSERT, UPDATE, DELETE ni DDL.\n"+
			"- Las tablas de negocio tienen una columna empresa_id; filtra siempre con empresa_id = %d.\n"+
			"- Si la pregunta no requiere datos, responde directamente en español sin llamar a la herramienta.\n",
		tenantID)

	if schemaHint != "" {
		prompt += "\nEsquema de la base de datos:\n" + schemaHint + "\n"
	}
	return prompt
}

// synthesisSystemPrompt asks for a friendly answer over executed rows.
// Mirrors the wording the frontend's users are used to.
const synthesisSystemPrompt = "Dada la siguiente pregunta, consulta SQL y resultado, " +
	"proporciona una respuesta amigable en español y una tabla en formato Markdown si aplica. " +
	"No inventes datos que no estén en el resultado."
