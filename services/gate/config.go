// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gate

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all tunables for the safety gate.
//
// Description:
//
//	Loaded from environment variables at startup via LoadConfig(). All
//	fields have safe defaults. The inline threshold is deliberately much
//	smaller than the preview limit: the former decides how many rows are
//	reasonable to render in a chat answer, the latter caps how many rows a
//	non-export query may pull from the database at all.
//
// Thread Safety: Config is a value type. Safe to copy and share after loading.
type Config struct {
	// PreviewLimit is the LIMIT appended to non-export statements that do
	// not already carry one.
	// Env: GATE_PREVIEW_LIMIT (default: 1000)
	PreviewLimit int

	// InlineThreshold is the maximum probed row count still answered inline.
	// Env: GATE_INLINE_THRESHOLD (default: 20)
	InlineThreshold int64

	// ExportKeywords are question words that signal export intent.
	// Env: GATE_EXPORT_KEYWORDS (comma-separated, default: the Spanish set
	// "exportar,descargar,reporte,todos,completo,csv,excel")
	ExportKeywords map[string]bool

	// AuditEnabled controls whether gate audit logging is active.
	// Env: GATE_AUDIT_ENABLED (default: "true")
	AuditEnabled bool
}

// defaultExportKeywords is the fixed keyword set used when the env override
// is absent. Matches the vocabulary the frontend's users actually type.
var defaultExportKeywords = []string{
	"exportar", "descargar", "reporte", "todos", "completo", "csv", "excel",
}

// LoadConfig reads gate configuration from environment variables.
//
// Outputs:
//   - Config: Fully populated configuration with defaults applied.
func LoadConfig() Config {
	cfg := Config{
		PreviewLimit:    envInt("GATE_PREVIEW_LIMIT", 1000),
		InlineThreshold: int64(envInt("GATE_INLINE_THRESHOLD", 20)),
		ExportKeywords:  envSet("GATE_EXPORT_KEYWORDS"),
		AuditEnabled:    envBool("GATE_AUDIT_ENABLED", true),
	}
	if len(cfg.ExportKeywords) == 0 {
		for _, kw := range defaultExportKeywords {
			cfg.ExportKeywords[kw] = true
		}
	}
	return cfg
}

// DetectExportIntent reports whether the question asks for a full export.
//
// Description:
//
//	Lower-cases the question and looks for any export keyword as a
//	substring. Accents are not folded; the keyword set carries the forms
//	users type. An explicit caller hint (request field) takes precedence
//	over this detection and is resolved by the API layer.
func (c Config) DetectExportIntent(question string) bool {
	q := strings.ToLower(question)
	for kw := range c.ExportKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// envBool reads a boolean environment variable with a default value.
func envBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// envInt reads an integer environment variable with a default value.
func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// envSet reads a comma-separated environment variable into a set.
// Returns an empty map (not nil) if the variable is unset.
func envSet(key string) map[string]bool {
	result := make(map[string]bool)
	val := os.Getenv(key)
	if val == "" {
		return result
	}
	for _, item := range strings.Split(val, ",") {
		trimmed := strings.ToLower(strings.TrimSpace(item))
		if trimmed != "" {
			result[trimmed] = true
		}
	}
	return result
}
