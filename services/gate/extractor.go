// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gate

import (
	"regexp"
	"strings"
)

// sqlFenceRe matches a fenced code block labeled sql and captures its body.
// (?s) lets the body span lines; the label match is case-insensitive.
var sqlFenceRe = regexp.MustCompile("(?is)```sql\\s*(.*?)```")

// selectTokenRe finds the first SELECT or WITH token at a word boundary,
// case-insensitive. Used for the last-resort raw-text scan.
var selectTokenRe = regexp.MustCompile(`(?i)\b(SELECT|WITH)\b`)

// structuredArgKeys are the tool-call argument names that may carry SQL,
// probed in order.
var structuredArgKeys = []string{"query", "input"}

// ExtractStatement pulls zero or one candidate SQL statement out of a
// generator result.
//
// Description:
//
//	Search order, first match wins:
//	  1. Structured tool-call arguments: a "query" or "input" string value
//	     that is SELECT-shaped, returned verbatim.
//	  2. A ```sql fenced block in any step log or in the final output whose
//	     trimmed body is SELECT-shaped.
//	  3. The first substring starting at a SELECT (or WITH ... SELECT)
//	     token through the end of the text, with a trailing fence delimiter
//	     trimmed off.
//	Steps are scanned before the final output and never re-requested from
//	the generator.
//
// Outputs:
//   - string: The candidate statement (untrusted, single statement assumed).
//   - bool: False if nothing SQL-shaped was found — a legitimate outcome
//     for purely conversational answers, not an error.
func ExtractStatement(result GeneratorResult) (string, bool) {
	// Step 1: structured tool-call arguments win over any free text.
	for _, step := range result.Steps {
		for _, key := range structuredArgKeys {
			raw, ok := step.Args[key]
			if !ok {
				continue
			}
			s, ok := raw.(string)
			if !ok {
				continue
			}
			if IsSelectShaped(s) {
				return s, true
			}
		}
	}

	// Step 2: labeled fenced blocks in step logs, then the final output.
	texts := make([]string, 0, len(result.Steps)+1)
	for _, step := range result.Steps {
		texts = append(texts, step.Log)
	}
	texts = append(texts, result.FinalOutput)

	for _, text := range texts {
		for _, m := range sqlFenceRe.FindAllStringSubmatch(text, -1) {
			body := strings.TrimSpace(m[1])
			if IsSelectShaped(body) {
				return body, true
			}
		}
	}

	// Step 3: raw trailing text starting at the first SELECT-ish token.
	for _, text := range texts {
		if s, ok := trailingSelect(text); ok {
			return s, true
		}
	}

	return "", false
}

// IsSelectShaped reports whether the statement begins (leading whitespace
// ignored, case-insensitive) with SELECT, or with WITH followed eventually
// by a SELECT — the common-table-expression form counts as SELECT-shaped
// everywhere the gate reasons about statement shape.
func IsSelectShaped(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(lower, "select") {
		return true
	}
	if strings.HasPrefix(lower, "with") {
		return strings.Contains(lower, "select")
	}
	return false
}

// trailingSelect extracts the substring from the first SELECT (or WITH, for
// the CTE form) token to the end of text, trimming a trailing fence
// delimiter if the model closed a code block it never opened in the
// captured slice. A conversational "with" that is not followed by a SELECT
// does not match; the scan moves on to the next token.
func trailingSelect(text string) (string, bool) {
	for _, loc := range selectTokenRe.FindAllStringIndex(text, -1) {
		candidate := strings.TrimSpace(text[loc[0]:])
		candidate = strings.TrimSuffix(candidate, "```")
		candidate = strings.TrimSpace(candidate)
		if IsSelectShaped(candidate) {
			return candidate, true
		}
	}
	return "", false
}
