// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gate

import (
	"fmt"
	"regexp"
	"strings"
)

// trailingLimitRe matches a LIMIT clause at the very end of the statement.
// Inner limits (subqueries) are left alone.
var trailingLimitRe = regexp.MustCompile(`(?i)\s+limit\s+\d+\s*$`)

// anyLimitRe detects any LIMIT clause, used to decide whether a preview
// limit must be appended.
var anyLimitRe = regexp.MustCompile(`(?i)\blimit\s+\d+\b`)

// tailClauseRe finds trailing clauses (ORDER BY, GROUP BY, LIMIT) before
// which an injected tenant filter must land. Only matches at parenthesis
// depth zero are considered; the same clauses inside a subquery are left
// alone.
var tailClauseRe = regexp.MustCompile(`(?i)\b(?:order\s+by|group\s+by|limit)\b`)

// whereRe detects an existing WHERE clause.
var whereRe = regexp.MustCompile(`(?i)\bwhere\b`)

// Normalize rewrites a validator-allowed statement into its executable form.
//
// Description:
//
//	Three rewrites, in order:
//	  1. Strip a trailing LIMIT the generator guessed, so the router can
//	     measure the true row count and exports are not truncated.
//	  2. If the statement carries no tenant-scope filter at all, inject
//	     one: "AND empresa_id = <tenant>" onto an existing top-level WHERE,
//	     or a new WHERE clause, placed before the statement's own trailing
//	     ORDER BY/GROUP BY/LIMIT (subquery clauses are not insertion points).
//	  3. Without export intent, append the bounded preview LIMIT unless
//	     the statement already specifies one.
//
//	Normalize is idempotent: running it on its own output yields the same
//	statement. It must only ever run AFTER Validate has allowed the
//	original statement — it is not a repair step for unsafe SQL.
//
// Inputs:
//   - statement: A statement already allowed by Validate.
//   - tenantID: The caller's tenant id.
//   - exportIntent: True when the caller wants the full result set.
//   - previewLimit: The row ceiling for non-export statements.
//
// Outputs:
//   - string: The final statement handed to the router and the database.
func Normalize(statement string, tenantID int64, exportIntent bool, previewLimit int) string {
	stmt := strings.TrimSpace(statement)
	stmt = strings.TrimSuffix(stmt, ";")
	stmt = strings.TrimSpace(stmt)

	stmt = trailingLimitRe.ReplaceAllString(stmt, "")

	if !hasTenantFilter(stmt) {
		stmt = injectTenantFilter(stmt, tenantID)
	}

	if !exportIntent && previewLimit > 0 && !anyLimitRe.MatchString(stmt) {
		stmt = fmt.Sprintf("%s LIMIT %d", stmt, previewLimit)
	}

	return stmt
}

// hasTenantFilter reports whether the statement already scopes itself to a
// tenant: either an equality on the tenant foreign key or, for registry
// table reads, the primary-key binding the validator required.
func hasTenantFilter(stmt string) bool {
	if tenantFKBindingRe.MatchString(stmt) {
		return true
	}
	return registryTableRe.MatchString(stmt) && registryIDBindingRe.MatchString(stmt)
}

// injectTenantFilter adds the mandatory tenant filter before the
// statement's own trailing ORDER BY/GROUP BY/LIMIT clause, or at the end.
// Both the WHERE-vs-AND choice and the insertion point only consider
// clauses at parenthesis depth zero, so a subquery's WHERE or ORDER BY
// never attracts the filter into the wrong scope.
func injectTenantFilter(stmt string, tenantID int64) string {
	var filter string
	if topLevelIndex(stmt, whereRe) >= 0 {
		filter = fmt.Sprintf("AND %s = %d", tenantFKColumn, tenantID)
	} else {
		filter = fmt.Sprintf("WHERE %s = %d", tenantFKColumn, tenantID)
	}

	idx := topLevelIndex(stmt, tailClauseRe)
	if idx < 0 {
		return stmt + " " + filter
	}
	head := strings.TrimRight(stmt[:idx], " \t\n")
	return head + " " + filter + " " + stmt[idx:]
}

// topLevelIndex returns the start offset of the first match of re that
// sits at parenthesis depth zero outside string literals, or -1.
func topLevelIndex(stmt string, re *regexp.Regexp) int {
	for _, loc := range re.FindAllStringIndex(stmt, -1) {
		if parenDepthAt(stmt, loc[0]) == 0 {
			return loc[0]
		}
	}
	return -1
}

// parenDepthAt computes the parenthesis nesting depth at byte offset pos.
// Parentheses inside single-quoted string literals do not count.
func parenDepthAt(stmt string, pos int) int {
	depth := 0
	inString := false
	for i := 0; i < pos; i++ {
		switch stmt[i] {
		case '\'':
			inString = !inString
		case '(':
			if !inString {
				depth++
			}
		case ')':
			if !inString {
				depth--
			}
		}
	}
	return depth
}
