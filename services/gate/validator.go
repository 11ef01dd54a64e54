// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gate

import (
	"regexp"
	"strconv"
)

// The tenant-registry table enumerates the tenants themselves and is the
// only table whose primary key IS the tenant id. Every business table
// carries the tenant foreign key column instead.
const (
	tenantRegistryTable = "empresas"
	tenantFKColumn      = "empresa_id"
)

// forbiddenKeywordRe matches mutating/DDL keywords as whole words. A word
// boundary on both sides keeps identifiers like "created_at" or
// "updated_by" from false-positiving.
var forbiddenKeywordRe = regexp.MustCompile(
	`(?i)\b(insert|update|delete|drop|alter|truncate|grant|revoke|merge|create)\b`)

// registryTableRe detects a read of the tenant registry table, either as
// the FROM target or via a join.
var registryTableRe = regexp.MustCompile(`(?i)\b(?:from|join)\s+` + tenantRegistryTable + `\b`)

// registryIDBindingRe captures every integer bound to an id column (id,
// empresas.id, or any alias-qualified id). The optional qualifier group
// plus the word boundary keeps it from matching inside empresa_id.
//
// The match is deliberately NOT restricted to the registry table's own
// qualifier: tracking which alias names the registry would need a parser,
// and a misread alias there would let a foreign registry pin through. The
// price is an over-approximation — a statement that reads the registry and
// also binds some other table's id to an unrelated literal is denied even
// though that literal is harmless. Deny is the safe direction for a scope
// rule, so the imprecision stays.
var registryIDBindingRe = regexp.MustCompile(`(?i)(?:\b\w+\.)?\bid\b\s*=\s*(\d+)`)

// tenantFKRe detects any reference to the tenant foreign-key column.
var tenantFKRe = regexp.MustCompile(`(?i)\b` + tenantFKColumn + `\b`)

// tenantFKBindingRe captures every integer bound by equality to the tenant
// foreign-key column, anywhere in the statement including subqueries.
var tenantFKBindingRe = regexp.MustCompile(`(?i)\b(?:\w+\.)?` + tenantFKColumn + `\s*=\s*(\d+)`)

// Validate applies the ordered safety rules to a candidate statement.
//
// Description:
//
//	Rules, short-circuiting on first failure:
//	  1. Read-only: the statement must be SELECT-shaped.
//	  2. Forbidden keywords: no mutating/DDL keyword as a whole word.
//	  3. Registry scope: a read of the tenant registry table must bind its
//	     primary key to exactly the caller's tenant, and to no other value.
//	  4. Tenant scope: any statement touching the tenant foreign key must
//	     carry at least one equality binding it to the caller's tenant.
//	  5. Leak scan: every tenant foreign-key equality in the statement,
//	     subqueries included, must bind the caller's tenant. A correct
//	     filter in one clause does not excuse a foreign id in another
//	     (e.g. a crafted "OR empresa_id = 7").
//
//	Rules 1-2 contain the blast radius; rules 3-5 enforce tenant
//	isolation and deliberately overlap. Validate is a pure function; the
//	caller is responsible for audit logging the verdict.
//
// Inputs:
//   - statement: The candidate SQL, untrusted.
//   - tenantID: The caller's tenant id from trusted request context.
//
// Outputs:
//   - Verdict: Allowed, or Denied with the first failing rule's reason.
func Validate(statement string, tenantID int64) Verdict {
	// Rule 1: read-only shape.
	if !IsSelectShaped(statement) {
		return Deny(ReasonNotSelect)
	}

	// Rule 2: forbidden keywords.
	if forbiddenKeywordRe.MatchString(statement) {
		return Deny(ReasonForbiddenKeyword)
	}

	// Rule 3: tenant registry table must be pinned to the caller. The id
	// scan covers the whole statement, not just the registry's filter
	// position; see registryIDBindingRe for why the wider net is kept.
	if registryTableRe.MatchString(statement) {
		bindings := registryIDBindingRe.FindAllStringSubmatch(statement, -1)
		if len(bindings) == 0 {
			return Deny(ReasonBroadTenantTableQuery)
		}
		for _, m := range bindings {
			if !literalEquals(m[1], tenantID) {
				return Deny(ReasonBroadTenantTableQuery)
			}
		}
	}

	// Rule 4: statements touching the tenant FK need at least one correct
	// equality filter.
	if tenantFKRe.MatchString(statement) {
		found := false
		for _, m := range tenantFKBindingRe.FindAllStringSubmatch(statement, -1) {
			if literalEquals(m[1], tenantID) {
				found = true
				break
			}
		}
		if !found {
			return Deny(ReasonTenantMismatch)
		}
	}

	// Rule 5: no tenant FK equality anywhere may bind a different tenant.
	for _, m := range tenantFKBindingRe.FindAllStringSubmatch(statement, -1) {
		if !literalEquals(m[1], tenantID) {
			return Deny(ReasonTenantMismatch)
		}
	}

	return Allow()
}

// literalEquals parses an integer literal and compares it to the tenant id.
// Unparseable literals (overflow) never count as a match.
func literalEquals(literal string, tenantID int64) bool {
	n, err := strconv.ParseInt(literal, 10, 64)
	if err != nil {
		return false
	}
	return n == tenantID
}
