// Package sqlbundle embeds the relational schema applied by the SQL stores.
package sqlbundle

import (
	"bufio"
	_ "embed"
	"strings"
)

//go:embed sqlite.sql
var sqliteDDL string

//go:embed postgres.sql
var postgresDDL string

// SQLite returns the SQLite schema script.
func SQLite() string {
	return sqliteDDL
}

// Postgres returns the Postgres schema script.
func Postgres() string {
	return postgresDDL
}

// SplitStatements splits a semicolon-terminated DDL script into executable statements.
// It drops blank lines and single-line comments that start with "--".
func SplitStatements(ddl string) []string {
	scanner := bufio.NewScanner(strings.NewReader(ddl))
	var (
		stmts   []string
		current strings.Builder
	)
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(trimmed)
		if !strings.HasSuffix(trimmed, ";") {
			current.WriteByte(' ')
			continue
		}
		stmts = append(stmts, current.String())
		current.Reset()
	}
	if tail := strings.TrimSpace(current.String()); tail != "" {
		stmts = append(stmts, tail)
	}
	return stmts
}
