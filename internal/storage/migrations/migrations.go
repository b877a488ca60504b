// Package migrations applies the embedded schemas of the negotiation record
// store (PostgreSQL), the suggestion log (ClickHouse) and the local warehouse
// (MySQL). Every schema file is idempotent and applied in lexical order.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"dairy-market-lab/internal/observability"
)

// script is one embedded schema file.
type script struct {
	name string
	body string
}

// execFunc runs one SQL statement or script.
type execFunc func(ctx context.Context, sql string) error

// loadScripts reads the non-empty .sql files of dir, sorted by name.
func loadScripts(fsys fs.FS, dir string) ([]script, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var scripts []script
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		scripts = append(scripts, script{name: entry.Name(), body: string(data)})
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].name < scripts[j].name })
	return scripts, nil
}

// apply runs every script of dir. With perStatement set, scripts are split
// and executed one statement at a time for drivers without multi-statement
// support.
func apply(ctx context.Context, database string, fsys fs.FS, dir string, perStatement bool, exec execFunc) error {
	scripts, err := loadScripts(fsys, dir)
	if err != nil {
		return err
	}

	for _, s := range scripts {
		stmts := []string{s.body}
		if perStatement {
			stmts = splitStatements(s.body)
		}
		for _, stmt := range stmts {
			start := time.Now()
			err := exec(ctx, stmt)
			observability.RecordDBQuery(database, "migrate", time.Since(start).Seconds(), err)
			if err != nil {
				return fmt.Errorf("apply migration %s: %w", s.name, err)
			}
		}
	}
	return nil
}

// splitStatements splits a script on semicolons outside single-quoted
// literals. Line comments are dropped; '' inside a literal is an escaped quote.
func splitStatements(input string) []string {
	var (
		stmts   []string
		cur     strings.Builder
		inQuote bool
	)
	flush := func() {
		if stmt := strings.TrimSpace(cur.String()); stmt != "" {
			stmts = append(stmts, stmt)
		}
		cur.Reset()
	}

	for i := 0; i < len(input); i++ {
		ch := input[i]
		switch {
		case inQuote:
			cur.WriteByte(ch)
			if ch == '\'' {
				if i+1 < len(input) && input[i+1] == '\'' {
					cur.WriteByte('\'')
					i++
					continue
				}
				inQuote = false
			}
		case ch == '\'':
			inQuote = true
			cur.WriteByte(ch)
		case ch == '-' && i+1 < len(input) && input[i+1] == '-':
			for i < len(input) && input[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case ch == ';':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	flush()
	return stmts
}
