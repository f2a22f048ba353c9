package store

import (
	"context"
	"fmt"
	"strings"
)

// CallProc executes a named stored procedure with positional parameters and
// discards any returned rows. Failures propagate to the caller unmodified in
// kind.
func (s *PostgresStore) CallProc(ctx context.Context, name string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, procQuery(name, len(args)), args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

// CallProcRow executes a named stored procedure, asserts it returned exactly
// one row, and scans it into dest.
func (s *PostgresStore) CallProcRow(ctx context.Context, name string, dest []any, args ...any) error {
	rows, err := s.db.QueryContext(ctx, procQuery(name, len(args)), args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("call %s: %w", name, err)
		}
		return fmt.Errorf("call %s: expected one row, got none", name)
	}
	if err := rows.Scan(dest...); err != nil {
		return fmt.Errorf("scan %s result: %w", name, err)
	}
	if rows.Next() {
		return fmt.Errorf("call %s: expected one row, got more", name)
	}
	return rows.Err()
}

// procQuery builds "SELECT * FROM name($1, ...)". Procedure names come from
// package-level constants, never from user input.
func procQuery(name string, argc int) string {
	placeholders := make([]string, argc)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("SELECT * FROM %s(%s)", name, strings.Join(placeholders, ", "))
}
