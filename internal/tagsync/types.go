// Package tagsync reconciles tag definitions and question→tag associations
// declared in course bundles against the database, via the course-tag stored
// procedures.
package tagsync

import (
	"context"
	"errors"
	"fmt"
)

const (
	// PlaceholderColor is the palette token assigned to tags that were
	// referenced by a question without being declared in the course file.
	PlaceholderColor = "gray1"
	// PlaceholderDescription marks auto-generated tags in listings.
	PlaceholderDescription = "Automatically generated tag"
)

// Tag is a tag definition as declared in a course file. Its identity before
// persistence is its name; the database assigns a numeric id on upsert.
type Tag struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// Question is a question record in the legacy working set: a persisted
// question id plus the tag names the question references.
type Question struct {
	ID   int64
	Tags []string
}

// CourseInfo is the legacy course-level configuration. Tags may be nil when
// the course file declares none.
type CourseInfo struct {
	Tags []Tag
}

// ProcCaller executes a named database procedure with positional parameters.
// Implementations live outside this package; failures propagate unmodified.
type ProcCaller interface {
	// CallProc runs the procedure and discards any returned rows.
	CallProc(ctx context.Context, name string, args ...any) error
	// CallProcRow runs the procedure, asserts exactly one returned row and
	// scans it into dest.
	CallProcRow(ctx context.Context, name string, dest []any, args ...any) error
}

// ConfigError reports invalid course configuration: duplicate tag names, or a
// question referencing unknown or repeated tags. It always aborts the whole
// sync run.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// NewConfigError builds a ConfigError for callers that detect configuration
// problems before handing data to the sync pipelines.
func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg: msg}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
