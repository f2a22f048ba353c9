// Package report renders course tag summaries as PDF and DOCX downloads.
package report

import "errors"

// Format represents the report output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for a report operation
type Request struct {
	CourseID    int64
	CourseTitle string
	Format      Format
}

// Result contains the report output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF rendering runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("report pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX rendering runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("report docx dependency missing")
)
