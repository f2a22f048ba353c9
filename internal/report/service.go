package report

import (
	"context"
	"fmt"
	"time"
)

// DataStore defines the interface for data access
type DataStore interface {
	ListCourseTagUsage(ctx context.Context, courseID int64) ([]TagUsageInfo, error)
	CountCourseQuestions(ctx context.Context, courseID int64) (total int, untagged int, err error)
}

// TagUsageInfo holds a tag and how many live questions reference it
type TagUsageInfo struct {
	Name          string
	Color         string
	Description   string
	QuestionCount int
}

// Service renders course reports
type Service struct {
	store DataStore
	now   func() time.Time
}

// NewService creates a new report service
func NewService(store DataStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Generate produces a report in the requested format
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	tags, err := s.store.ListCourseTagUsage(ctx, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("list tag usage: %w", err)
	}

	total, untagged, err := s.store.CountCourseQuestions(ctx, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}

	title := req.CourseTitle
	if title == "" {
		title = fmt.Sprintf("Course %d tag report", req.CourseID)
	}

	data := TemplateData{
		CourseID:      req.CourseID,
		CourseTitle:   title,
		GeneratedAt:   s.now(),
		QuestionTotal: total,
		UntaggedCount: untagged,
	}
	for _, t := range tags {
		data.Tags = append(data.Tags, TemplateTag{
			Name:          t.Name,
			Color:         t.Color,
			Description:   t.Description,
			QuestionCount: t.QuestionCount,
		})
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return renderPDF(html, title)
	case FormatDOCX:
		return renderDOCX(html, title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
