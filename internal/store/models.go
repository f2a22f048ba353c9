package store

import "time"

// Tag is a persisted course tag row. Tags synthesized by the sync procedures
// for names referenced only by questions carry the auto-generated
// description.
type Tag struct {
	ID          int64
	CourseID    int64
	Name        string
	Color       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// TagUsage is a tag row together with how many live questions reference it.
type TagUsage struct {
	Tag
	QuestionCount int
}

// QuestionRef is the slice of a question row the sync service reads: the
// persisted id behind a working id within one course.
type QuestionRef struct {
	ID        int64
	CourseID  int64
	WorkingID string
	Title     string
}

// LTILink ties a course resource to an external LTI launch URL. It follows
// the platform's soft-delete convention and is untouched by tag
// reconciliation.
type LTILink struct {
	ID          int64
	CourseID    int64
	ResourceKey string
	LaunchURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}
