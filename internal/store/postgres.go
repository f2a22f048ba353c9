package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound reports a lookup that matched no live row.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err is the store's not-found sentinel or
// sql.ErrNoRows.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}

// PostgresStore is the service's data access layer. The tags and
// question_tags tables are written only by the sync procedures; this store
// reads them and manages the rows outside the reconciliation core.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// DB exposes the underlying handle for collaborators that build their own
// queries (PG full-text search).
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// QuestionIDs returns the working-id → persisted-id mapping for every live
// question of a course. Questions the question sync has not persisted yet
// simply have no entry.
func (s *PostgresStore) QuestionIDs(ctx context.Context, courseID int64) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT working_id, id FROM questions
		WHERE course_id = $1 AND deleted_at IS NULL
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list question ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var workingID string
		var id int64
		if err := rows.Scan(&workingID, &id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids[workingID] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question ids: %w", err)
	}
	return ids, nil
}

// LookupQuestion returns the persisted question behind a working id.
func (s *PostgresStore) LookupQuestion(ctx context.Context, courseID int64, workingID string) (QuestionRef, error) {
	var ref QuestionRef
	err := s.db.QueryRowContext(ctx, `
		SELECT id, course_id, working_id, title FROM questions
		WHERE course_id = $1 AND working_id = $2 AND deleted_at IS NULL
	`, courseID, workingID).Scan(&ref.ID, &ref.CourseID, &ref.WorkingID, &ref.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return QuestionRef{}, ErrNotFound
	}
	if err != nil {
		return QuestionRef{}, fmt.Errorf("lookup question: %w", err)
	}
	return ref, nil
}

// ListCourseTags returns the live tags of a course with their question
// counts, ordered by name. Used by the report and the search indexer.
func (s *PostgresStore) ListCourseTags(ctx context.Context, courseID int64) ([]TagUsage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.course_id, t.name, t.color, t.description, t.created_at, t.updated_at,
			COUNT(qt.question_id) AS question_count
		FROM tags t
		LEFT JOIN question_tags qt ON qt.tag_id = t.id
		WHERE t.course_id = $1 AND t.deleted_at IS NULL
		GROUP BY t.id
		ORDER BY t.name
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list course tags: %w", err)
	}
	defer rows.Close()

	tags := make([]TagUsage, 0)
	for rows.Next() {
		var tag TagUsage
		if err := rows.Scan(&tag.ID, &tag.CourseID, &tag.Name, &tag.Color, &tag.Description,
			&tag.CreatedAt, &tag.UpdatedAt, &tag.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

// CountCourseQuestions returns how many live questions a course has, and how
// many of those carry no live tag.
func (s *PostgresStore) CountCourseQuestions(ctx context.Context, courseID int64) (total int, untagged int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE NOT EXISTS (
				SELECT 1 FROM question_tags qt
				JOIN tags t ON t.id = qt.tag_id
				WHERE qt.question_id = q.id AND t.deleted_at IS NULL
			))
		FROM questions q
		WHERE q.course_id = $1 AND q.deleted_at IS NULL
	`, courseID).Scan(&total, &untagged)
	if err != nil {
		return 0, 0, fmt.Errorf("count course questions: %w", err)
	}
	return total, untagged, nil
}

// UpsertLTILink inserts or revives the link for (course, resource), updating
// the launch URL and clearing any soft delete.
func (s *PostgresStore) UpsertLTILink(ctx context.Context, link LTILink) (LTILink, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO lti_links (course_id, resource_key, launch_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (course_id, resource_key)
		DO UPDATE SET launch_url = EXCLUDED.launch_url, updated_at = NOW(), deleted_at = NULL
		RETURNING id, course_id, resource_key, launch_url, created_at, updated_at
	`, link.CourseID, link.ResourceKey, link.LaunchURL).Scan(
		&link.ID, &link.CourseID, &link.ResourceKey, &link.LaunchURL, &link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		return LTILink{}, fmt.Errorf("upsert lti link: %w", err)
	}
	return link, nil
}

// ListLTILinks returns the live links of a course ordered by resource key.
func (s *PostgresStore) ListLTILinks(ctx context.Context, courseID int64) ([]LTILink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, course_id, resource_key, launch_url, created_at, updated_at
		FROM lti_links
		WHERE course_id = $1 AND deleted_at IS NULL
		ORDER BY resource_key
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list lti links: %w", err)
	}
	defer rows.Close()

	links := make([]LTILink, 0)
	for rows.Next() {
		var link LTILink
		if err := rows.Scan(&link.ID, &link.CourseID, &link.ResourceKey, &link.LaunchURL,
			&link.CreatedAt, &link.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan lti link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lti links: %w", err)
	}
	return links, nil
}

// DeleteLTILink soft-deletes the link for (course, resource).
func (s *PostgresStore) DeleteLTILink(ctx context.Context, courseID int64, resourceKey string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE lti_links SET deleted_at = NOW(), updated_at = NOW()
		WHERE course_id = $1 AND resource_key = $2 AND deleted_at IS NULL
	`, courseID, resourceKey)
	if err != nil {
		return fmt.Errorf("delete lti link: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete lti link: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
