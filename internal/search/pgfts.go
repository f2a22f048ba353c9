package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across tags and questions using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Tags sub-query
	if q.FilterType == "" || q.FilterType == ResultTag {
		tagWhere := "t.fts @@ " + tsQuery + " AND t.deleted_at IS NULL"
		if q.FilterCourseID != 0 {
			tagWhere += fmt.Sprintf(" AND t.course_id = $%d", argN)
			args = append(args, q.FilterCourseID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'tag'::text AS type, t.id::text, t.course_id, t.name AS title,
				ts_headline('english', coalesce(t.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				t.color,
				ts_rank(t.fts, %s) AS rank
			FROM tags t
			WHERE %s`, tsQuery, tsQuery, tagWhere))
	}

	// Questions sub-query
	if q.FilterType == "" || q.FilterType == ResultQuestion {
		questionWhere := "qn.fts @@ " + tsQuery + " AND qn.deleted_at IS NULL"
		if q.FilterCourseID != 0 {
			questionWhere += fmt.Sprintf(" AND qn.course_id = $%d", argN)
			args = append(args, q.FilterCourseID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'question'::text AS type, qn.id::text, qn.course_id, qn.title,
				ts_headline('english', coalesce(qn.working_id, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS color,
				ts_rank(qn.fts, %s) AS rank
			FROM questions qn
			WHERE %s`, tsQuery, tsQuery, questionWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	// Count query
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	// Data query
	dataSQL := fmt.Sprintf(`SELECT type, id, course_id, title, snippet, color
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.CourseID, &r.Title, &r.Snippet, &r.Color); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all live searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]TagRecord, []QuestionRecord, error) {
	tagRows, err := p.db.QueryContext(ctx, `
		SELECT id::text, course_id, name, color, description
		FROM tags
		WHERE deleted_at IS NULL
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load tags: %w", err)
	}
	defer tagRows.Close()

	tags := make([]TagRecord, 0)
	for tagRows.Next() {
		var t TagRecord
		if err := tagRows.Scan(&t.ID, &t.CourseID, &t.Name, &t.Color, &t.Description); err != nil {
			return nil, nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := tagRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate tags: %w", err)
	}

	questionRows, err := p.db.QueryContext(ctx, `
		SELECT q.id::text, q.course_id, q.working_id, q.title,
			coalesce(array_agg(t.name) FILTER (WHERE t.id IS NOT NULL), '{}')
		FROM questions q
		LEFT JOIN question_tags qt ON qt.question_id = q.id
		LEFT JOIN tags t ON t.id = qt.tag_id AND t.deleted_at IS NULL
		WHERE q.deleted_at IS NULL
		GROUP BY q.id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load questions: %w", err)
	}
	defer questionRows.Close()

	questions := make([]QuestionRecord, 0)
	for questionRows.Next() {
		var q QuestionRecord
		var tagNames []byte
		if err := questionRows.Scan(&q.ID, &q.CourseID, &q.WorkingID, &q.Title, &tagNames); err != nil {
			return nil, nil, fmt.Errorf("scan question: %w", err)
		}
		q.Tags = parseTextArray(string(tagNames))
		questions = append(questions, q)
	}
	if err := questionRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate questions: %w", err)
	}

	return tags, questions, nil
}

// parseTextArray decodes a simple Postgres text array literal. Tag names do
// not contain quotes or braces, so the plain split is enough here.
func parseTextArray(s string) []string {
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(p, `"`)
	}
	return parts
}
