package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// openTestStore connects to the database named by SYLLABUS_TEST_DATABASE_URL,
// resets the schema and applies all migrations. Skips when the URL is unset
// or in short mode.
func openTestStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := strings.TrimSpace(os.Getenv("SYLLABUS_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("SYLLABUS_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), ctx
}

func TestSyncCourseTagsProcedureRoundTrip(t *testing.T) {
	s, ctx := openTestStore(t)

	var idsJSON []byte
	err := s.CallProcRow(ctx, "sync_course_tags", []any{&idsJSON},
		`[["easy","green1","warmup"],["hard","red1",""]]`, int64(7))
	if err != nil {
		t.Fatalf("sync_course_tags: %v", err)
	}
	var ids []int64
	if err := json.Unmarshal(idsJSON, &ids); err != nil {
		t.Fatalf("decode new_tag_ids %s: %v", idsJSON, err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}

	// Upserting the same names must return the same ids, positionally.
	var againJSON []byte
	err = s.CallProcRow(ctx, "sync_course_tags", []any{&againJSON},
		`[["easy","blue1","recolored"],["hard","red1",""]]`, int64(7))
	if err != nil {
		t.Fatalf("sync_course_tags (second run): %v", err)
	}
	var again []int64
	if err := json.Unmarshal(againJSON, &again); err != nil {
		t.Fatalf("decode second new_tag_ids: %v", err)
	}
	if again[0] != ids[0] || again[1] != ids[1] {
		t.Errorf("upsert changed ids: %v vs %v", again, ids)
	}

	tags, err := s.ListCourseTags(ctx, 7)
	if err != nil {
		t.Fatalf("ListCourseTags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected 2 live tags, got %d", len(tags))
	}
	if tags[0].Name != "easy" || tags[0].Color != "blue1" {
		t.Errorf("upsert did not update color: %+v", tags[0])
	}
}

func TestSyncCourseTagsNewProcedureDeletion(t *testing.T) {
	s, ctx := openTestStore(t)

	var pairsJSON []byte
	err := s.CallProcRow(ctx, "sync_course_tags_new", []any{&pairsJSON},
		true, `[["keep","kept","blue1"]]`, `["referenced"]`, int64(9))
	if err != nil {
		t.Fatalf("sync_course_tags_new: %v", err)
	}

	// Second run without "keep": valid course file, so it must be deleted;
	// "referenced" stays via the referenced set.
	err = s.CallProcRow(ctx, "sync_course_tags_new", []any{&pairsJSON},
		true, `[]`, `["referenced"]`, int64(9))
	if err != nil {
		t.Fatalf("sync_course_tags_new (second run): %v", err)
	}
	var pairs [][]any
	if err := json.Unmarshal(pairsJSON, &pairs); err != nil {
		t.Fatalf("decode new_tags_json %s: %v", pairsJSON, err)
	}
	if len(pairs) != 1 || pairs[0][0] != "referenced" {
		t.Fatalf("expected only the referenced placeholder to survive, got %s", pairsJSON)
	}

	tags, err := s.ListCourseTags(ctx, 9)
	if err != nil {
		t.Fatalf("ListCourseTags: %v", err)
	}
	if len(tags) != 1 {
		t.Fatalf("expected 1 live tag, got %d", len(tags))
	}
	if tags[0].Description != "Automatically generated tag" || tags[0].Color != "gray1" {
		t.Errorf("placeholder row = %+v", tags[0])
	}

	// Invalid course file: empty declared set with the flag down must not
	// delete anything.
	err = s.CallProcRow(ctx, "sync_course_tags_new", []any{&pairsJSON},
		false, `[]`, `[]`, int64(9))
	if err != nil {
		t.Fatalf("sync_course_tags_new (invalid course): %v", err)
	}
	tags, err = s.ListCourseTags(ctx, 9)
	if err != nil {
		t.Fatalf("ListCourseTags: %v", err)
	}
	if len(tags) != 1 {
		t.Errorf("invalid course run must not delete, got %d live tags", len(tags))
	}
}

func TestSyncQuestionTagsProcedureReplacesAssociations(t *testing.T) {
	s, ctx := openTestStore(t)

	var questionID int64
	err := s.DB().QueryRowContext(ctx, `
		INSERT INTO questions (course_id, working_id, title)
		VALUES (3, 'q1', 'Sums') RETURNING id
	`).Scan(&questionID)
	if err != nil {
		t.Fatalf("insert question: %v", err)
	}

	var idsJSON []byte
	err = s.CallProcRow(ctx, "sync_course_tags", []any{&idsJSON},
		`[["a","blue1",""],["b","red1",""]]`, int64(3))
	if err != nil {
		t.Fatalf("sync_course_tags: %v", err)
	}
	var ids []int64
	if err := json.Unmarshal(idsJSON, &ids); err != nil {
		t.Fatalf("decode ids: %v", err)
	}

	assoc, _ := json.Marshal([][]any{{questionID, []int64{ids[0], ids[1]}}})
	if err := s.CallProc(ctx, "sync_question_tags", string(assoc)); err != nil {
		t.Fatalf("sync_question_tags: %v", err)
	}

	tags, err := s.ListCourseTags(ctx, 3)
	if err != nil {
		t.Fatalf("ListCourseTags: %v", err)
	}
	for _, tag := range tags {
		if tag.QuestionCount != 1 {
			t.Errorf("tag %s question count = %d, want 1", tag.Name, tag.QuestionCount)
		}
	}

	// Replacement: syncing again with only one tag drops the other link.
	assoc, _ = json.Marshal([][]any{{questionID, []int64{ids[0]}}})
	if err := s.CallProc(ctx, "sync_question_tags_new", string(assoc)); err != nil {
		t.Fatalf("sync_question_tags_new: %v", err)
	}
	tags, err = s.ListCourseTags(ctx, 3)
	if err != nil {
		t.Fatalf("ListCourseTags: %v", err)
	}
	counts := map[string]int{}
	for _, tag := range tags {
		counts[tag.Name] = tag.QuestionCount
	}
	if counts["a"] != 1 || counts["b"] != 0 {
		t.Errorf("association replacement failed: %v", counts)
	}

	refs, err := s.QuestionIDs(ctx, 3)
	if err != nil {
		t.Fatalf("QuestionIDs: %v", err)
	}
	if refs["q1"] != questionID {
		t.Errorf("QuestionIDs[q1] = %d, want %d", refs["q1"], questionID)
	}
}

func TestLTILinkLifecycle(t *testing.T) {
	s, ctx := openTestStore(t)

	link, err := s.UpsertLTILink(ctx, LTILink{CourseID: 5, ResourceKey: "quiz-1", LaunchURL: "https://tool.example/launch"})
	if err != nil {
		t.Fatalf("UpsertLTILink: %v", err)
	}
	if link.ID == 0 {
		t.Fatal("expected assigned id")
	}

	updated, err := s.UpsertLTILink(ctx, LTILink{CourseID: 5, ResourceKey: "quiz-1", LaunchURL: "https://tool.example/v2"})
	if err != nil {
		t.Fatalf("UpsertLTILink (update): %v", err)
	}
	if updated.ID != link.ID {
		t.Errorf("upsert must keep the row, got id %d vs %d", updated.ID, link.ID)
	}
	if updated.LaunchURL != "https://tool.example/v2" {
		t.Errorf("launch url not updated: %s", updated.LaunchURL)
	}

	if err := s.DeleteLTILink(ctx, 5, "quiz-1"); err != nil {
		t.Fatalf("DeleteLTILink: %v", err)
	}
	links, err := s.ListLTILinks(ctx, 5)
	if err != nil {
		t.Fatalf("ListLTILinks: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("soft-deleted link still listed: %v", links)
	}
	if err := s.DeleteLTILink(ctx, 5, "quiz-1"); !IsNotFound(err) {
		t.Errorf("second delete should be not-found, got %v", err)
	}
}
