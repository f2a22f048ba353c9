package tagsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Procedure names invoked by the two drivers. Their internals live in the
// database; this package only owns the parameter contract.
const (
	procSyncCourseTags      = "sync_course_tags"
	procSyncQuestionTags    = "sync_question_tags"
	procSyncCourseTagsNew   = "sync_course_tags_new"
	procSyncQuestionTagsNew = "sync_question_tags_new"
)

// Syncer drives one tag reconciliation run: two sequential procedure calls,
// the second depending on the identifier mapping returned by the first. It
// holds no state between runs; callers must not overlap runs for the same
// course.
type Syncer struct {
	db ProcCaller
}

// NewSyncer creates a syncer over the given procedure caller.
func NewSyncer(db ProcCaller) *Syncer {
	return &Syncer{db: db}
}

// Sync is the legacy reconciliation path. It is always additive: tags no
// longer referenced are never deleted. Questions are keyed by their working
// name; duplicate or unknown tag references are hard errors.
func (s *Syncer) Sync(ctx context.Context, courseID int64, course CourseInfo, questions map[string]Question) error {
	if err := ValidateTagNames(course.Tags); err != nil {
		return err
	}
	resolved := ResolveTags(course.Tags, questions)
	if err := ValidateQuestionTags(questions, tagNameSet(resolved)); err != nil {
		return err
	}

	tuples := EncodeTags(resolved)
	tagParam, err := marshalParam(tuples)
	if err != nil {
		return fmt.Errorf("encode tag tuples: %w", err)
	}

	var idsJSON []byte
	if err := s.db.CallProcRow(ctx, procSyncCourseTags, []any{&idsJSON}, tagParam, courseID); err != nil {
		return fmt.Errorf("call %s: %w", procSyncCourseTags, err)
	}
	var ids []int64
	if err := json.Unmarshal(idsJSON, &ids); err != nil {
		return fmt.Errorf("decode %s result: %w", procSyncCourseTags, err)
	}
	if len(ids) != len(tuples) {
		return fmt.Errorf("%s returned %d ids for %d tags", procSyncCourseTags, len(ids), len(tuples))
	}

	// Ids come back positionally aligned with the encoded tuples.
	idsByName := make(map[string]int64, len(ids))
	for i, tuple := range tuples {
		idsByName[tuple[0]] = ids[i]
	}

	assocs, err := s.legacyAssociations(questions, idsByName)
	if err != nil {
		return err
	}
	assocParam, err := marshalParam(assocs)
	if err != nil {
		return fmt.Errorf("encode associations: %w", err)
	}
	if err := s.db.CallProc(ctx, procSyncQuestionTags, assocParam); err != nil {
		return fmt.Errorf("call %s: %w", procSyncQuestionTags, err)
	}
	return nil
}

// legacyAssociations re-validates every question's tag references against the
// name→id map (the map reflects post-call reality, so the checks run again)
// and encodes the association tuples.
func (s *Syncer) legacyAssociations(questions map[string]Question, idsByName map[string]int64) ([]QuestionTagsTuple, error) {
	assocs := make([]QuestionTagsTuple, 0, len(questions))
	for _, name := range sortedKeys(questions) {
		question := questions[name]
		if dups := Duplicates(question.Tags); len(dups) > 0 {
			return nil, configErrorf("question %s references duplicate tags: %s", name, strings.Join(dups, ", "))
		}
		tagIDs := make([]int64, 0, len(question.Tags))
		var unknown []string
		for _, tag := range question.Tags {
			id, ok := idsByName[tag]
			if !ok {
				unknown = append(unknown, tag)
				continue
			}
			tagIDs = append(tagIDs, id)
		}
		if len(unknown) > 0 {
			return nil, configErrorf("question %s references unknown tags: %s", name, strings.Join(unknown, ", "))
		}
		assocs = append(assocs, QuestionTagsTuple{QuestionID: question.ID, TagIDs: tagIDs})
	}
	return assocs, nil
}

// QuestionData is one question in the current working set, carrying the
// per-item validity computed by the course loader.
type QuestionData struct {
	Valid bool
	Tags  []string
}

// CourseData is the current-path working set. CourseValid gates whether the
// database may delete tags that are in neither the declared nor the
// referenced set; when the course file failed to load the declared list is
// ignored and deletion is suppressed. QuestionIDs maps working ids to the
// persisted question ids.
type CourseData struct {
	CourseValid  bool
	DeclaredTags []Tag
	Questions    map[string]QuestionData
	QuestionIDs  map[string]int64
}

// SyncNew is the current reconciliation path. Declared tags are passed
// through only when the course file loaded cleanly, along with every tag name
// referenced by a valid question; the procedure upserts the union, adds
// placeholders, and deletes stale rows only when the course-valid flag is
// set. Per-question duplicates are silently collapsed and invalid questions
// contribute nothing.
func (s *Syncer) SyncNew(ctx context.Context, courseID int64, data CourseData) error {
	var declared []Tag
	if data.CourseValid {
		declared = data.DeclaredTags
		if err := ValidateTagNames(declared); err != nil {
			return err
		}
	}

	referenced := referencedTagNames(data.Questions)

	tagParam, err := marshalParam(EncodeTagsNew(declared))
	if err != nil {
		return fmt.Errorf("encode tag tuples: %w", err)
	}
	refParam, err := marshalParam(referenced)
	if err != nil {
		return fmt.Errorf("encode referenced names: %w", err)
	}

	var pairsJSON []byte
	if err := s.db.CallProcRow(ctx, procSyncCourseTagsNew, []any{&pairsJSON}, data.CourseValid, tagParam, refParam, courseID); err != nil {
		return fmt.Errorf("call %s: %w", procSyncCourseTagsNew, err)
	}
	var pairs []tagIDPair
	if err := json.Unmarshal(pairsJSON, &pairs); err != nil {
		return fmt.Errorf("decode %s result: %w", procSyncCourseTagsNew, err)
	}
	idsByName := make(map[string]int64, len(pairs))
	for _, pair := range pairs {
		idsByName[pair.Name] = pair.ID
	}

	assocs, err := currentAssociations(data, idsByName)
	if err != nil {
		return err
	}
	assocParam, err := marshalParam(assocs)
	if err != nil {
		return fmt.Errorf("encode associations: %w", err)
	}
	if err := s.db.CallProc(ctx, procSyncQuestionTagsNew, assocParam); err != nil {
		return fmt.Errorf("call %s: %w", procSyncQuestionTagsNew, err)
	}
	return nil
}

// referencedTagNames collects every tag name referenced by a valid question,
// in order of first reference over the sorted working ids. Always returns a
// non-nil slice so an empty set encodes as [].
func referencedTagNames(questions map[string]QuestionData) []string {
	names := make([]string, 0)
	seen := make(map[string]struct{})
	for _, workingID := range sortedKeys(questions) {
		question := questions[workingID]
		if !question.Valid {
			continue
		}
		for _, tag := range question.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			names = append(names, tag)
		}
	}
	return names
}

// currentAssociations encodes association tuples for the current path:
// invalid questions and questions without a persisted id are skipped, and a
// question's tag list is deduplicated keeping first-occurrence order. Every
// referenced name was handed to the tag procedure, so a name absent from its
// result violates the mapping invariant and fails the run.
func currentAssociations(data CourseData, idsByName map[string]int64) ([]QuestionTagsTuple, error) {
	assocs := make([]QuestionTagsTuple, 0, len(data.Questions))
	for _, workingID := range sortedKeys(data.Questions) {
		question := data.Questions[workingID]
		if !question.Valid {
			continue
		}
		questionID, ok := data.QuestionIDs[workingID]
		if !ok {
			continue
		}
		tagIDs := make([]int64, 0, len(question.Tags))
		seen := make(map[string]struct{}, len(question.Tags))
		for _, tag := range question.Tags {
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			id, ok := idsByName[tag]
			if !ok {
				return nil, configErrorf("question %s references tag %s missing from sync result", workingID, tag)
			}
			tagIDs = append(tagIDs, id)
		}
		assocs = append(assocs, QuestionTagsTuple{QuestionID: questionID, TagIDs: tagIDs})
	}
	return assocs, nil
}

// tagIDPair is one [name, id] element of the new_tags_json result.
type tagIDPair struct {
	Name string
	ID   int64
}

func (p *tagIDPair) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 2 {
		return fmt.Errorf("expected [name, id] pair, got %d elements", len(parts))
	}
	if err := json.Unmarshal(parts[0], &p.Name); err != nil {
		return fmt.Errorf("decode pair name: %w", err)
	}
	if err := json.Unmarshal(parts[1], &p.ID); err != nil {
		return fmt.Errorf("decode pair id: %w", err)
	}
	return nil
}
