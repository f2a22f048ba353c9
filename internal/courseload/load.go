// Package courseload loads declarative course bundles: a course file plus a
// directory of question files. Parse failures are recorded per item instead
// of failing the bundle, so a sync run can still act on whatever loaded
// cleanly.
package courseload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Item wraps one loaded record with the errors encountered while loading it.
type Item[T any] struct {
	Data   T
	Errors []string
}

// HasErrors reports whether the item failed to load or validate.
func (it Item[T]) HasErrors() bool { return len(it.Errors) > 0 }

// TagDef is a tag declaration in a course file.
type TagDef struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// CourseFile is the course-level configuration (course.json).
type CourseFile struct {
	ID    int64    `json:"id"`
	Title string   `json:"title"`
	Tags  []TagDef `json:"tags"`
}

// QuestionFile is one question's metadata. Tags may be absent, empty, or
// contain duplicates; the sync core decides how to treat those.
type QuestionFile struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

// Bundle is the loaded working set for one course. Questions are keyed by
// their working id (the question file name without extension).
type Bundle struct {
	Course    Item[CourseFile]
	Questions map[string]Item[QuestionFile]
}

// CourseValid reports whether the course file itself loaded cleanly.
func (b *Bundle) CourseValid() bool { return !b.Course.HasErrors() }

const (
	courseFileName = "course.json"
	questionsDir   = "questions"
)

// LoadDir loads the bundle rooted at dir. Only a missing or unreadable
// bundle directory is a hard error; anything wrong with an individual file
// becomes that item's error list.
func LoadDir(dir string) (*Bundle, error) {
	if info, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("stat bundle dir: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("bundle path %s is not a directory", dir)
	}

	bundle := &Bundle{Questions: make(map[string]Item[QuestionFile])}
	bundle.Course = loadItem[CourseFile](filepath.Join(dir, courseFileName))

	qdir := filepath.Join(dir, questionsDir)
	entries, err := os.ReadDir(qdir)
	if err != nil {
		if os.IsNotExist(err) {
			return bundle, nil
		}
		return nil, fmt.Errorf("read questions dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		workingID := strings.TrimSuffix(name, ".json")
		bundle.Questions[workingID] = loadItem[QuestionFile](filepath.Join(qdir, name))
	}
	return bundle, nil
}

func loadItem[T any](path string) Item[T] {
	var item Item[T]
	payload, err := os.ReadFile(path)
	if err != nil {
		item.Errors = append(item.Errors, fmt.Sprintf("read %s: %v", filepath.Base(path), err))
		return item
	}
	if err := json.Unmarshal(payload, &item.Data); err != nil {
		item.Errors = append(item.Errors, fmt.Sprintf("parse %s: %v", filepath.Base(path), err))
	}
	return item
}
