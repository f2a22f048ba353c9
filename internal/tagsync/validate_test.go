package tagsync

import (
	"strings"
	"testing"
)

func TestValidateTagNamesRejectsDuplicates(t *testing.T) {
	err := ValidateTagNames([]Tag{{Name: "a"}, {Name: "a"}})
	if err == nil {
		t.Fatal("expected error for duplicate tag names")
	}
	if !IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %T", err)
	}
	if !strings.Contains(err.Error(), "a") {
		t.Errorf("error should mention the duplicated name: %v", err)
	}
}

func TestValidateTagNamesAcceptsDistinct(t *testing.T) {
	if err := ValidateTagNames([]Tag{{Name: "a"}, {Name: "b"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateTagNames(nil); err != nil {
		t.Fatalf("unexpected error for empty list: %v", err)
	}
}

func TestValidateQuestionTags(t *testing.T) {
	known := map[string]struct{}{"x": {}, "y": {}}

	questions := map[string]Question{"q1": {ID: 1, Tags: []string{"x", "y"}}}
	if err := ValidateQuestionTags(questions, known); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	questions = map[string]Question{"q1": {ID: 1, Tags: []string{"x", "z"}}}
	err := ValidateQuestionTags(questions, known)
	if err == nil || !IsConfigError(err) {
		t.Fatalf("expected ConfigError for unknown tag, got %v", err)
	}
	if !strings.Contains(err.Error(), "q1") || !strings.Contains(err.Error(), "z") {
		t.Errorf("error should name question and tag: %v", err)
	}

	questions = map[string]Question{"q1": {ID: 1, Tags: []string{"x", "x"}}}
	err = ValidateQuestionTags(questions, known)
	if err == nil || !IsConfigError(err) {
		t.Fatalf("expected ConfigError for duplicate reference, got %v", err)
	}
	if !strings.Contains(err.Error(), "x") {
		t.Errorf("error should name the duplicated tag: %v", err)
	}
}

func TestResolveTagsAddsPlaceholders(t *testing.T) {
	declared := []Tag{{Name: "x", Color: "blue1", Description: "d"}}
	questions := map[string]Question{"q1": {ID: 1, Tags: []string{"x", "y"}}}

	resolved := ResolveTags(declared, questions)
	if len(resolved) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(resolved))
	}
	if resolved[0] != declared[0] {
		t.Errorf("declared tag must come first: %v", resolved[0])
	}
	placeholder := resolved[1]
	if placeholder.Name != "y" {
		t.Errorf("placeholder name = %q, want y", placeholder.Name)
	}
	if placeholder.Color != PlaceholderColor {
		t.Errorf("placeholder color = %q, want %q", placeholder.Color, PlaceholderColor)
	}
	if placeholder.Description != PlaceholderDescription {
		t.Errorf("placeholder description = %q, want %q", placeholder.Description, PlaceholderDescription)
	}
}

func TestResolveTagsDoesNotMutateDeclared(t *testing.T) {
	declared := []Tag{{Name: "x"}}
	questions := map[string]Question{"q1": {Tags: []string{"y"}}}

	resolved := ResolveTags(declared, questions)
	if len(declared) != 1 {
		t.Fatalf("declared list mutated: %v", declared)
	}
	if len(resolved) != 2 {
		t.Fatalf("expected 2 resolved tags, got %d", len(resolved))
	}
}

func TestResolveTagsPlaceholderOrderIsFirstReference(t *testing.T) {
	questions := map[string]Question{
		"a_q": {Tags: []string{"t2", "t1"}},
		"b_q": {Tags: []string{"t3", "t1"}},
	}
	resolved := ResolveTags(nil, questions)
	got := make([]string, len(resolved))
	for i, tag := range resolved {
		got[i] = tag.Name
	}
	want := []string{"t2", "t1", "t3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("placeholder order = %v, want %v", got, want)
		}
	}
}
