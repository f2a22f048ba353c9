package tagsync

import (
	"sort"
	"strings"
)

// ValidateTagNames fails when two declared tags share a name. The identifier
// resolution after the upsert pairs names with ids, so a duplicated name
// cannot be disambiguated downstream.
func ValidateTagNames(tags []Tag) error {
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	if dups := Duplicates(names); len(dups) > 0 {
		return configErrorf("duplicate tag names in course configuration: %s", strings.Join(dups, ", "))
	}
	return nil
}

// ValidateQuestionTags checks every question's tag references against the set
// of known tag names: a reference to an unknown name or a name referenced more
// than once within one question fails the whole run.
func ValidateQuestionTags(questions map[string]Question, known map[string]struct{}) error {
	for _, name := range sortedKeys(questions) {
		question := questions[name]
		var unknown []string
		for _, tag := range question.Tags {
			if _, ok := known[tag]; !ok {
				unknown = append(unknown, tag)
			}
		}
		if len(unknown) > 0 {
			return configErrorf("question %s references unknown tags: %s", name, strings.Join(unknown, ", "))
		}
		if dups := Duplicates(question.Tags); len(dups) > 0 {
			return configErrorf("question %s references duplicate tags: %s", name, strings.Join(dups, ", "))
		}
	}
	return nil
}

// ResolveTags returns the effective tag set to persist: the declared tags
// followed by a placeholder for every name referenced by a question but not
// declared. Placeholders keep the order of first reference.
func ResolveTags(declared []Tag, questions map[string]Question) []Tag {
	known := make(map[string]struct{}, len(declared))
	for _, tag := range declared {
		known[tag.Name] = struct{}{}
	}

	resolved := append([]Tag(nil), declared...)
	for _, name := range sortedKeys(questions) {
		for _, tag := range questions[name].Tags {
			if _, ok := known[tag]; ok {
				continue
			}
			known[tag] = struct{}{}
			resolved = append(resolved, Tag{
				Name:        tag,
				Color:       PlaceholderColor,
				Description: PlaceholderDescription,
			})
		}
	}
	return resolved
}

func tagNameSet(tags []Tag) map[string]struct{} {
	names := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		names[tag.Name] = struct{}{}
	}
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
