package tagsync

import "encoding/json"

// TagTuple is the positional wire form of a tag. The stored procedures take
// arrays of arrays, not objects, so tags cross the boundary as fixed-arity
// triples.
type TagTuple [3]string

// EncodeTags converts tags into (name, color, description) triples for
// sync_course_tags, preserving order.
func EncodeTags(tags []Tag) []TagTuple {
	tuples := make([]TagTuple, len(tags))
	for i, tag := range tags {
		tuples[i] = TagTuple{tag.Name, tag.Color, tag.Description}
	}
	return tuples
}

// EncodeTagsNew converts tags into (name, description, color) triples, the
// parameter order sync_course_tags_new expects.
func EncodeTagsNew(tags []Tag) []TagTuple {
	tuples := make([]TagTuple, len(tags))
	for i, tag := range tags {
		tuples[i] = TagTuple{tag.Name, tag.Description, tag.Color}
	}
	return tuples
}

// QuestionTagsTuple is one question→tags association: a question id paired
// with the ordered tag ids it references. It marshals as the positional pair
// [questionID, [tagID, ...]].
type QuestionTagsTuple struct {
	QuestionID int64
	TagIDs     []int64
}

// MarshalJSON writes the positional pair form consumed by the association
// procedures.
func (t QuestionTagsTuple) MarshalJSON() ([]byte, error) {
	ids := t.TagIDs
	if ids == nil {
		ids = []int64{}
	}
	return json.Marshal([]any{t.QuestionID, ids})
}

func marshalParam(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
