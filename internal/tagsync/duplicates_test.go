package tagsync

import (
	"reflect"
	"testing"
)

func TestDuplicates(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []string
	}{
		{name: "empty", values: nil, want: nil},
		{name: "no repeats", values: []string{"a", "b", "c"}, want: nil},
		{name: "single repeat", values: []string{"a", "b", "a"}, want: []string{"a"}},
		{name: "every later occurrence", values: []string{"a", "a", "a"}, want: []string{"a", "a"}},
		{name: "mixed", values: []string{"x", "y", "x", "z", "y", "x"}, want: []string{"x", "y", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Duplicates(tt.values)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Duplicates(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

// Every input sequence must satisfy len(duplicates) == len(input) - len(distinct),
// and every reported duplicate must occur more than once in the input.
func TestDuplicatesLengthInvariant(t *testing.T) {
	inputs := [][]string{
		{},
		{"a"},
		{"a", "b", "a", "c", "b", "b"},
		{"t1", "t2", "t3"},
		{"q", "q", "q", "q"},
	}

	for _, values := range inputs {
		distinct := make(map[string]struct{})
		counts := make(map[string]int)
		for _, v := range values {
			distinct[v] = struct{}{}
			counts[v]++
		}

		dups := Duplicates(values)
		if len(dups) != len(values)-len(distinct) {
			t.Errorf("Duplicates(%v): got %d duplicates, want %d", values, len(dups), len(values)-len(distinct))
		}
		for _, d := range dups {
			if counts[d] < 2 {
				t.Errorf("Duplicates(%v): reported %q which occurs %d time(s)", values, d, counts[d])
			}
		}
	}
}

func TestDuplicatesBy(t *testing.T) {
	tags := []Tag{
		{Name: "a", Color: "blue1"},
		{Name: "b", Color: "red1"},
		{Name: "a", Color: "green1"},
	}
	dups := DuplicatesBy(tags, func(t Tag) string { return t.Name })
	if len(dups) != 1 || dups[0].Color != "green1" {
		t.Fatalf("DuplicatesBy() = %v, want the second a", dups)
	}
}
