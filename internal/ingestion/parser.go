package ingestion

import (
	"strings"

	"earnings-call-engine/pkg/common"
)

// qaMarkers are checked in order; the first one present anywhere in the text wins.
var qaMarkers = []string{
	"\nq&a",
	"\nq & a",
	"question-and-answer session",
	"questions and answers",
}

// Section is a named partition of a transcript. It is never persisted.
type Section struct {
	Name string
	Text string
}

// ParseTranscript splits a transcript into prepared remarks and Q&A at the first
// Q&A marker. Without a marker the whole trimmed text is returned as prepared remarks.
func ParseTranscript(raw string) []Section {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	lower := asciiLower(text)

	idx := -1
	for _, marker := range qaMarkers {
		if i := strings.Index(lower, marker); i != -1 {
			idx = i
			break
		}
	}

	if idx == -1 {
		body := strings.TrimSpace(text)
		if body == "" {
			return nil
		}
		return []Section{{Name: common.SectionPreparedRemarks, Text: body}}
	}

	var sections []Section
	if prepared := strings.TrimSpace(text[:idx]); prepared != "" {
		sections = append(sections, Section{Name: common.SectionPreparedRemarks, Text: prepared})
	}
	if qa := strings.TrimSpace(text[idx:]); qa != "" {
		sections = append(sections, Section{Name: common.SectionQA, Text: qa})
	}
	return sections
}

// asciiLower folds A-Z only, so byte offsets in the result line up with the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
