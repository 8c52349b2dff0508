package ingestion

import "strings"

const (
	DefaultMaxChars     = 1200
	DefaultOverlapChars = 200
)

// ChunkInput is one chunk produced from a section, ready to be persisted.
// Start and End are rune offsets of the window inside the trimmed section text.
type ChunkInput struct {
	Section string
	Index   int
	Text    string
	Speaker *string
	Start   int
	End     int
}

// Option configures the chunker.
type Option func(*chunkOptions)

type chunkOptions struct {
	maxChars     int
	overlapChars int
}

// WithMaxChars sets the maximum window length in characters.
func WithMaxChars(n int) Option {
	return func(o *chunkOptions) { o.maxChars = n }
}

// WithOverlapChars sets how many characters consecutive windows share.
func WithOverlapChars(n int) Option {
	return func(o *chunkOptions) { o.overlapChars = n }
}

func newChunkOptions(opts ...Option) chunkOptions {
	o := chunkOptions{maxChars: DefaultMaxChars, overlapChars: DefaultOverlapChars}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxChars <= 0 {
		o.maxChars = DefaultMaxChars
	}
	if o.overlapChars < 0 {
		o.overlapChars = 0
	}
	if o.overlapChars >= o.maxChars {
		o.overlapChars = o.maxChars / 4
	}
	return o
}

// ChunkSection splits section text into overlapping windows. A window that does not reach
// the end of the text is cut after its last paragraph break, else after its last sentence
// end, else at the window edge. A break is only taken when it moves the chunk end past the
// previous one, so the scan always advances.
func ChunkSection(section, text string, opts ...Option) []ChunkInput {
	o := newChunkOptions(opts...)

	runes := []rune(strings.TrimSpace(text))
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []ChunkInput
	start, prevEnd, index := 0, 0, 0
	for start < n {
		end := start + o.maxChars
		if end > n {
			end = n
		}
		if end < n {
			if brk := lastBreak(runes[start:end]); brk != -1 && start+brk+1 > prevEnd {
				end = start + brk + 1
			}
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			chunks = append(chunks, ChunkInput{
				Section: section,
				Index:   index,
				Text:    piece,
				Start:   start,
				End:     end,
			})
			index++
		}

		if end == n {
			break
		}
		prevEnd = end
		start = end - o.overlapChars
		if start < 0 {
			start = 0
		}
	}
	return chunks
}

// ChunkTranscript parses and chunks a full transcript, section by section.
func ChunkTranscript(raw string, opts ...Option) []ChunkInput {
	var out []ChunkInput
	for _, s := range ParseTranscript(raw) {
		out = append(out, ChunkSection(s.Name, s.Text, opts...)...)
	}
	return out
}

var (
	paragraphBreak = []rune("\n\n")
	sentenceBreak  = []rune(". ")
)

func lastBreak(window []rune) int {
	if i := lastIndexRunes(window, paragraphBreak); i != -1 {
		return i
	}
	return lastIndexRunes(window, sentenceBreak)
}

func lastIndexRunes(s, sep []rune) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		match := true
		for j := range sep {
			if s[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
