// Package segment splits message text into prose and fenced code for rendering.
package segment

import "strings"

// Kind distinguishes prose from fenced code.
type Kind string

const (
	// KindText is a run of prose, rendered as Markdown.
	KindText Kind = "text"
	// KindCode is the body of a closed fence.
	KindCode Kind = "code"
)

// DefaultLanguage is reported for fences that carry no language tag.
const DefaultLanguage = "text"

const fence = "```"

// Segment is one contiguous run of text or fenced code.
type Segment struct {
	Kind     Kind
	Content  string
	Language string
}

// Parse partitions text into alternating Text and Code segments.
//
// A fence opens with three backticks, optionally followed on the same line by a language tag of word
// characters, and then a newline. It closes at the next three backticks. Empty Text segments are omitted. A
// fence that is still open at the end of the input is not a segment: everything from its opening backticks
// on stays in the final Text segment verbatim, so a streaming message shows literal backticks until the
// fence closes. Because the scan only ever moves forward, segments already closed in a prefix of text are
// segmented identically once more text is appended.
func Parse(text string) []Segment {
	var (
		segments  []Segment
		textStart int
		pos       int
	)

	for pos < len(text) {
		i := strings.Index(text[pos:], fence)
		if i < 0 {
			break
		}
		open := pos + i

		bodyStart, lang, ok := openFence(text, open)
		if !ok {
			pos = open + 1
			continue
		}

		j := strings.Index(text[bodyStart:], fence)
		if j < 0 {
			// No later fence can close either, so the rest is prose.
			break
		}
		closeAt := bodyStart + j

		if open > textStart {
			segments = append(segments, Segment{Kind: KindText, Content: text[textStart:open]})
		}
		if lang == "" {
			lang = DefaultLanguage
		}
		segments = append(segments, Segment{
			Kind:     KindCode,
			Content:  text[bodyStart:closeAt],
			Language: lang,
		})

		pos = closeAt + len(fence)
		textStart = pos
	}

	if textStart < len(text) {
		segments = append(segments, Segment{Kind: KindText, Content: text[textStart:]})
	}

	return segments
}

// openFence checks for a language tag and newline after the backticks at open. It returns where the fence
// body starts.
func openFence(text string, open int) (int, string, bool) {
	i := open + len(fence)
	tagStart := i
	for i < len(text) && isWordChar(text[i]) {
		i++
	}
	if i >= len(text) || text[i] != '\n' {
		return 0, "", false
	}
	return i + 1, text[tagStart:i], true
}

func isWordChar(c byte) bool {
	return c == '_' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}
