package stream

import "regexp"

// ─── Segments ───────────────────────────────────────────────────────────────

// SegmentKind distinguishes plain prose from fenced code.
type SegmentKind int

const (
	PlainText SegmentKind = iota
	CodeBlock
)

// DefaultLanguage is used for fences that carry no language token.
const DefaultLanguage = "plaintext"

// Segment is one span of a message. Text is set for PlainText segments,
// Language and Code for CodeBlock segments.
type Segment struct {
	Kind     SegmentKind
	Text     string
	Language string
	Code     string
}

// Plain returns a PlainText segment.
func Plain(text string) Segment {
	return Segment{Kind: PlainText, Text: text}
}

// Code returns a CodeBlock segment, defaulting the language.
func Code(language, code string) Segment {
	if language == "" {
		language = DefaultLanguage
	}
	return Segment{Kind: CodeBlock, Language: language, Code: code}
}

// fenceRe matches ```lang\n body \n```. The body is non-greedy and may span
// lines; whitespace between the language token and the newline is lazy so the
// first newline after the opening fence starts the body.
var fenceRe = regexp.MustCompile("(?s)```(\\w+)?\\s*?\\n(.*?)\\n```")

// Split projects the full text of a message into ordered segments.
// It is pure: the same input always yields the same segments, which is what
// makes re-rendering the whole buffer on every chunk safe.
func Split(fullText string) []Segment {
	segments := []Segment{}
	last := 0

	for _, m := range fenceRe.FindAllStringSubmatchIndex(fullText, -1) {
		if m[0] > last {
			segments = append(segments, Plain(fullText[last:m[0]]))
		}
		var lang string
		if m[2] >= 0 {
			lang = fullText[m[2]:m[3]]
		}
		segments = append(segments, Code(lang, fullText[m[4]:m[5]]))
		last = m[1]
	}

	if last < len(fullText) {
		segments = append(segments, Plain(fullText[last:]))
	}
	return segments
}
