// Package reasoning separates a model's visible answer from the
// thinking block some models emit before it.
package reasoning

import "strings"

// Result holds the two halves of a response.
type Result struct {
	Content  string
	Thinking string
}

type tagPair struct {
	open  string
	close string
}

// Tag matching is case-insensitive; pairs may not nest.
var tagPairs = []tagPair{
	{"<think>", "</think>"},
	{"<thinking>", "</thinking>"},
}

// Split separates content from thinking in a complete response. A block
// that is opened but never closed counts as thinking to its end.
func Split(raw string) Result {
	lower := strings.ToLower(raw)

	var content, thinking strings.Builder
	cursor := 0
	for cursor < len(raw) {
		pair, start := nextOpen(lower[cursor:])
		if start < 0 {
			content.WriteString(raw[cursor:])
			break
		}
		start += cursor
		content.WriteString(raw[cursor:start])

		inner := start + len(pair.open)
		end := strings.Index(lower[inner:], pair.close)
		if end < 0 {
			thinking.WriteString(raw[inner:])
			break
		}
		end += inner
		thinking.WriteString(raw[inner:end])
		cursor = end + len(pair.close)
	}

	return Result{Content: content.String(), Thinking: thinking.String()}
}

func nextOpen(lower string) (tagPair, int) {
	best := -1
	var bestPair tagPair
	for _, p := range tagPairs {
		if i := strings.Index(lower, p.open); i >= 0 && (best < 0 || i < best) {
			best = i
			bestPair = p
		}
	}
	return bestPair, best
}

// Splitter splits a streamed response incrementally. Token-sized
// increments routinely cut a tag in half, so a trailing fragment that
// could still become a tag is withheld until more text decides it;
// Flush releases whatever is left at end of stream.
type Splitter struct {
	raw         strings.Builder
	contentLen  int
	thinkingLen int
}

// Push appends a streamed increment and returns the newly decided
// content and thinking deltas. Either may be empty.
func (s *Splitter) Push(delta string) (content, thinking string) {
	if delta == "" {
		return "", ""
	}
	s.raw.WriteString(delta)
	raw := s.raw.String()
	return s.emit(raw[:len(raw)-heldSuffix(raw)])
}

// Flush returns the deltas for any text still withheld as a possible
// tag fragment. Call it once the stream is complete.
func (s *Splitter) Flush() (content, thinking string) {
	return s.emit(s.raw.String())
}

func (s *Splitter) emit(visible string) (content, thinking string) {
	out := Split(visible)
	if s.contentLen < len(out.Content) {
		content = out.Content[s.contentLen:]
		s.contentLen = len(out.Content)
	}
	if s.thinkingLen < len(out.Thinking) {
		thinking = out.Thinking[s.thinkingLen:]
		s.thinkingLen = len(out.Thinking)
	}
	return content, thinking
}

// heldSuffix reports how many trailing bytes form a proper prefix of
// some tag and so cannot be classified yet.
func heldSuffix(raw string) int {
	lower := strings.ToLower(raw)
	held := 0
	for _, p := range tagPairs {
		for _, tag := range [2]string{p.open, p.close} {
			limit := min(len(tag)-1, len(lower))
			for n := limit; n > held; n-- {
				if strings.HasSuffix(lower, tag[:n]) {
					held = n
					break
				}
			}
		}
	}
	return held
}
