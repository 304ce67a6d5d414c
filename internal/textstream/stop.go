package textstream

import "strings"

// StopMatcher accumulates streamed text and watches for stop strings. It
// keeps a cursor over how much of the accumulated text was already handed
// out, so a match spanning several increments (or falling inside a single
// token) still clips the stream at exactly the match start.
type StopMatcher struct {
	stops   []string
	acc     string
	emitted int
	matched bool
}

// NewStopMatcher builds a matcher over an ordered stop set. The order is
// the scan order; empty stop strings are ignored.
func NewStopMatcher(stops []string) *StopMatcher {
	return &StopMatcher{stops: stops}
}

// Push appends one text increment and returns the part of it that should
// reach the consumer. When a stop string is found, the accumulated text is
// truncated at the match start, matched reports true, and everything from
// the match onward is discarded for good.
func (m *StopMatcher) Push(increment string) (emit string, matched bool) {
	m.acc += increment
	for _, stop := range m.stops {
		if stop == "" {
			continue
		}
		idx := strings.Index(m.acc, stop)
		if idx < 0 {
			continue
		}
		m.acc = m.acc[:idx]
		if idx > m.emitted {
			emit = m.acc[m.emitted:]
		}
		m.emitted = len(m.acc)
		m.matched = true
		return emit, true
	}
	emit = m.acc[m.emitted:]
	m.emitted = len(m.acc)
	return emit, false
}

// Text returns the accumulated output, truncated at the stop match if one
// occurred.
func (m *StopMatcher) Text() string { return m.acc }

// Matched reports whether a stop string has been seen.
func (m *StopMatcher) Matched() bool { return m.matched }

// Reset clears accumulated text and the match state; the stop set is kept.
func (m *StopMatcher) Reset() {
	m.acc = ""
	m.emitted = 0
	m.matched = false
}
