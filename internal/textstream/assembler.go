// Package textstream turns the native decoder's raw byte output into text
// increments: it reassembles token fragments that split multi-byte sequences
// and clips streamed output at configured stop strings.
package textstream

import "unicode/utf8"

// Assembler buffers raw token bytes until they form output that is safe to
// surface. A single token frequently carries only part of a multi-byte
// sequence, so bytes are held back until the sequence completes.
type Assembler struct {
	pending []byte
}

// Push appends raw bytes and returns whatever text can be emitted now.
//
// The whole pending buffer is emitted when it is valid UTF-8. When it is
// not, but some proper suffix of it is, the earlier bytes can never become
// valid by appending more input, so the whole buffer is emitted as-is
// (permissively, no bytes dropped) rather than withheld forever. Otherwise
// nothing is emitted and the bytes stay pending.
func (a *Assembler) Push(raw []byte) string {
	a.pending = append(a.pending, raw...)
	if utf8.Valid(a.pending) {
		return a.take()
	}
	for i := 1; i < len(a.pending); i++ {
		if utf8.Valid(a.pending[i:]) {
			return a.take()
		}
	}
	return ""
}

func (a *Assembler) take() string {
	out := string(a.pending)
	a.pending = a.pending[:0]
	return out
}

// PendingBytes reports how many bytes are held back.
func (a *Assembler) PendingBytes() int { return len(a.pending) }

// Reset drops any held bytes.
func (a *Assembler) Reset() { a.pending = a.pending[:0] }
