//go:build !linux

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// lineEditor reads interactive input. Platforms without raw-mode
// support get plain buffered lines and no editing keys.
type lineEditor struct {
	in       *os.File
	out      io.Writer
	history  []string
	fallback *bufio.Reader
}

func newLineEditor(in *os.File, out io.Writer) *lineEditor {
	return &lineEditor{in: in, out: out}
}

func (e *lineEditor) ReadLine(prompt string) (string, error) {
	if e.fallback == nil {
		e.fallback = bufio.NewReader(e.in)
	}
	if stdinIsTTY() {
		fmt.Fprint(e.out, prompt)
	}
	s, err := e.fallback.ReadString('\n')
	if err != nil {
		if err == io.EOF && s != "" {
			return trimTrailingNewline(s), nil
		}
		return "", err
	}
	return trimTrailingNewline(s), nil
}

func trimTrailingNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '\r' {
		s = s[:len(s)-1]
	}
	return s
}
