package reasoning

import "testing"

func TestSplit(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		in           string
		wantContent  string
		wantThinking string
	}{
		{
			name:        "no thinking",
			in:          "Hello world",
			wantContent: "Hello world",
		},
		{
			name:         "closed block",
			in:           "<think>internal</think>Hello",
			wantContent:  "Hello",
			wantThinking: "internal",
		},
		{
			name:         "unclosed block runs to the end",
			in:           "<think>internal only",
			wantThinking: "internal only",
		},
		{
			name:         "interleaved blocks",
			in:           "A<think>r1</think>B<think>r2</think>C",
			wantContent:  "ABC",
			wantThinking: "r1r2",
		},
		{
			name:         "long form tag",
			in:           "<thinking>steps</thinking>Answer",
			wantContent:  "Answer",
			wantThinking: "steps",
		},
		{
			name:         "case insensitive tags",
			in:           "<Think>hidden</THINK>shown",
			wantContent:  "shown",
			wantThinking: "hidden",
		},
		{
			name:        "angle brackets that are not tags",
			in:          "compare a < b and c > d",
			wantContent: "compare a < b and c > d",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Split(tc.in)
			if got.Content != tc.wantContent {
				t.Fatalf("content got %q want %q", got.Content, tc.wantContent)
			}
			if got.Thinking != tc.wantThinking {
				t.Fatalf("thinking got %q want %q", got.Thinking, tc.wantThinking)
			}
		})
	}
}

func TestSplitterPush(t *testing.T) {
	t.Parallel()

	var s Splitter

	c, r := s.Push("<think>abc")
	if c != "" || r != "abc" {
		t.Fatalf("first delta got content=%q thinking=%q", c, r)
	}

	c, r = s.Push("</think>Hello")
	if c != "Hello" || r != "" {
		t.Fatalf("second delta got content=%q thinking=%q", c, r)
	}
}

func TestSplitterWithholdsPartialTag(t *testing.T) {
	t.Parallel()

	var s Splitter

	// "<thi" could still become an open tag, so nothing may stream yet.
	c, r := s.Push("<thi")
	if c != "" || r != "" {
		t.Fatalf("partial tag leaked: content=%q thinking=%q", c, r)
	}

	c, r = s.Push("nk>hidden")
	if c != "" || r != "hidden" {
		t.Fatalf("got content=%q thinking=%q, want thinking %q", c, r, "hidden")
	}

	// A partial close tag inside a block must also wait.
	c, r = s.Push("</th")
	if c != "" || r != "" {
		t.Fatalf("partial close leaked: content=%q thinking=%q", c, r)
	}

	c, r = s.Push("ink>done")
	if c != "done" || r != "" {
		t.Fatalf("got content=%q thinking=%q, want content %q", c, r, "done")
	}
}

func TestSplitterReleasesFalseTagStart(t *testing.T) {
	t.Parallel()

	var s Splitter

	c, _ := s.Push("a <")
	if c != "a " {
		t.Fatalf("got %q, want %q", c, "a ")
	}
	// The next increment disqualifies "<" as a tag start.
	c, _ = s.Push("5 is small")
	if c != "<5 is small" {
		t.Fatalf("got %q, want %q", c, "<5 is small")
	}
}

func TestSplitterFlushReleasesHeldTail(t *testing.T) {
	t.Parallel()

	var s Splitter

	c, _ := s.Push("done<think")
	if c != "done" {
		t.Fatalf("got %q, want %q", c, "done")
	}
	// The stream ended mid-fragment; whatever was held is content now.
	c, r := s.Flush()
	if c != "<think" || r != "" {
		t.Fatalf("flush got content=%q thinking=%q", c, r)
	}
}

func TestSplitterByteAtATime(t *testing.T) {
	t.Parallel()

	const in = "<think>a</think>bc"
	var s Splitter
	var content, thinking string
	for i := 0; i < len(in); i++ {
		c, r := s.Push(in[i : i+1])
		content += c
		thinking += r
	}
	c, r := s.Flush()
	content += c
	thinking += r

	if content != "bc" || thinking != "a" {
		t.Fatalf("got content=%q thinking=%q, want %q/%q", content, thinking, "bc", "a")
	}
}
