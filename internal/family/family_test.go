package family

import (
	"strings"
	"testing"
)

func TestDetect(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"llama3-versioned", "Meta-Llama-3-8B-Instruct.Q4_K_M.gguf", "llama3"},
		{"llama2-versioned", "llama-2-7b-chat.Q5_K_S.gguf", "llama2"},
		{"bare-llama-is-modern", "codellama-13b", "llama3"},
		{"mistral", "Mistral-7B-Instruct-v0.3.gguf", "mistral"},
		{"mixtral", "mixtral-8x7b-instruct", "mistral"},
		{"gemma", "gemma-2-9b-it.gguf", "gemma"},
		{"phi", "Phi-3-mini-4k-instruct.gguf", "phi"},
		{"qwen-is-chatml", "Qwen2.5-7B-Instruct", "chatml"},
		{"arch-string", "lfm2", "chatml"},
		{"unknown-is-plain", "some-base-model.gguf", "plain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Detect(tc.in); got.Name != tc.want {
				t.Fatalf("Detect(%q) = %q, want %q", tc.in, got.Name, tc.want)
			}
		})
	}
}

func TestVersionedRulesBeatBareName(t *testing.T) {
	t.Parallel()
	// "llama-2" contains "llama", so rule order must decide.
	if got := Detect("llama-2-13b"); got != Llama2 {
		t.Fatalf("got %q, want llama2", got.Name)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()
	if Get("gemma") != Gemma {
		t.Fatal("Get(gemma) should return the gemma profile")
	}
	if Get("nope") != nil {
		t.Fatal("Get of unknown name should return nil")
	}
}

func TestNamesCoversAllProfiles(t *testing.T) {
	t.Parallel()
	names := Names()
	if len(names) != len(profiles) {
		t.Fatalf("Names() returned %d entries, want %d", len(names), len(profiles))
	}
	for _, n := range names {
		if Get(n) == nil {
			t.Fatalf("Names() lists %q but Get cannot find it", n)
		}
	}
}

func TestChatMLRenderPrompt(t *testing.T) {
	t.Parallel()
	system, user := ChatML.RenderPrompt("Be brief.", "What is Go?")
	if system != "<|im_start|>system\nBe brief.<|im_end|>\n" {
		t.Fatalf("system segment %q", system)
	}
	want := "<|im_start|>user\nWhat is Go?<|im_end|>\n<|im_start|>assistant\n"
	if user != want {
		t.Fatalf("user segment %q, want %q", user, want)
	}
}

func TestEmptySystemRendersNothing(t *testing.T) {
	t.Parallel()
	for _, p := range profiles {
		if got := p.RenderSystem(""); got != "" {
			t.Fatalf("%s: empty system rendered %q", p.Name, got)
		}
	}
}

func TestRenderConversationEndsWithCue(t *testing.T) {
	t.Parallel()
	turns := []Turn{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "again"},
	}
	got := Gemma.RenderConversation(turns)
	if !strings.HasSuffix(got, "<start_of_turn>model\n") {
		t.Fatalf("conversation should end with the model cue: %q", got)
	}
	if !strings.Contains(got, "<start_of_turn>user\nhi<end_of_turn>\n") {
		t.Fatalf("first user turn missing: %q", got)
	}
	if !strings.Contains(got, "<start_of_turn>model\nhello<end_of_turn>\n") {
		t.Fatalf("assistant turn missing: %q", got)
	}
}

func TestContentWithFormatVerbsIsLiteral(t *testing.T) {
	t.Parallel()
	_, user := ChatML.RenderPrompt("", "100%% sure? 50% done")
	if !strings.Contains(user, "100%% sure? 50% done") {
		t.Fatalf("content must pass through untouched: %q", user)
	}
}

func TestPlainProfileInventsNothing(t *testing.T) {
	t.Parallel()
	system, user := Plain.RenderPrompt("sys", "hello")
	if system != "sys\n\n" || user != "hello" {
		t.Fatalf("plain rendered %q / %q", system, user)
	}
	if len(Plain.Stops) != 0 {
		t.Fatal("plain profile must not define stop strings")
	}
}
