// Package family maps a model to its conversation framing: the control
// tokens that wrap each turn and the strings that end one. Profiles are
// static; when a model carries its own embedded template the native
// side is free to ignore this layer entirely.
package family

import (
	"fmt"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    string
	Content string
}

// Profile renders conversations for one model family. The system segment
// renders separately from the turns so prompt fitting can keep it intact
// while trimming conversation history.
type Profile struct {
	Name  string
	Stops []string

	systemFormat    string
	userFormat      string
	assistantFormat string
	cue             string
}

// RenderSystem wraps the system prompt in the family's framing. An empty
// system prompt renders to nothing.
func (p *Profile) RenderSystem(system string) string {
	if system == "" {
		return ""
	}
	return fmt.Sprintf(p.systemFormat, system)
}

// RenderConversation renders the turns in order and appends the
// assistant cue so the model continues as the assistant.
func (p *Profile) RenderConversation(turns []Turn) string {
	var b strings.Builder
	for _, turn := range turns {
		switch turn.Role {
		case RoleAssistant:
			b.WriteString(fmt.Sprintf(p.assistantFormat, turn.Content))
		default:
			b.WriteString(fmt.Sprintf(p.userFormat, turn.Content))
		}
	}
	b.WriteString(p.cue)
	return b.String()
}

// RenderPrompt renders a single-turn prompt, returning the system and
// user segments separately.
func (p *Profile) RenderPrompt(system, user string) (string, string) {
	return p.RenderSystem(system), p.RenderConversation([]Turn{{Role: RoleUser, Content: user}})
}

var (
	ChatML = &Profile{
		Name:            "chatml",
		Stops:           []string{"<|im_end|>"},
		systemFormat:    "<|im_start|>system\n%s<|im_end|>\n",
		userFormat:      "<|im_start|>user\n%s<|im_end|>\n",
		assistantFormat: "<|im_start|>assistant\n%s<|im_end|>\n",
		cue:             "<|im_start|>assistant\n",
	}

	Llama2 = &Profile{
		Name:            "llama2",
		Stops:           []string{"</s>"},
		systemFormat:    "<<SYS>>\n%s\n<</SYS>>\n\n",
		userFormat:      "[INST] %s [/INST]",
		assistantFormat: " %s</s>",
		cue:             "",
	}

	Llama3 = &Profile{
		Name:            "llama3",
		Stops:           []string{"<|eot_id|>"},
		systemFormat:    "<|start_header_id|>system<|end_header_id|>\n\n%s<|eot_id|>",
		userFormat:      "<|start_header_id|>user<|end_header_id|>\n\n%s<|eot_id|>",
		assistantFormat: "<|start_header_id|>assistant<|end_header_id|>\n\n%s<|eot_id|>",
		cue:             "<|start_header_id|>assistant<|end_header_id|>\n\n",
	}

	Mistral = &Profile{
		Name:            "mistral",
		Stops:           []string{"</s>"},
		systemFormat:    "%s\n\n",
		userFormat:      "[INST] %s [/INST]",
		assistantFormat: " %s</s>",
		cue:             "",
	}

	Gemma = &Profile{
		Name:            "gemma",
		Stops:           []string{"<end_of_turn>"},
		systemFormat:    "%s\n\n",
		userFormat:      "<start_of_turn>user\n%s<end_of_turn>\n",
		assistantFormat: "<start_of_turn>model\n%s<end_of_turn>\n",
		cue:             "<start_of_turn>model\n",
	}

	Phi = &Profile{
		Name:            "phi",
		Stops:           []string{"<|end|>"},
		systemFormat:    "<|system|>\n%s<|end|>\n",
		userFormat:      "<|user|>\n%s<|end|>\n",
		assistantFormat: "<|assistant|>\n%s<|end|>\n",
		cue:             "<|assistant|>\n",
	}

	Plain = &Profile{
		Name:            "plain",
		Stops:           nil,
		systemFormat:    "%s\n\n",
		userFormat:      "%s",
		assistantFormat: "%s",
		cue:             "",
	}
)

var profiles = []*Profile{ChatML, Llama2, Llama3, Mistral, Gemma, Phi, Plain}

// Get returns the profile with the given name, or nil.
func Get(name string) *Profile {
	for _, p := range profiles {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Names lists the known profile names.
func Names() []string {
	out := make([]string, len(profiles))
	for i, p := range profiles {
		out[i] = p.Name
	}
	return out
}

// detectRules are checked in order; earlier entries win so versioned
// names beat their bare family name.
var detectRules = []struct {
	substr  string
	profile *Profile
}{
	{"llama-3", Llama3},
	{"llama3", Llama3},
	{"llama-2", Llama2},
	{"llama2", Llama2},
	{"llama", Llama3},
	{"mistral", Mistral},
	{"mixtral", Mistral},
	{"gemma", Gemma},
	{"phi", Phi},
	{"qwen", ChatML},
	{"hermes", ChatML},
	{"smol", ChatML},
	{"chatml", ChatML},
	{"lfm2", ChatML},
}

// Detect picks a profile from a model name, path, or architecture
// string. Unknown models fall back to the plain profile, which invents
// no control tokens.
func Detect(s string) *Profile {
	lowered := strings.ToLower(s)
	for _, rule := range detectRules {
		if strings.Contains(lowered, rule.substr) {
			return rule.profile
		}
	}
	return Plain
}
