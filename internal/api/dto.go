package api

// CompletionRequest is the body of POST /v1/completions. Sampler fields
// are honored when the backend can reconfigure its sampler chain and
// ignored otherwise.
type CompletionRequest struct {
	Model           string   `json:"model,omitempty"`
	Prompt          string   `json:"prompt"`
	System          string   `json:"system,omitempty"`
	MaxTokens       *int     `json:"max_tokens,omitempty"`
	Stop            []string `json:"stop,omitempty"`
	Stream          *bool    `json:"stream,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopK            *int     `json:"top_k,omitempty"`
	TopP            *float64 `json:"top_p,omitempty"`
	Seed            *int64   `json:"seed,omitempty"`
	ReasoningFormat string   `json:"reasoning_format,omitempty"`
}

type CompletionResponse struct {
	ID         string   `json:"id"`
	Object     string   `json:"object"`
	Created    int64    `json:"created"`
	Model      string   `json:"model"`
	Text       string   `json:"text"`
	Reasoning  string   `json:"reasoning,omitempty"`
	StopReason string   `json:"stop_reason"`
	Usage      Usage    `json:"usage"`
	Timings    *Timings `json:"timings,omitempty"`
}

// CompletionChunk is one SSE event of a streamed completion. Delta
// fields carry incremental text; StopReason, Usage and Timings are only
// present on the final chunk before the [DONE] sentinel.
type CompletionChunk struct {
	ID         string   `json:"id"`
	Object     string   `json:"object"`
	Created    int64    `json:"created"`
	Model      string   `json:"model"`
	Text       string   `json:"text,omitempty"`
	Reasoning  string   `json:"reasoning,omitempty"`
	StopReason string   `json:"stop_reason,omitempty"`
	Usage      *Usage   `json:"usage,omitempty"`
	Timings    *Timings `json:"timings,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Timings mirrors the per-request phase breakdown the CLI prints after
// each turn, in milliseconds.
type Timings struct {
	TimeToFirstTokenMS float64 `json:"time_to_first_token_ms"`
	PrefillMS          float64 `json:"prefill_ms"`
	DecodeMS           float64 `json:"decode_ms"`
	PromptTPS          float64 `json:"prompt_tps"`
	GenerationTPS      float64 `json:"generation_tps"`
}

type ModelInfo struct {
	ID            string `json:"id"`
	Object        string `json:"object"`
	Created       int64  `json:"created"`
	OwnedBy       string `json:"owned_by"`
	Architecture  string `json:"architecture,omitempty"`
	Quantization  string `json:"quantization,omitempty"`
	Parameters    uint64 `json:"parameters,omitempty"`
	ContextLength uint64 `json:"context_length,omitempty"`
	SizeBytes     int64  `json:"size_bytes,omitempty"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
