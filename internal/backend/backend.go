// Package backend defines the boundary between crucible's session layer and
// a native autoregressive decoder. The engine behind the interface owns the
// tokenizer, the transformer computation and the sampler; crucible drives it
// as an opaque handle and never reaches past this surface.
package backend

// Token is a vocabulary id produced and consumed by the native decoder.
// Tokens are not aligned with characters; a single token may map to a
// partial multi-byte sequence.
type Token int32

// Backend is one loaded model plus one decode context. Implementations are
// not assumed reentrant: callers must serialize every method that touches
// decoder state (Decode, SampleNext, ClearMemory).
type Backend interface {
	// Tokenize converts text to token ids. addLeadingMarker asks the
	// vocabulary to prepend its beginning-of-sequence marker; continuation
	// text is tokenized without it.
	Tokenize(text string, addLeadingMarker bool) ([]Token, error)

	// Decode runs one forward pass over the populated batch slots, mutating
	// the decoder's key/value memory and producing logits for every slot
	// that requested them.
	Decode(b *Batch) error

	// SampleNext samples a token from the logits of the given batch slot
	// (normally the last slot of the previous Decode call).
	SampleNext(lastLogitSlot int) (Token, error)

	// IsEndOfGeneration reports whether tok terminates generation for this
	// model's vocabulary.
	IsEndOfGeneration(tok Token) bool

	// TokenBytes returns the raw bytes for tok. The result may be a partial
	// UTF-8 sequence; callers are expected to assemble increments before
	// treating them as text.
	TokenBytes(tok Token) []byte

	// ClearMemory drops the decode context's key/value memory. fullReset
	// additionally clears any retained data buffers.
	ClearMemory(fullReset bool)

	// ContextWindow returns the context length the decode context was
	// created with, in tokens.
	ContextWindow() int

	ModelDesc() string
	ModelSize() uint64
	ModelParams() uint64

	Close() error
}

// Params configures a decode context and its sampler chain at open time.
type Params struct {
	ContextSize int
	Threads     int
	GPULayers   int

	// MaxLanes is the number of parallel decode lanes the context must
	// support. Interactive use needs one; benchmarking may batch more.
	MaxLanes int

	Temperature float32
	TopK        int
	TopP        float32
	MinP        float32
	Seed        int64
}

// DefaultParams returns the generation defaults used when a caller leaves
// Params fields zero.
func DefaultParams() Params {
	return Params{
		ContextSize: 4096,
		MaxLanes:    1,
		Temperature: 0.8,
		TopK:        40,
		TopP:        0.95,
		MinP:        0.05,
		Seed:        -1,
	}
}

// Resolve fills unset fields of p from the defaults. A MinP of exactly 0 is
// kept: it disables min-p filtering rather than meaning unset.
func (p Params) Resolve() Params {
	def := DefaultParams()
	if p.ContextSize <= 0 {
		p.ContextSize = def.ContextSize
	}
	if p.MaxLanes <= 0 {
		p.MaxLanes = def.MaxLanes
	}
	if p.Temperature <= 0 {
		p.Temperature = def.Temperature
	}
	if p.TopK <= 0 {
		p.TopK = def.TopK
	}
	if p.TopP <= 0 {
		p.TopP = def.TopP
	}
	if p.MinP < 0 {
		p.MinP = def.MinP
	}
	if p.Seed == 0 {
		p.Seed = def.Seed
	}
	return p
}
