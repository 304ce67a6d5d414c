//go:build llama

// Package llama implements the backend contract over an in-process
// llama.cpp library. It is compiled only under the llama build tag; the
// toolchain must be able to see llama.h and link libllama (set CGO_CFLAGS
// and CGO_LDFLAGS when building against a local checkout).
package llama

/*
#cgo CFLAGS: -O2
#cgo LDFLAGS: -lllama
#cgo linux LDFLAGS: -Wl,-rpath,'$ORIGIN'

#include <stdlib.h>
#include <string.h>
#include <llama.h>

static void crucibleLlamaLogSink(enum ggml_log_level level, const char* text, void* data) {
	(void)level;
	(void)text;
	(void)data;
}

static void crucibleLlamaInit(void) {
	llama_log_set(crucibleLlamaLogSink, NULL);
	llama_backend_init();
}

static struct llama_model* crucibleLlamaLoadModel(const char* path, int32_t gpuLayers) {
	struct llama_model_params params = llama_model_default_params();
	params.n_gpu_layers = gpuLayers;
	return llama_model_load_from_file(path, params);
}

static void crucibleLlamaFreeModel(struct llama_model* model) {
	llama_model_free(model);
}

static struct llama_context* crucibleLlamaNewContext(struct llama_model* model, uint32_t nCtx, uint32_t nBatch, uint32_t nSeqMax, int32_t nThreads) {
	struct llama_context_params params = llama_context_default_params();
	params.n_ctx = nCtx;
	params.n_batch = nBatch;
	params.n_seq_max = nSeqMax;
	if (nThreads > 0) {
		params.n_threads = nThreads;
		params.n_threads_batch = nThreads;
	}
	return llama_init_from_model(model, params);
}

static void crucibleLlamaFreeContext(struct llama_context* ctx) {
	llama_free(ctx);
}

static uint32_t crucibleLlamaContextSize(struct llama_context* ctx) {
	return llama_n_ctx(ctx);
}

static int crucibleLlamaModelDesc(const struct llama_model* model, char* buf, size_t bufLen) {
	return llama_model_desc(model, buf, bufLen);
}

static unsigned long long crucibleLlamaModelSize(const struct llama_model* model) {
	return (unsigned long long)llama_model_size(model);
}

static unsigned long long crucibleLlamaModelParams(const struct llama_model* model) {
	return (unsigned long long)llama_model_n_params(model);
}

static int crucibleLlamaTokenize(const struct llama_model* model, const char* text, int32_t textLen, int32_t* tokens, int32_t maxTokens, bool addSpecial) {
	const struct llama_vocab* vocab = llama_model_get_vocab(model);
	return llama_tokenize(vocab, text, textLen, tokens, maxTokens, addSpecial, true);
}

static int crucibleLlamaTokenPiece(const struct llama_model* model, int32_t token, char* buf, int32_t bufLen) {
	const struct llama_vocab* vocab = llama_model_get_vocab(model);
	return llama_token_to_piece(vocab, token, buf, bufLen, 0, true);
}

static bool crucibleLlamaTokenIsEOG(const struct llama_model* model, int32_t token) {
	const struct llama_vocab* vocab = llama_model_get_vocab(model);
	return llama_vocab_is_eog(vocab, token);
}

// crucibleLlamaDecode rebuilds a llama_batch from flat arrays. seqIDs holds
// the lane ids of every slot back to back; seqCounts[i] says how many of
// them belong to slot i.
static int crucibleLlamaDecode(struct llama_context* ctx, int32_t nTokens, const int32_t* tokens, const int32_t* pos, const int32_t* seqIDs, const int32_t* seqCounts, const int8_t* wantLogits) {
	int32_t maxSeq = 1;
	for (int32_t i = 0; i < nTokens; i++) {
		if (seqCounts[i] > maxSeq) {
			maxSeq = seqCounts[i];
		}
	}
	struct llama_batch batch = llama_batch_init(nTokens, 0, maxSeq);
	const int32_t* seq = seqIDs;
	for (int32_t i = 0; i < nTokens; i++) {
		batch.token[i] = tokens[i];
		batch.pos[i] = pos[i];
		batch.n_seq_id[i] = seqCounts[i];
		for (int32_t j = 0; j < seqCounts[i]; j++) {
			batch.seq_id[i][j] = seq[j];
		}
		seq += seqCounts[i];
		batch.logits[i] = wantLogits[i];
	}
	batch.n_tokens = nTokens;
	int ret = llama_decode(ctx, batch);
	llama_batch_free(batch);
	return ret;
}

static void crucibleLlamaMemoryClear(struct llama_context* ctx, bool data) {
	llama_memory_clear(llama_get_memory(ctx), data);
}

// crucibleLlamaNewSampler assembles the chain in llama.cpp's canonical
// order: top-k, top-p, min-p, temperature, then the final pick. Temperature
// at or below zero short-circuits to greedy argmax.
static struct llama_sampler* crucibleLlamaNewSampler(float temp, int32_t topK, float topP, float minP, uint32_t seed) {
	struct llama_sampler_chain_params params = llama_sampler_chain_default_params();
	struct llama_sampler* chain = llama_sampler_chain_init(params);
	if (chain == NULL) {
		return NULL;
	}
	if (temp <= 0.0f) {
		llama_sampler_chain_add(chain, llama_sampler_init_greedy());
		return chain;
	}
	if (topK > 0) {
		llama_sampler_chain_add(chain, llama_sampler_init_top_k(topK));
	}
	if (topP > 0.0f && topP < 1.0f) {
		llama_sampler_chain_add(chain, llama_sampler_init_top_p(topP, 1));
	}
	if (minP > 0.0f) {
		llama_sampler_chain_add(chain, llama_sampler_init_min_p(minP, 1));
	}
	llama_sampler_chain_add(chain, llama_sampler_init_temp(temp));
	llama_sampler_chain_add(chain, llama_sampler_init_dist(seed));
	return chain;
}

static void crucibleLlamaSamplerFree(struct llama_sampler* chain) {
	llama_sampler_free(chain);
}

static void crucibleLlamaSamplerReset(struct llama_sampler* chain) {
	llama_sampler_reset(chain);
}

static int32_t crucibleLlamaSample(struct llama_sampler* chain, struct llama_context* ctx, int32_t idx) {
	return llama_sampler_sample(chain, ctx, idx);
}
*/
import "C"

import (
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/samcharles93/crucible/internal/backend"
	"github.com/samcharles93/crucible/internal/logger"
)

// Built reports whether this binary carries the native decoder.
const Built = true

var initOnce sync.Once

// Backend owns one loaded model, one decode context and one sampler chain.
// Callers must serialize access; the decode context is not reentrant.
type Backend struct {
	model   *C.struct_llama_model
	ctx     *C.struct_llama_context
	sampler *C.struct_llama_sampler

	ctxWindow int
	desc      string
	sizeBytes uint64
	numParams uint64

	log logger.Logger
}

// Open loads the model at path and prepares a decode context sized by p.
// Zero-valued fields of p fall back to the generation defaults.
func Open(path string, p backend.Params, log logger.Logger) (backend.Backend, error) {
	if log == nil {
		log = logger.Default()
	}
	p = p.Resolve()

	initOnce.Do(func() {
		C.crucibleLlamaInit()
	})

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	model := C.crucibleLlamaLoadModel(cPath, C.int32_t(p.GPULayers))
	if model == nil {
		return nil, fmt.Errorf("%w: load %s", backend.ErrInit, path)
	}

	// n_batch is raised to the full context so a prompt that fits the
	// window can always be prefilled in a single decode call.
	ctx := C.crucibleLlamaNewContext(model, C.uint32_t(p.ContextSize), C.uint32_t(p.ContextSize), C.uint32_t(p.MaxLanes), C.int32_t(p.Threads))
	if ctx == nil {
		C.crucibleLlamaFreeModel(model)
		return nil, fmt.Errorf("%w: context for %s (n_ctx %d)", backend.ErrInit, path, p.ContextSize)
	}

	sampler := newChain(p)
	if sampler == nil {
		C.crucibleLlamaFreeContext(ctx)
		C.crucibleLlamaFreeModel(model)
		return nil, fmt.Errorf("%w: sampler chain", backend.ErrInit)
	}

	b := &Backend{
		model:     model,
		ctx:       ctx,
		sampler:   sampler,
		ctxWindow: int(C.crucibleLlamaContextSize(ctx)),
		sizeBytes: uint64(C.crucibleLlamaModelSize(model)),
		numParams: uint64(C.crucibleLlamaModelParams(model)),
		log:       log,
	}

	var buf [256]C.char
	if n := C.crucibleLlamaModelDesc(model, &buf[0], C.size_t(len(buf))); n > 0 {
		b.desc = C.GoString(&buf[0])
	}

	log.Debug("decoder ready",
		"model", path,
		"desc", b.desc,
		"context_window", b.ctxWindow,
		"lanes", p.MaxLanes,
		"gpu_layers", p.GPULayers,
	)
	return b, nil
}

func newChain(p backend.Params) *C.struct_llama_sampler {
	// llama.cpp treats 0xFFFFFFFF as "draw a random seed".
	seed := uint32(math.MaxUint32)
	if p.Seed >= 0 {
		seed = uint32(p.Seed)
	}
	return C.crucibleLlamaNewSampler(
		C.float(p.Temperature),
		C.int32_t(p.TopK),
		C.float(p.TopP),
		C.float(p.MinP),
		C.uint32_t(seed),
	)
}

// Tokenize converts text to token ids, prepending the vocabulary's
// beginning-of-sequence marker when asked.
func (b *Backend) Tokenize(text string, addLeadingMarker bool) ([]backend.Token, error) {
	if text == "" {
		return nil, nil
	}

	cText := C.CString(text)
	defer C.free(unsafe.Pointer(cText))

	// One token per byte plus marker room is enough for any vocabulary;
	// the negative-count retry below covers the rest.
	buf := make([]backend.Token, len(text)+8)
	n := C.crucibleLlamaTokenize(b.model, cText, C.int32_t(len(text)), (*C.int32_t)(unsafe.Pointer(&buf[0])), C.int32_t(len(buf)), C.bool(addLeadingMarker))
	if int32(n) < 0 {
		buf = make([]backend.Token, -int32(n))
		n = C.crucibleLlamaTokenize(b.model, cText, C.int32_t(len(text)), (*C.int32_t)(unsafe.Pointer(&buf[0])), C.int32_t(len(buf)), C.bool(addLeadingMarker))
	}
	if int32(n) < 0 {
		return nil, fmt.Errorf("tokenize %d bytes: count %d", len(text), int32(n))
	}
	return buf[:int32(n)], nil
}

// Decode runs one forward pass over the populated batch slots.
func (b *Backend) Decode(batch *backend.Batch) error {
	n := batch.Count()
	if n == 0 {
		return nil
	}

	tokens := make([]int32, n)
	pos := make([]int32, n)
	seqCounts := make([]int32, n)
	wantLogits := make([]int8, n)
	seqIDs := make([]int32, 0, n)
	for i := 0; i < n; i++ {
		tokens[i] = int32(batch.Token(i))
		pos[i] = batch.Pos(i)
		ids := batch.SeqIDs(i)
		seqCounts[i] = int32(len(ids))
		seqIDs = append(seqIDs, ids...)
		if batch.WantsLogits(i) {
			wantLogits[i] = 1
		}
	}

	var seqPtr *C.int32_t
	if len(seqIDs) > 0 {
		seqPtr = (*C.int32_t)(unsafe.Pointer(&seqIDs[0]))
	}
	ret := C.crucibleLlamaDecode(b.ctx, C.int32_t(n),
		(*C.int32_t)(unsafe.Pointer(&tokens[0])),
		(*C.int32_t)(unsafe.Pointer(&pos[0])),
		seqPtr,
		(*C.int32_t)(unsafe.Pointer(&seqCounts[0])),
		(*C.int8_t)(unsafe.Pointer(&wantLogits[0])),
	)
	if ret != 0 {
		return fmt.Errorf("%w: llama_decode returned %d for %d slots", backend.ErrDecode, int(ret), n)
	}
	return nil
}

// SampleNext samples a token from the logits of the given batch slot.
func (b *Backend) SampleNext(lastLogitSlot int) (backend.Token, error) {
	tok := C.crucibleLlamaSample(b.sampler, b.ctx, C.int32_t(lastLogitSlot))
	if int32(tok) < 0 {
		return 0, fmt.Errorf("sample at slot %d returned %d", lastLogitSlot, int32(tok))
	}
	return backend.Token(tok), nil
}

// IsEndOfGeneration reports whether tok terminates generation for the
// model's vocabulary.
func (b *Backend) IsEndOfGeneration(tok backend.Token) bool {
	return bool(C.crucibleLlamaTokenIsEOG(b.model, C.int32_t(tok)))
}

// TokenBytes returns the raw bytes of tok, which may end mid way through a
// multi-byte UTF-8 sequence.
func (b *Backend) TokenBytes(tok backend.Token) []byte {
	buf := make([]byte, 64)
	n := C.crucibleLlamaTokenPiece(b.model, C.int32_t(tok), (*C.char)(unsafe.Pointer(&buf[0])), C.int32_t(len(buf)))
	if int32(n) < 0 {
		buf = make([]byte, -int32(n))
		n = C.crucibleLlamaTokenPiece(b.model, C.int32_t(tok), (*C.char)(unsafe.Pointer(&buf[0])), C.int32_t(len(buf)))
	}
	if int32(n) <= 0 {
		return nil
	}
	return buf[:int32(n)]
}

// ClearMemory drops the key/value memory and resets sampler state so the
// next request starts from a clean context.
func (b *Backend) ClearMemory(fullReset bool) {
	C.crucibleLlamaMemoryClear(b.ctx, C.bool(fullReset))
	if b.sampler != nil {
		C.crucibleLlamaSamplerReset(b.sampler)
	}
}

// ConfigureSampler replaces the sampler chain with one built from p. The
// caller passes fully resolved parameters; a zero temperature selects
// greedy decoding.
func (b *Backend) ConfigureSampler(p backend.Params) error {
	chain := newChain(p)
	if chain == nil {
		return fmt.Errorf("%w: sampler chain", backend.ErrInit)
	}
	if b.sampler != nil {
		C.crucibleLlamaSamplerFree(b.sampler)
	}
	b.sampler = chain
	return nil
}

// ContextWindow returns the context length the decode context was created
// with, in tokens.
func (b *Backend) ContextWindow() int { return b.ctxWindow }

// ModelDesc returns the loaded model's self-description.
func (b *Backend) ModelDesc() string { return b.desc }

// ModelSize returns the model's on-disk weight size in bytes.
func (b *Backend) ModelSize() uint64 { return b.sizeBytes }

// ModelParams returns the model's parameter count.
func (b *Backend) ModelParams() uint64 { return b.numParams }

// Close frees the sampler chain, decode context and model.
func (b *Backend) Close() error {
	if b.sampler != nil {
		C.crucibleLlamaSamplerFree(b.sampler)
		b.sampler = nil
	}
	if b.ctx != nil {
		C.crucibleLlamaFreeContext(b.ctx)
		b.ctx = nil
	}
	if b.model != nil {
		C.crucibleLlamaFreeModel(b.model)
		b.model = nil
	}
	return nil
}
