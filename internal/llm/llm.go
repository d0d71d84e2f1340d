// Package llm drives the runtime's language-model engine: text goes in
// through a Tokenizer, token ids go to the native model, text comes back.
package llm

import (
	"runtime"
	"sync"

	"k8s.io/klog/v2"

	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/native"
)

// Option configures an LLM.
type Option func(*LLM)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(log klog.Logger) Option {
	return func(m *LLM) { m.log = log }
}

// LLM owns one native language model. It is safe for concurrent use; calls
// are serialized.
type LLM struct {
	rt     native.LLMRuntime
	handle native.LLM
	tok    Tokenizer
	log    klog.Logger

	mu      sync.Mutex
	loaded  bool
	closed  bool
	cleanup runtime.Cleanup
}

type llmRef struct {
	rt     native.LLMRuntime
	handle native.LLM
}

// New creates a model from configPath. The weights are not read until Load.
func New(rt native.Runtime, configPath string, tok Tokenizer, opts ...Option) (*LLM, error) {
	lrt, ok := rt.(native.LLMRuntime)
	if !ok {
		return nil, mnnerr.New(mnnerr.KindInterpreter, "runtime %T has no LLM engine", rt)
	}
	if tok == nil {
		return nil, mnnerr.New(mnnerr.KindInterpreter, "nil tokenizer")
	}
	h := lrt.CreateLLM(configPath)
	if h == 0 {
		return nil, mnnerr.New(mnnerr.KindInterpreter, "failed to create LLM from %q", configPath)
	}
	m := &LLM{
		rt:     lrt,
		handle: h,
		tok:    tok,
		log:    klog.Background().WithName("llm"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cleanup = runtime.AddCleanup(m, func(r llmRef) {
		r.rt.DestroyLLM(r.handle)
	}, llmRef{rt: lrt, handle: h})
	m.log.V(2).Info("created llm", "config", configPath)
	return m, nil
}

// Load reads the model weights.
func (m *LLM) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed()
	}
	if code := m.rt.LLMLoad(m.handle); code != native.NoError {
		return mnnerr.Status(code, "load llm")
	}
	m.loaded = true
	return nil
}

// Generate answers prompt with at most maxNew tokens. maxNew <= 0 leaves
// the limit to the model.
func (m *LLM) Generate(prompt string, maxNew int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", errClosed()
	}
	if !m.loaded {
		return "", mnnerr.New(mnnerr.KindInterpreter, "llm not loaded")
	}
	ids, err := m.tok.Encode(prompt)
	if err != nil {
		return "", mnnerr.Wrap(mnnerr.KindParse, err, "encode prompt")
	}
	out := m.rt.LLMGenerate(m.handle, ids, maxNew)
	m.log.V(4).Info("generated", "prompt_tokens", len(ids), "tokens", len(out))
	text, err := m.tok.Decode(out)
	if err != nil {
		return "", mnnerr.Wrap(mnnerr.KindParse, err, "decode response")
	}
	return text, nil
}

// Reset clears the conversation history.
func (m *LLM) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed()
	}
	m.rt.LLMReset(m.handle)
	return nil
}

// Close frees the native model. Later calls are no-ops.
func (m *LLM) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.cleanup.Stop()
	m.rt.DestroyLLM(m.handle)
	m.log.V(2).Info("closed llm")
}

func errClosed() error {
	return mnnerr.New(mnnerr.KindInterpreter, "llm closed")
}
