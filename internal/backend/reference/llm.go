package reference

import (
	"slices"

	"github.com/born-ml/mnn/internal/native"
)

// echoLLM answers every prompt with the prompt itself.
type echoLLM struct {
	config  string
	loaded  bool
	history int
}

// CreateLLM creates an echo model. The config path is recorded, not read.
func (r *Runtime) CreateLLM(configPath string) native.LLM {
	if configPath == "" {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h := native.LLM(r.handle())
	r.llms[h] = &echoLLM{config: configPath}
	return h
}

// LLMLoad marks the model loaded.
func (r *Runtime) LLMLoad(llm native.LLM) native.ErrorCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.llms[llm]
	if m == nil {
		return native.InvalidValue
	}
	m.loaded = true
	return native.NoError
}

// LLMGenerate returns up to maxNew prompt tokens. An unloaded model
// generates nothing.
func (r *Runtime) LLMGenerate(llm native.LLM, ids []int32, maxNew int) []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.llms[llm]
	if m == nil || !m.loaded {
		return nil
	}
	out := slices.Clone(ids)
	if maxNew > 0 && len(out) > maxNew {
		out = out[:maxNew]
	}
	m.history += len(ids) + len(out)
	return out
}

// LLMReset clears the conversation history.
func (r *Runtime) LLMReset(llm native.LLM) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m := r.llms[llm]; m != nil {
		m.history = 0
	}
}

// DestroyLLM frees the model.
func (r *Runtime) DestroyLLM(llm native.LLM) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.llms[llm]; !ok {
		r.stats.doubleFrees.Add(1)
		return
	}
	delete(r.llms, llm)
}

// LiveLLMs returns the number of models not yet destroyed.
func (r *Runtime) LiveLLMs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.llms)
}
