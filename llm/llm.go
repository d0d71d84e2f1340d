// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package llm runs the runtime's language-model engine on text prompts.
//
//	tok, err := llm.NewTikToken("cl100k_base")
//	m, err := llm.New(rt, "qwen/config.json", tok)
//	defer m.Close()
//	err = m.Load()
//	answer, err := m.Generate("hello", 64)
package llm

import (
	"github.com/born-ml/mnn/internal/llm"
)

type (
	// LLM owns one native language model.
	LLM = llm.LLM
	// Option configures an LLM.
	Option = llm.Option
	// Tokenizer converts between text and token ids.
	Tokenizer = llm.Tokenizer
	// TikToken is a Tokenizer backed by the tiktoken BPE encodings.
	TikToken = llm.TikToken
)

var (
	// New creates a model from a config path. The runtime must ship an
	// LLM engine.
	New = llm.New
	// NewTikToken loads a tiktoken encoding such as "cl100k_base".
	NewTikToken = llm.NewTikToken
	// WithLogger sets the logger used for lifecycle messages.
	WithLogger = llm.WithLogger
)
