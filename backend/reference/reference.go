// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package reference provides a pure Go runtime for small TOML-described
// models. It implements the full native runtime contract and counts every
// handle it hands out, which makes it useful for tests and examples.
//
//	rt := reference.New()
//	defer rt.Close()
//	e, err := engine.NewFromBytes(rt, []byte(reference.Classifier))
package reference

import (
	"github.com/born-ml/mnn/internal/backend/reference"
)

type (
	// Runtime is the reference runtime.
	Runtime = reference.Runtime
	// Option configures a Runtime.
	Option = reference.Option
	// Stats is a snapshot of handle and run counters.
	Stats = reference.Stats
	// Model is a parsed model manifest.
	Model = reference.Model
)

var (
	// New creates a runtime.
	New = reference.New
	// WithLogger sets the runtime's logger.
	WithLogger = reference.WithLogger
	// WithPrivateDeviceMemory keeps device buffers in process memory even
	// where a GPU allocator is available.
	WithPrivateDeviceMemory = reference.WithPrivateDeviceMemory
	// ParseModel parses and validates a model manifest.
	ParseModel = reference.ParseModel
)

// Sample models.
const (
	Classifier        = reference.Classifier
	DynamicClassifier = reference.DynamicClassifier
	Residual          = reference.Residual
)
