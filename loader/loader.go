// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader fetches models and reads the TOML configuration that
// describes how to serve them.
//
// Models can live in a local directory, behind an HTTP server or in a
// Google Cloud Storage bucket. Fetch copies one into a local cache
// directory and returns its path; later fetches reuse the cached file.
//
// Example usage:
//
//	cfg, err := loader.LoadConfig("mnn.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	e, err := cfg.NewEngine(ctx, reference.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	h := actor.New(e, cfg.ActorConfig())
package loader

import (
	"context"

	"github.com/born-ml/mnn/internal/config"
	"github.com/born-ml/mnn/internal/modelstore"
)

type (
	// Store opens models by name.
	Store = modelstore.Store
	// FileStore reads models from a directory.
	FileStore = modelstore.FileStore
	// HTTPStore reads models from BaseURL/name.
	HTTPStore = modelstore.HTTPStore
	// GCSStore reads models from a GCS bucket.
	GCSStore = modelstore.GCSStore

	// Config is a loaded configuration file.
	Config = config.Config
	// StoreConfig selects where models are fetched from.
	StoreConfig = config.StoreConfig
)

// ErrInvalidName is returned for model names that are empty, absolute or
// escape the store.
var ErrInvalidName = modelstore.ErrInvalidName

// Fetch copies the named model from store into dir and returns its path.
func Fetch(ctx context.Context, store Store, name, dir string) (string, error) {
	return modelstore.Fetch(ctx, store, name, dir)
}

// LoadConfig reads a TOML configuration file.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// ParseConfig decodes a TOML configuration held in memory.
func ParseConfig(data string) (Config, error) {
	return config.Parse(data)
}

// DefaultConfig returns the configuration used for keys a file leaves out.
func DefaultConfig() Config {
	return config.Default()
}
