// Package parallel splits kernel loops across a session's worker budget.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how a loop is split.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Upper bound on concurrent chunks.
	MinChunkSize int  // Minimum items per chunk.
}

// DefaultConfig uses every CPU.
func DefaultConfig() Config {
	return WithThreads(runtime.NumCPU())
}

// WithThreads returns a Config bounded by a session's thread count. Zero or
// one thread runs loops inline.
func WithThreads(threads int) Config {
	return Config{
		Enabled:      threads > 1,
		NumWorkers:   max(threads, 1),
		MinChunkSize: 1024,
	}
}

// Range calls f on disjoint [start, end) chunks covering [0, n) and returns
// once all chunks are done.
func Range(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < 2*cfg.MinChunkSize {
		f(0, n)
		return
	}

	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}

// For executes f(i) for i in [0, n).
func For(n int, f func(i int), cfg Config) {
	Range(n, func(s, e int) {
		for i := s; i < e; i++ {
			f(i)
		}
	}, cfg)
}

// ForBatch iterates the batch x channels plane, as pooling kernels do.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	n := batch * channels
	cfg.MinChunkSize = 1
	For(n, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
