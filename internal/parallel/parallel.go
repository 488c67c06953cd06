// Package parallel splits independent index ranges across goroutines for the
// CPU backend.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled    bool // Whether parallel execution is enabled.
	NumWorkers int  // Upper bound on goroutines per call.
	MinChunk   int  // Minimum indices per goroutine; smaller ranges run inline.
}

// DefaultConfig uses one worker per CPU. Units handed to For are whole
// feature-map planes or batch items, so a small MinChunk already pays off.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:    n > 1,
		NumWorkers: n,
		MinChunk:   1,
	}
}

// WithWorkers returns a copy of cfg capped at n workers.
// n <= 1 disables parallelism.
func (cfg Config) WithWorkers(n int) Config {
	cfg.NumWorkers = n
	cfg.Enabled = n > 1
	return cfg
}

// For executes f(i) for i in [0, n). Each index runs exactly once, so callers
// that write disjoint outputs per index get deterministic results regardless
// of scheduling.
func For(n int, f func(i int), cfg Config) {
	minChunk := max(cfg.MinChunk, 1)
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*minChunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, minChunk)

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForPlanes iterates over every (batch, channel) plane of an NCHW tensor.
func ForPlanes(batch, channels int, f func(n, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
