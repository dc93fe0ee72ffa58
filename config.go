package voxterra

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/soypat/voxterra/vmath"
)

// Config holds the engine's recognized options. Zero value is invalid;
// use DefaultConfig or LoadConfig.
type Config struct {
	// WorkerThreadCount is the number of background extraction workers.
	// 0 disables background work: every job runs inline on the caller
	// of Update.
	WorkerThreadCount int `json:"workerThreadCount"`
	// RenderEnabled skips the renderer-upload step when false, for
	// headless runs and tests.
	RenderEnabled bool `json:"renderEnabled"`
	// ChunkCapacity bounds how many chunks can be resident at once.
	ChunkCapacity int `json:"chunkCapacity"`
	// QueueDepth bounds the worker pool's job and completion channels.
	QueueDepth int `json:"queueDepth"`
	// MaxConcurrentJobs bounds how many extraction jobs the scheduler
	// keeps in flight at once.
	MaxConcurrentJobs int `json:"maxConcurrentJobs"`
	// MaxChunkVerts and MaxChunkIndices bound one chunk's mesh; a job
	// whose result would exceed either aborts to Empty.
	MaxChunkVerts   int `json:"maxChunkVerts"`
	MaxChunkIndices int `json:"maxChunkIndices"`
}

// DefaultConfig returns sane defaults: four worker threads, rendering
// on, room for a generous view radius worth of chunks.
func DefaultConfig() Config {
	return Config{
		WorkerThreadCount: 4,
		RenderEnabled:     true,
		ChunkCapacity:     4096,
		QueueDepth:        256,
		MaxConcurrentJobs: 8,
		MaxChunkVerts:     1 << 15,
		MaxChunkIndices:   1 << 16,
	}
}

// sanitize clamps every field to a safe range, so a malformed or
// partially-specified config can never size a zero- or negative-length
// allocation.
func (c *Config) sanitize() {
	c.WorkerThreadCount = vmath.ClampOrdered(c.WorkerThreadCount, 0, 1<<12)
	c.ChunkCapacity = vmath.ClampOrdered(c.ChunkCapacity, 1, 1<<20)
	c.QueueDepth = vmath.ClampOrdered(c.QueueDepth, 1, 1<<16)
	c.MaxConcurrentJobs = vmath.ClampOrdered(c.MaxConcurrentJobs, 1, 1<<10)
	c.MaxChunkVerts = vmath.ClampOrdered(c.MaxChunkVerts, 1, 1<<16)
	c.MaxChunkIndices = vmath.ClampOrdered(c.MaxChunkIndices, 1, 1<<17)
}

// LoadConfig reads a JSON-encoded Config from r, starting from
// DefaultConfig so any field the document omits keeps its default.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("voxterra: decode config: %w", err)
	}
	cfg.sanitize()
	return cfg, nil
}
