package voxterra

import (
	"strings"
	"testing"
)

func TestConfigSanitizeClampsOutOfRangeFields(t *testing.T) {
	cfg := Config{
		WorkerThreadCount: -5,
		ChunkCapacity:     0,
		QueueDepth:        -1,
		MaxConcurrentJobs: 1 << 20,
		MaxChunkVerts:     -1,
		MaxChunkIndices:   1 << 30,
	}
	cfg.sanitize()

	if cfg.WorkerThreadCount != 0 {
		t.Errorf("WorkerThreadCount = %d, want 0", cfg.WorkerThreadCount)
	}
	if cfg.ChunkCapacity != 1 {
		t.Errorf("ChunkCapacity = %d, want 1", cfg.ChunkCapacity)
	}
	if cfg.QueueDepth != 1 {
		t.Errorf("QueueDepth = %d, want 1", cfg.QueueDepth)
	}
	if cfg.MaxConcurrentJobs != 1<<10 {
		t.Errorf("MaxConcurrentJobs = %d, want %d", cfg.MaxConcurrentJobs, 1<<10)
	}
	if cfg.MaxChunkVerts != 1 {
		t.Errorf("MaxChunkVerts = %d, want 1", cfg.MaxChunkVerts)
	}
	if cfg.MaxChunkIndices != 1<<17 {
		t.Errorf("MaxChunkIndices = %d, want %d", cfg.MaxChunkIndices, 1<<17)
	}
}

func TestLoadConfigKeepsDefaultsForOmittedFields(t *testing.T) {
	r := strings.NewReader(`{"workerThreadCount": 2}`)
	cfg, err := LoadConfig(r)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := DefaultConfig()
	if cfg.WorkerThreadCount != 2 {
		t.Errorf("WorkerThreadCount = %d, want 2", cfg.WorkerThreadCount)
	}
	if cfg.ChunkCapacity != want.ChunkCapacity {
		t.Errorf("ChunkCapacity = %d, want default %d", cfg.ChunkCapacity, want.ChunkCapacity)
	}
	if cfg.RenderEnabled != want.RenderEnabled {
		t.Errorf("RenderEnabled = %v, want default %v", cfg.RenderEnabled, want.RenderEnabled)
	}
}

func TestLoadConfigRejectsMalformedJSON(t *testing.T) {
	r := strings.NewReader(`{not json`)
	if _, err := LoadConfig(r); err == nil {
		t.Fatal("expected an error decoding malformed JSON")
	}
}
