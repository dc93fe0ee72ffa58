// Package job defines the unit of extraction work dispatched to the
// worker pool and the pool itself. The pool's shape (channel of work,
// fixed goroutine count, owner polls for completions instead of
// blocking on a result channel) is grounded on a chunk-streaming
// worker pool pattern seen elsewhere in the voxel-engine examples,
// adapted from fire-and-forget streaming to run-to-completion jobs the
// owner thread collects once per frame.
package job

import (
	"sync"
	"sync/atomic"

	"github.com/soypat/voxterra/extract"
	"github.com/soypat/voxterra/field"
	"github.com/soypat/voxterra/sdfcache"
)

// Job is one chunk's extraction: CPU-bound and run-to-completion by a
// single worker goroutine. A worker only ever reads the field snapshot
// and writes into the Job's own Grid/Scratch/Result, never touching
// shared state.
type Job struct {
	Coord      field.ChunkCoord
	Snapshot   *field.Snapshot
	Grid       *sdfcache.Grid
	Scratch    *extract.Scratch
	MaxVerts   int
	MaxIndices int

	Result extract.Result
	Err    error
}

// Run performs the job's work synchronously. Safe to call directly
// (inline fallback) or from a pool worker goroutine.
func (j *Job) Run() {
	origin := j.Coord.Origin()
	if err := j.Grid.Fill(j.Snapshot, origin); err != nil {
		j.Err = err
		return
	}
	extract.Chunk(j.Grid, origin, j.Scratch, j.MaxVerts, j.MaxIndices, &j.Result)
}

// Renderer is the collaborator contract a scheduler uses to hand off
// finished chunk geometry and to drop geometry of chunks the store has
// freed; callers pass an implementation to voxterra.New, tests a fake.
type Renderer interface {
	UploadChunk(coord field.ChunkCoord, vertices []extract.Vertex, indices []uint16) error
	EvictChunk(coord field.ChunkCoord) error
}

// Pool runs Jobs on a fixed number of goroutines. The owner thread
// never blocks on it: Push is non-blocking (false means the queue is
// full; the scheduler then undoes that dispatch and stops dispatching
// for the frame) and
// completed jobs are collected by calling Drain once per frame.
type Pool struct {
	jobs      chan *Job
	completed chan *Job
	threads   int
	active    atomic.Int64
	closeOnce sync.Once
}

// NewPool starts a pool with the given number of worker goroutines.
// threads == 0 makes every Push run its job inline on the calling
// goroutine instead, for single-threaded environments or tests.
func NewPool(threads, queueDepth int) *Pool {
	p := &Pool{threads: threads}
	if threads <= 0 {
		return p
	}
	p.jobs = make(chan *Job, queueDepth)
	p.completed = make(chan *Job, queueDepth)
	for i := 0; i < threads; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for j := range p.jobs {
		j.Run()
		p.active.Add(-1)
		p.completed <- j
	}
}

// Push enqueues a job. It returns false without blocking if the
// internal queue is full, so the caller can retry next frame or steal
// a slot from a lower-priority pending coordinate.
func (p *Pool) Push(j *Job) bool {
	if p.threads <= 0 {
		j.Run()
		return true
	}
	p.active.Add(1)
	select {
	case p.jobs <- j:
		return true
	default:
		p.active.Add(-1)
		return false
	}
}

// Drain returns every job that has finished since the last Drain call,
// without blocking.
func (p *Pool) Drain() []*Job {
	if p.threads <= 0 {
		return nil
	}
	var out []*Job
	for {
		select {
		case j := <-p.completed:
			out = append(out, j)
		default:
			return out
		}
	}
}

// IdleCount returns the worker count minus the number of pushed jobs
// that have not finished yet, queued or running; it is negative while
// more jobs are queued than there are workers.
func (p *Pool) IdleCount() int {
	if p.threads <= 0 {
		return 1
	}
	return p.threads - int(p.active.Load())
}

// Idle reports whether the pool has zero jobs in flight, the
// precondition the scheduler requires before committing pending SDF
// edits.
func (p *Pool) Idle() bool {
	if p.threads <= 0 {
		return true
	}
	return p.active.Load() == 0
}

// Close stops every worker goroutine. Safe to call more than once.
func (p *Pool) Close() {
	if p.threads <= 0 {
		return
	}
	p.closeOnce.Do(func() { close(p.jobs) })
}
