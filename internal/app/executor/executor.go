// Package executor runs playback work off the command-intake path.
//
// Two kinds of work exist. Pool tasks (fade ramps) run on a fixed set of
// workers. Keyed tasks (slot operations) run on a serial lane per key, so
// operations on one slot execute in submission order while different slots
// proceed in parallel.
package executor

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Errors
var (
	ErrClosed    = errors.New("executor closed")
	ErrQueueFull = errors.New("executor queue full")
)

// Task is a unit of work. ctx is cancelled when the executor closes.
type Task func(ctx context.Context)

// Config holds executor sizing.
type Config struct {
	Workers   int // pool workers
	QueueSize int // buffered tasks per pool and per lane
}

// Executor is a bounded worker pool plus per-key serial lanes.
type Executor struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	tasks  chan Task
	lanes  map[string]chan Task
	closed bool

	wg conc.WaitGroup
}

// New creates an executor and starts its pool workers.
func New(cfg Config) *Executor {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(chan Task, cfg.QueueSize),
		lanes:  make(map[string]chan Task),
	}
	for i := 0; i < cfg.Workers; i++ {
		e.wg.Go(func() { e.drain("pool", e.tasks) })
	}
	return e
}

// Go queues t on the worker pool. It never blocks.
func (e *Executor) Go(t Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	select {
	case e.tasks <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Submit queues t on the serial lane for key. It never blocks.
func (e *Executor) Submit(key string, t Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	lane, ok := e.lanes[key]
	if !ok {
		lane = make(chan Task, e.cfg.QueueSize)
		e.lanes[key] = lane
		e.wg.Go(func() { e.drain(key, lane) })
	}
	select {
	case lane <- t:
		return nil
	default:
		return errors.Wrapf(ErrQueueFull, "lane %s", key)
	}
}

// Close cancels the executor context, runs what is already queued and waits
// for every worker to exit.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.cancel()
	close(e.tasks)
	for _, lane := range e.lanes {
		close(lane)
	}
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *Executor) drain(name string, ch <-chan Task) {
	for t := range ch {
		e.run(name, t)
	}
}

// run executes t, containing any panic to the task.
func (e *Executor) run(name string, t Task) {
	var pc panics.Catcher
	pc.Try(func() { t(e.ctx) })
	if r := pc.Recovered(); r != nil {
		zlog.Error().Msgf("executor: task panicked: queue=%s err=%v", name, r.AsError())
	}
}
