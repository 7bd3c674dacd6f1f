package playback

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/osa030/goalhorn/internal/infra/audio"
)

const defaultStepDuration = 5 * time.Millisecond

// RampConfig describes a fade-out ramp.
type RampConfig struct {
	Steps        int
	StepDuration time.Duration
	HeadroomDB   float64 // full volume sits this far below the device maximum
}

// FullVolume returns the gain treated as full volume on g.
func (c RampConfig) FullVolume(g audio.GainControl) float64 {
	minDB, maxDB := g.Range()
	return math.Max(minDB, math.Min(maxDB-c.HeadroomDB, maxDB))
}

// Duration returns how long an uninterrupted ramp takes.
func (c RampConfig) Duration() time.Duration {
	return time.Duration(c.Steps+1) * c.stepDuration()
}

func (c RampConfig) stepDuration() time.Duration {
	if c.StepDuration <= 0 {
		return defaultStepDuration
	}
	return c.StepDuration
}

// Level returns the gain at step i of an n-step linear ramp from v0 to vmin.
// Step 0 is v0 and step n is exactly vmin.
func Level(v0, vmin float64, i, n int) float64 {
	if n <= 0 || i >= n {
		return vmin
	}
	if i <= 0 {
		return v0
	}
	v := v0 - float64(i)*(v0-vmin)/float64(n)
	return math.Max(vmin, math.Min(v, v0))
}

// Ramp lowers g step by step from full volume to its minimum. It checks ctx
// before every step and while suspended between steps; on cancellation it
// restores full volume and returns false. Returns true once the minimum has
// been applied and the last step has elapsed.
func Ramp(ctx context.Context, g audio.GainControl, cfg RampConfig) bool {
	v0 := cfg.FullVolume(g)
	vmin, _ := g.Range()

	ticker := time.NewTicker(cfg.stepDuration())
	defer ticker.Stop()

	for i := 0; i <= cfg.Steps; i++ {
		if ctx.Err() != nil {
			g.Set(v0)
			return false
		}
		g.Set(Level(v0, vmin, i, cfg.Steps))

		select {
		case <-ctx.Done():
			g.Set(v0)
			return false
		case <-ticker.C:
		}
	}
	return true
}

const (
	taskPending int32 = iota
	taskRunning
	taskAbandoned
)

// fadeTask is one registered ramp. done is closed by the running task once
// the ramp loop has exited, before it touches slot state again.
type fadeTask struct {
	ctx    context.Context
	cancel context.CancelFunc
	status atomic.Int32
	done   chan struct{}
}

func newFadeTask() *fadeTask {
	ctx, cancel := context.WithCancel(context.Background())
	return &fadeTask{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// begin marks the task running. Returns false if it was abandoned first.
func (t *fadeTask) begin() bool {
	return t.status.CompareAndSwap(taskPending, taskRunning)
}

// stop cancels the task and waits until its ramp loop has exited. A task
// still queued is abandoned instead, so callers never wait on a queue.
func (t *fadeTask) stop() {
	t.cancel()
	if t.status.CompareAndSwap(taskPending, taskAbandoned) {
		return
	}
	<-t.done
}
