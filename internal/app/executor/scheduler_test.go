package executor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_Fires(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	fired := make(chan struct{})
	s.Schedule("continuous", 10*time.Millisecond, func() { close(fired) })
	assert.True(t, s.Pending("continuous"))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("scheduled callback did not fire")
	}
	assert.Eventually(t, func() bool { return !s.Pending("continuous") }, time.Second, time.Millisecond)
}

func TestScheduler_ReplaceKeepsOnlyLatest(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var first, second atomic.Int32
	s.Schedule("continuous", 20*time.Millisecond, func() { first.Add(1) })
	s.Schedule("continuous", 30*time.Millisecond, func() { second.Add(1) })

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestScheduler_Cancel(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var n atomic.Int32
	s.Schedule("continuous", 20*time.Millisecond, func() { n.Add(1) })
	assert.True(t, s.Cancel("continuous"))
	assert.False(t, s.Cancel("continuous"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), n.Load())
}

func TestScheduler_CancelAllAndClose(t *testing.T) {
	s := NewScheduler()

	var n atomic.Int32
	s.Schedule("a", 20*time.Millisecond, func() { n.Add(1) })
	s.Schedule("b", 20*time.Millisecond, func() { n.Add(1) })
	s.CancelAll()
	assert.False(t, s.Pending("a"))
	assert.False(t, s.Pending("b"))

	s.Close()
	s.Schedule("c", time.Millisecond, func() { n.Add(1) })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), n.Load())
}
