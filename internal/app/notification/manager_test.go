package notification

import (
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStream struct {
	mu    sync.Mutex
	got   []*Notification
	err   error
	block chan struct{}
}

func (s *recordingStream) Send(n *Notification) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return s.err
}

func (s *recordingStream) received() []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Notification(nil), s.got...)
}

func TestManager_Broadcast(t *testing.T) {
	m := NewManager()
	a, b := &recordingStream{}, &recordingStream{err: errors.New("closed")}
	m.Subscribe(a)
	m.Subscribe(b)
	require.Equal(t, 2, m.SubscriberCount())

	m.Broadcast(&Notification{Kind: KindForegroundTrigger, Payload: "spressed"})
	m.Broadcast(&Notification{Kind: KindStopAll, Payload: "all_stop"})

	for _, s := range []*recordingStream{a, b} {
		got := s.received()
		require.Len(t, got, 2)
		assert.Equal(t, "spressed", got[0].Payload)
		assert.Equal(t, uint64(1), got[0].SequenceNo)
		assert.Equal(t, KindStopAll, got[1].Kind)
		assert.Equal(t, uint64(2), got[1].SequenceNo)
	}
}

func TestManager_SlowSubscriberTimesOut(t *testing.T) {
	m := NewManager()
	slow := &recordingStream{block: make(chan struct{})}
	defer close(slow.block)
	fast := &recordingStream{}
	m.Subscribe(slow)
	m.Subscribe(fast)

	start := time.Now()
	m.Broadcast(&Notification{Kind: KindForegroundTrigger, Payload: "lpressed"})
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Len(t, fast.received(), 1)
}

func TestManager_NotifyAndUnsubscribe(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	id := m.Subscribe(s)

	m.Notify(KindStopAll, "all_stop")
	assert.Eventually(t, func() bool { return len(s.received()) == 1 }, time.Second, time.Millisecond)

	m.Unsubscribe(id)
	m.Notify(KindStopAll, "all_stop")
	m.Close()
	assert.Len(t, s.received(), 1)
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestManager_NotifyPreservesOrder(t *testing.T) {
	for i := 0; i < 200; i++ {
		m := NewManager()
		s := &recordingStream{}
		m.Subscribe(s)

		m.Notify(KindForegroundTrigger, "spressed")
		m.Notify(KindStopAll, "all_stop")
		m.Close()

		got := s.received()
		require.Len(t, got, 2)
		require.Equal(t, "spressed", got[0].Payload, "iteration %d", i)
		require.Equal(t, "all_stop", got[1].Payload, "iteration %d", i)
		assert.Less(t, got[0].SequenceNo, got[1].SequenceNo)
	}
}

func TestManager_NotifyAfterClose(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	m.Subscribe(s)
	m.Close()
	m.Close()

	m.Notify(KindStopAll, "all_stop")
	assert.Empty(t, s.received())
}
