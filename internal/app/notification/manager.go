// Package notification broadcasts soundboard events to connected observers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// Kind identifies what happened.
type Kind string

const (
	// KindForegroundTrigger is sent when a goal horn fires.
	KindForegroundTrigger Kind = "foreground_trigger_fired"
	// KindStopAll is sent when every slot is faded out.
	KindStopAll Kind = "stop_all_fired"
)

const (
	sendTimeout = 500 * time.Millisecond
	queueSize   = 64
)

// Notification is one broadcast message. Payload is the text observers
// receive on the wire.
type Notification struct {
	Kind       Kind
	Payload    string
	SequenceNo uint64
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex

	// queue feeds the single delivery goroutine, so Notify calls reach
	// observers in the order they were made.
	queue    chan *Notification
	closed   bool // guarded by sequenceNoMu
	delivery conc.WaitGroup
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	m := &Manager{
		subscriptions: make(map[string]*subscription),
		queue:         make(chan *Notification, queueSize),
	}
	m.delivery.Go(m.deliver)
	return m
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Notify queues a broadcast and returns immediately. Queued notifications
// are delivered in call order. When the queue is full the notification is
// dropped.
func (m *Manager) Notify(kind Kind, payload string) {
	n := &Notification{Kind: kind, Payload: payload}

	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()

	if m.closed {
		zlog.Debug().Msgf("notification: manager closed, dropped: kind=%s", kind)
		return
	}
	m.sequenceNo++
	n.SequenceNo = m.sequenceNo

	select {
	case m.queue <- n:
	default:
		zlog.Warn().Msgf("notification: queue full, dropped: kind=%s seq=%d", kind, n.SequenceNo)
	}
}

func (m *Manager) deliver() {
	for n := range m.queue {
		m.broadcast(n)
	}
}

// Broadcast sends a notification to all subscribers and waits until every
// send finished or timed out. Send failures are logged and dropped.
func (m *Manager) Broadcast(n *Notification) {
	m.stamp(n)
	m.broadcast(n)
}

func (m *Manager) stamp(n *Notification) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	n.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()
}

func (m *Manager) broadcast(n *Notification) {
	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg conc.WaitGroup
	for _, sub := range subs {
		wg.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- sub.stream.Send(n)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification: send failed: subscription=%s kind=%s err=%v", sub.id, n.Kind, err)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send timed out: subscription=%s kind=%s", sub.id, n.Kind)
			}
		})
	}
	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close delivers what is still queued and removes all subscriptions.
// Notify calls after Close are dropped.
func (m *Manager) Close() {
	m.sequenceNoMu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.sequenceNoMu.Unlock()
	m.delivery.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
