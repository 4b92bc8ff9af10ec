package core

import (
	"sync"

	"github.com/kali23041/3d-gsplat/internal/domain"
)

// subscriberBuffer is the per-subscriber event backlog. A subscriber that
// falls this far behind is evicted rather than allowed to block publishing.
const subscriberBuffer = 64

// Filter narrows a subscription. Zero value matches every event; setting
// OwnerID or JobID restricts delivery to that owner's or that job's events.
type Filter struct {
	OwnerID string
	JobID   string
}

func (f Filter) matches(ev domain.JobChangeEvent) bool {
	if f.OwnerID != "" && ev.OwnerID != f.OwnerID {
		return false
	}
	if f.JobID != "" && ev.JobID != f.JobID {
		return false
	}
	return true
}

// Subscription is one subscriber's ordered event stream. Events for the same
// job arrive in the order they were published; no ordering holds across jobs.
// C is closed when the subscription ends, whether by Close or eviction.
type Subscription struct {
	C <-chan domain.JobChangeEvent

	ch   chan domain.JobChangeEvent
	n    *Notifier
	once sync.Once
}

// Close detaches the subscription. Idempotent and side-effect-free beyond
// the detach itself; pending buffered events are discarded.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		sub.n.drop(sub)
	})
}

// Notifier fans job change events out to active subscribers. Publishing is
// in-memory and non-blocking: a subscriber whose buffer is full is dropped,
// the same as a disconnect, so one stalled dashboard cannot hold up the
// scheduler or estimator.
type Notifier struct {
	mu   sync.Mutex
	subs map[*Subscription]Filter
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[*Subscription]Filter)}
}

// Subscribe registers a new subscriber for events matching the filter.
func (n *Notifier) Subscribe(f Filter) *Subscription {
	ch := make(chan domain.JobChangeEvent, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, n: n}
	n.mu.Lock()
	n.subs[sub] = f
	n.mu.Unlock()
	return sub
}

// Publish delivers the event to every matching subscriber. Holding n.mu for
// the whole fan-out means two Publish calls never interleave, so events reach
// each subscriber in exactly the order callers publish them; each subscriber
// channel is FIFO.
func (n *Notifier) Publish(ev domain.JobChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub, f := range n.subs {
		if !f.matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Buffer full: treat as disconnected.
			delete(n.subs, sub)
			close(sub.ch)
		}
	}
}

func (n *Notifier) drop(sub *Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.subs[sub]; ok {
		delete(n.subs, sub)
		close(sub.ch)
	}
}

// SubscriberCount reports the number of active subscriptions.
func (n *Notifier) SubscriberCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
