// Package notify delivers short user-facing notifications (title,
// description, variant) to subscribers of a topic.
package notify

import (
	"sync"
	"sync/atomic"
)

// Variant distinguishes ordinary from error notifications.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Limit is how many undelivered notifications a subscriber keeps.
const Limit = 5

// Notification is one message shown to a user.
type Notification struct {
	ID          uint64  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Variant     Variant `json:"variant"`
}

// Publisher is the side of the bus used by producers.
type Publisher interface {
	Publish(topic string, n Notification)
}

// Subscription receives notifications published to one topic.
type Subscription struct {
	topic string
	ch    chan Notification
	bus   *Bus
	once  sync.Once
}

// C returns the delivery channel. It is closed on Unsubscribe.
func (s *Subscription) C() <-chan Notification {
	return s.ch
}

// Unsubscribe detaches the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.ch)
	})
}

// Bus is an in-process topic fan-out. The zero value is not usable; use NewBus.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	nextID atomic.Uint64
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber on topic.
func (b *Bus) Subscribe(topic string) *Subscription {
	s := &Subscription{topic: topic, ch: make(chan Notification, Limit), bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[topic]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[topic] = set
	}
	set[s] = struct{}{}
	return s
}

// Publish delivers n to every subscriber of topic without blocking. When a
// subscriber's buffer is full its oldest pending notification is dropped.
func (b *Bus) Publish(topic string, n Notification) {
	if n.Variant == "" {
		n.Variant = VariantDefault
	}
	n.ID = b.nextID.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs[topic] {
		for {
			select {
			case s.ch <- n:
			default:
				select {
				case <-s.ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[s.topic]
	delete(set, s)
	if len(set) == 0 {
		delete(b.subs, s.topic)
	}
}
