// Package notify provides change notifications: an in-process topic broker
// and a websocket fanout over it.
//
// Notifications carry no payload beyond the topic name. The contract is
// "something changed, re-read the source"; observers react by re-fetching
// whatever the topic covers.
package notify

import "sync"

// subscriberBuffer is the per-subscriber channel capacity. Notifications
// are coalescible, so dropping under backpressure loses nothing a re-read
// cannot recover.
const subscriberBuffer = 16

// Broker is an in-process publish/subscribe fanout keyed by topic.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan string]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan string]struct{})}
}

// Subscribe registers interest in the given topics. The returned channel
// receives the topic name on every publish; cancel unregisters and closes
// the channel.
func (b *Broker) Subscribe(topics ...string) (<-chan string, func()) {
	ch := make(chan string, subscriberBuffer)

	b.mu.Lock()
	for _, topic := range topics {
		set, ok := b.subs[topic]
		if !ok {
			set = make(map[chan string]struct{})
			b.subs[topic] = set
		}
		set[ch] = struct{}{}
	}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			for _, topic := range topics {
				if set, ok := b.subs[topic]; ok {
					delete(set, ch)
					if len(set) == 0 {
						delete(b.subs, topic)
					}
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish notifies every subscriber of the topic. Slow subscribers whose
// buffer is full are skipped rather than blocked.
func (b *Broker) Publish(topic string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[topic] {
		select {
		case ch <- topic:
		default:
		}
	}
}
