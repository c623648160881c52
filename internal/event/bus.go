package event

import "sync"

// Bus fans events out to any number of independent subscribers. Publish
// never blocks: each subscriber owns an unbounded FIFO queue drained by its
// own pump goroutine, so a slow consumer accumulates memory instead of
// stalling the publisher. Event rates here are low; this trade-off is
// deliberate.
type Bus struct {
	mu   sync.Mutex
	subs []*Subscription
}

// NewBus creates an event bus. The bus is an explicit dependency: construct
// one at composition time and hand it to every component that needs it.
func NewBus() *Bus {
	return &Bus{}
}

// Publish delivers the event to all current subscribers in subscription
// order. A publish with no subscribers is a no-op.
func (b *Bus) Publish(ev AppEvent) {
	b.mu.Lock()
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.enqueue(ev)
	}
}

// Subscribe returns a new subscription receiving every event published
// after this call, in publish order, exactly once.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		out:  make(chan AppEvent),
		done: make(chan struct{}),
	}
	sub.cond = sync.NewCond(&sub.mu)
	sub.detach = func() { b.remove(sub) }

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go sub.pump()
	return sub
}

// remove detaches a closed subscription from the fan-out list.
func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Close closes every subscription. Undelivered events are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		sub.markClosed()
	}
}

// Subscription is one subscriber's ordered view of the event stream.
type Subscription struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []AppEvent
	closed bool

	out     chan AppEvent
	done    chan struct{}
	doneOne sync.Once
	detach  func()
}

// Events returns the channel delivering this subscription's events. The
// channel is closed once the subscription is closed.
func (s *Subscription) Events() <-chan AppEvent {
	return s.out
}

// Close detaches the subscription from the bus. Undelivered events are
// discarded and the Events channel is closed.
func (s *Subscription) Close() {
	s.detach()
	s.markClosed()
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.doneOne.Do(func() { close(s.done) })
	s.cond.Signal()
}

func (s *Subscription) enqueue(ev AppEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.cond.Signal()
}

// pump moves events from the unbounded queue to the out channel. Only the
// pump goroutine blocks on a slow consumer, never the publisher.
func (s *Subscription) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range batch {
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}
	}
}
