package events

import (
	"fmt"
	"reflect"
	"sync"
)

// Handler consumes one event. A non-nil error is turned into a
// synthesized error event by the bus; it is never surfaced to the
// publisher.
type Handler func(Event) error

type subscription struct {
	id uint64
	fn Handler
}

// Bus is an in-process pub/sub broker. Publishers enqueue onto an
// unbounded FIFO queue; a single dispatch loop pulls events in publish
// order and fans each one out to its subscribers concurrently.
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType][]subscription
	global []subscription
	nextID uint64

	qmu   sync.Mutex
	queue []Event

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	runMu   sync.Mutex
	running bool
}

// NewBus creates an event bus. Call Start before publishing anything
// you expect to be delivered.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[EventType][]subscription),
		wake: make(chan struct{}, 1),
	}
}

// Subscribe registers a handler for one event type and returns an
// unsubscribe function. Handlers are invoked in registration order
// relative to the fan-out; duplicates are allowed.
func (b *Bus) Subscribe(t EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscription{id: id, fn: h})
	return func() { b.removeByID(t, id) }
}

// SubscribeAll registers a handler that receives every event type and
// returns an unsubscribe function.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.global = append(b.global, subscription{id: id, fn: h})
	return func() { b.removeGlobalByID(id) }
}

// Unsubscribe removes the first registration of h for t, matching by
// function identity. Closures created from the same literal share one
// identity; when that matters, use the function returned by Subscribe
// instead. Removing a handler that was never registered is a no-op.
func (b *Bus) Unsubscribe(t EventType, h Handler) {
	ptr := reflect.ValueOf(h).Pointer()
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[t]
	for i, cur := range list {
		if reflect.ValueOf(cur.fn).Pointer() == ptr {
			b.subs[t] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (b *Bus) removeByID(t EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[t]
	for i, cur := range list {
		if cur.id == id {
			b.subs[t] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (b *Bus) removeGlobalByID(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.global {
		if cur.id == id {
			b.global = append(b.global[:i:i], b.global[i+1:]...)
			return
		}
	}
}

// Publish enqueues an event for dispatch. The queue is unbounded, so
// this never blocks on capacity and never rejects.
func (b *Bus) Publish(e Event) {
	b.enqueue(e)
}

// PublishNowait is Publish for call sites that must not suspend. With
// an unbounded queue the two are equivalent; the name documents the
// caller's requirement.
func (b *Bus) PublishNowait(e Event) {
	b.enqueue(e)
}

func (b *Bus) enqueue(e Event) {
	b.qmu.Lock()
	b.queue = append(b.queue, e)
	b.qmu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bus) next() (Event, bool) {
	b.qmu.Lock()
	defer b.qmu.Unlock()
	if len(b.queue) == 0 {
		return Event{}, false
	}
	e := b.queue[0]
	b.queue = b.queue[1:]
	return e, true
}

// PendingEvents reports the queue depth. Advisory only: it can race
// with concurrent publishes and the dispatch loop.
func (b *Bus) PendingEvents() int {
	b.qmu.Lock()
	defer b.qmu.Unlock()
	return len(b.queue)
}

// Start launches the dispatch loop. Starting an already-running bus is
// a no-op.
func (b *Bus) Start() {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.running {
		return
	}
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	b.running = true
	go b.loop()
}

// Stop signals the dispatch loop and waits for it to exit. Events
// still queued at that point are dropped, not drained.
func (b *Bus) Stop() {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if !b.running {
		return
	}
	close(b.stop)
	<-b.done
	b.running = false
}

func (b *Bus) loop() {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case <-b.wake:
			for {
				select {
				case <-b.stop:
					return
				default:
				}
				e, ok := b.next()
				if !ok {
					break
				}
				b.dispatch(e)
			}
		}
	}
}

// dispatch fans one event out to its type-specific handlers followed by
// the global handlers. All handlers run concurrently; each outcome is
// collected independently so one failure cannot cancel or block its
// siblings.
func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.Type])+len(b.global))
	for _, s := range b.subs[e.Type] {
		handlers = append(handlers, s.fn)
	}
	for _, s := range b.global {
		handlers = append(handlers, s.fn)
	}
	b.mu.RUnlock()
	if len(handlers) == 0 {
		return
	}

	errs := make([]error, len(handlers))
	var wg sync.WaitGroup
	for i, h := range handlers {
		wg.Add(1)
		go func(i int, h Handler) {
			defer wg.Done()
			errs[i] = invoke(h, e)
		}(i, h)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			b.deliverError(e, err)
		}
	}
}

// invoke runs a handler, converting a panic into an ordinary error so
// a misbehaving subscriber cannot take down the dispatch loop.
func invoke(h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(e)
}

// deliverError synthesizes one error event for a failed handler and
// delivers it synchronously, within the same dispatch step, to handlers
// subscribed to TypeError only. Global subscribers do not see these
// events. A failure inside an error handler is discarded, which bounds
// error amplification to a single hop.
func (b *Bus) deliverError(original Event, cause error) {
	errEvent := New(TypeError, "event_bus", map[string]any{
		"original_event_type": string(original.Type),
		"error_kind":          fmt.Sprintf("%T", cause),
		"error_message":       cause.Error(),
	})

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[TypeError]))
	for _, s := range b.subs[TypeError] {
		handlers = append(handlers, s.fn)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		_ = invoke(h, errEvent)
	}
}
