package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/easy-apply-agent/internal/types"
)

// DefaultSubscriberBuffer is the per-observer event buffer. Events that do not
// fit are dropped for that observer.
const DefaultSubscriberBuffer = 64

// Handle is the registry entry of one active run. It is the run's status sink
// and fans each event out to the current observers without blocking.
type Handle struct {
	ID        uuid.UUID
	Caller    string
	StartedAt time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu       sync.Mutex
	subs     map[int]chan types.StatusEvent
	nextSub  int
	closed   bool
	terminal bool
	dropped  int

	result *types.RunResult
	err    error
}

func newHandle(caller string, now time.Time) *Handle {
	return &Handle{
		ID:        uuid.New(),
		Caller:    caller,
		StartedAt: now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		subs:      make(map[int]chan types.StatusEvent),
	}
}

// Stop asks the run to finish after its current job. It is idempotent.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Stopping reports whether Stop has been called.
func (h *Handle) Stopping() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

// Done is closed once the run has finished and the entry has been torn down.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// outcome returns the run's result. It is only meaningful after Done is closed.
func (h *Handle) outcome() (*types.RunResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err
}

// Dropped returns the number of events discarded because an observer was full.
func (h *Handle) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Subscribe registers an observer. The channel is closed when the run is torn
// down; cancel detaches the observer early.
func (h *Handle) Subscribe(buffer int) (<-chan types.StatusEvent, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan types.StatusEvent, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Emit delivers ev to every observer that has room. Events after the terminal
// event are ignored.
func (h *Handle) Emit(ev types.StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.terminal {
		return
	}
	if ev.Terminal() {
		h.terminal = true
	}
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped++
		}
	}
}

func (h *Handle) sawTerminal() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminal
}

// finish records the outcome and closes every observer.
func (h *Handle) finish(result *types.RunResult, err error) {
	h.mu.Lock()
	h.result, h.err = result, err
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
	close(h.done)
}
