// internal/worker/messageport.go

package worker

import (
	"errors"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrPortClosed is returned when posting through a closed message port.
var ErrPortClosed = errors.New("worker: message port is closed")

// MessagePort is one end of an entangled pair. Values posted on one end
// are serialized to JSON, which doubles as the structured clone: the
// receiver always sees an independent copy, never shared state.
//
// Messages queue until a handler is attached, mirroring port semantics
// where delivery starts only once onmessage is wired up.
type MessagePort struct {
	mu          sync.Mutex
	peer        *MessagePort
	queue       [][]byte
	handler     func(data []byte)
	started     bool
	closed      bool
	dispatching bool
}

// NewMessageChannel returns two entangled ports.
func NewMessageChannel() (*MessagePort, *MessagePort) {
	p1 := &MessagePort{}
	p2 := &MessagePort{}
	p1.peer = p2
	p2.peer = p1
	return p1, p2
}

// Post serializes v and delivers it to the peer port.
func (p *MessagePort) Post(v any) error {
	raw, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("worker: message is not serializable: %w", err)
	}
	return p.PostRaw(raw)
}

// PostRaw delivers an already-serialized message to the peer port. The
// bytes are copied before queuing.
func (p *MessagePort) PostRaw(raw []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPortClosed
	}
	peer := p.peer
	p.mu.Unlock()

	peer.deliver(append([]byte(nil), raw...))
	return nil
}

// OnMessage attaches the receive handler and starts delivery, draining
// anything queued so far. The handler runs on the sender's goroutine and
// must not block; callers that need a specific goroutine reschedule
// inside the handler.
func (p *MessagePort) OnMessage(fn func(data []byte)) {
	p.mu.Lock()
	p.handler = fn
	p.started = fn != nil
	p.mu.Unlock()
	p.dispatchQueued()
}

// Start begins delivery without replacing the handler.
func (p *MessagePort) Start() {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()
	p.dispatchQueued()
}

// Close shuts this end down. Queued messages are dropped and the peer's
// future posts fail with ErrPortClosed.
func (p *MessagePort) Close() {
	p.mu.Lock()
	p.closed = true
	p.handler = nil
	p.queue = nil
	peer := p.peer
	p.mu.Unlock()

	if peer != nil {
		peer.markPeerClosed()
	}
}

func (p *MessagePort) markPeerClosed() {
	p.mu.Lock()
	p.closed = true
	p.handler = nil
	p.queue = nil
	p.mu.Unlock()
}

func (p *MessagePort) deliver(raw []byte) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, raw)
	p.mu.Unlock()
	p.dispatchQueued()
}

// dispatchQueued pops messages one at a time so handlers observe FIFO
// order even when posts race. The dispatching flag keeps a single
// goroutine draining; handlers run without the port lock held.
func (p *MessagePort) dispatchQueued() {
	for {
		p.mu.Lock()
		if p.dispatching || p.closed || !p.started || p.handler == nil || len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		raw := p.queue[0]
		p.queue = p.queue[1:]
		handler := p.handler
		p.dispatching = true
		p.mu.Unlock()

		handler(raw)

		p.mu.Lock()
		p.dispatching = false
		p.mu.Unlock()
	}
}
