package logbus

import (
	"sync"
	"sync/atomic"
	"time"
)

type Message struct {
	Type string `json:"type"`
	Time int64  `json:"time"`
	Data any    `json:"data"`
}

type LogData struct {
	Level  string         `json:"level"`
	Msg    string         `json:"msg"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Sink receives every published message synchronously, in publish order.
type Sink func(Message)

// Bus keeps the last N messages and fans each new one out to channel
// subscribers (best effort, a full channel skips the message) and to sinks
// (never skipped).
type Bus struct {
	mu      sync.RWMutex
	ring    []Message
	size    int
	subs    map[chan Message]struct{}
	sinks   []Sink
	stopped bool

	// sinkMu keeps sink output in publish order across goroutines.
	sinkMu  sync.Mutex
	dropped atomic.Int64
	now     func() time.Time
}

func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 200
	}
	return &Bus{
		ring: make([]Message, 0, capacity),
		size: capacity,
		subs: make(map[chan Message]struct{}),
		now:  time.Now,
	}
}

// Close ends every subscription. Publishing afterwards is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs, b.ring, b.sinks = nil, nil, nil
}

func (b *Bus) AddSink(s Sink) {
	if s == nil {
		return
	}
	b.mu.Lock()
	if !b.stopped {
		b.sinks = append(b.sinks, s)
	}
	b.mu.Unlock()
}

// Snapshot copies the backlog, oldest first.
func (b *Bus) Snapshot() []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Message(nil), b.ring...)
}

// Dropped counts messages a slow subscriber did not receive.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Subscribe returns a live channel and its cancel func. The channel is
// closed by cancel or by Close.
func (b *Bus) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Message, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

func (b *Bus) Publish(typ string, data any) {
	msg := Message{Type: typ, Time: b.now().UnixMilli(), Data: data}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.appendLocked(msg)
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
	sinks := b.sinks
	b.mu.Unlock()

	if len(sinks) == 0 {
		return
	}
	b.sinkMu.Lock()
	defer b.sinkMu.Unlock()
	for _, s := range sinks {
		s(msg)
	}
}

func (b *Bus) appendLocked(msg Message) {
	if len(b.ring) == b.size {
		copy(b.ring, b.ring[1:])
		b.ring = b.ring[:b.size-1]
	}
	b.ring = append(b.ring, msg)
}

func (b *Bus) Log(level, message string, fields map[string]any) {
	b.Publish("log", LogData{Level: level, Msg: message, Fields: fields})
}
