package web

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// StatusEvent is one message on the SSE status stream. Position is set on
// events emitted after a stepper move.
type StatusEvent struct {
	Time     string `json:"t"`
	Level    string `json:"l,omitempty"`
	Msg      string `json:"msg"`
	Position *int   `json:"position,omitempty"`
}

// StatusBroadcaster distributes status messages to multiple SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Clients returns the number of subscribed clients.
func (b *StatusBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends a message to all subscribed clients.
// Slow clients may miss messages (non-blocking, buffered).
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.send(StatusEvent{Level: level, Msg: msg})
}

// BroadcastPosition announces the stepper position reached after a move.
func (b *StatusBroadcaster) BroadcastPosition(msg string, position int) {
	b.send(StatusEvent{Level: "info", Msg: msg, Position: &position})
}

func (b *StatusBroadcaster) send(evt StatusEvent) {
	evt.Time = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// Levels implements logrus.Hook; every level the debug logger emits is
// forwarded to the stream.
func (b *StatusBroadcaster) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (b *StatusBroadcaster) Fire(entry *logrus.Entry) error {
	b.Broadcast(entry.Level.String(), entry.Message)
	return nil
}
