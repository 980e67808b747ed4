package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// subscriberBuffer is the number of events a slow SSE client may lag behind.
const subscriberBuffer = 64

// LogEvent is one log line pushed to SSE clients.
type LogEvent struct {
	Time  string `json:"t"`
	Level string `json:"l,omitempty"`
	Msg   string `json:"msg"`
}

// LogBroadcaster fans actuator log lines out to SSE clients.
type LogBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	now     func() time.Time
}

// NewLogBroadcaster creates a broadcaster with no subscribers.
func NewLogBroadcaster() *LogBroadcaster {
	return &LogBroadcaster{
		clients: make(map[chan string]struct{}),
		now:     time.Now,
	}
}

// Subscribe returns a channel of JSON-encoded events and a cleanup function
// to call when the client goes away.
func (b *LogBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, subscriberBuffer)
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

// Clients returns the number of live subscribers.
func (b *LogBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends an event to every subscriber. A subscriber whose buffer
// is full misses the event.
func (b *LogBroadcaster) Broadcast(level, msg string) {
	data, err := json.Marshal(LogEvent{
		Time:  b.now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	})
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
		}
	}
}

// Writer returns an io.Writer that broadcasts every non-blank write. Pass it
// to debug.SetOutput (usually through io.MultiWriter) to stream the log.
func (b *LogBroadcaster) Writer() *LogWriter {
	return &LogWriter{b: b}
}

// LogWriter adapts a LogBroadcaster to io.Writer.
type LogWriter struct {
	b *LogBroadcaster
}

// levelTags maps the tags of the debug package to event levels.
var levelTags = []struct{ tag, level string }{
	{"[ERROR]", "error"},
	{"[WARN]", "warn"},
	{"[LIVE]", "live"},
	{"[VERBOSE]", "verbose"},
	{"[TRACE]", "trace"},
	{"[GPIO]", "trace"},
}

func (w *LogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.Broadcast(levelOf(msg), msg)
	}
	return len(p), nil
}

func levelOf(msg string) string {
	for _, t := range levelTags {
		if strings.Contains(msg, t.tag) {
			return t.level
		}
	}
	return "info"
}
