package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cjeanneret/CubeGo/internal/logic/motion"
)

// heartbeatInterval keeps idle SSE connections open through proxies.
const heartbeatInterval = 30 * time.Second

// StatusSource exposes what the motion controller has done.
// *motion.Controller implements it.
type StatusSource interface {
	Stats() motion.Stats
	Motors() []motion.Motor
	PulsesPerBaseTurn() int
}

// MotorStatus describes one motor of the arena.
type MotorStatus struct {
	Index int    `json:"index"`
	Face  string `json:"face"`
}

// Status is the body of GET /status.
type Status struct {
	Motors            []MotorStatus `json:"motors"`
	PulsesPerBaseTurn int           `json:"pulses_per_base_turn"`
	Stats             motion.Stats  `json:"stats"`
	UptimeSeconds     int64         `json:"uptime_s"`
	LogClients        int           `json:"log_clients"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *LogBroadcaster
	Source      StatusSource
	started     time.Time
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(broadcaster *LogBroadcaster, source StatusSource) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Source:      source,
		started:     time.Now(),
	}
}

// HandleStatus handles GET /status.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	motors := h.Source.Motors()
	st := Status{
		Motors:            make([]MotorStatus, 0, len(motors)),
		PulsesPerBaseTurn: h.Source.PulsesPerBaseTurn(),
		Stats:             h.Source.Stats(),
		UptimeSeconds:     int64(time.Since(h.started).Seconds()),
		LogClients:        h.Broadcaster.Clients(),
	}
	for _, m := range motors {
		st.Motors = append(st.Motors, MotorStatus{Index: m.Index, Face: m.Face})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

// HandleHealthz handles GET /healthz.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
