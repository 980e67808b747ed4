package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/CubeGo/internal/logic/motion"
)

type fakeSource struct {
	stats motion.Stats
}

func (f *fakeSource) Stats() motion.Stats { return f.stats }

func (f *fakeSource) Motors() []motion.Motor {
	var motors []motion.Motor
	for i, face := range "URFDLB" {
		motors = append(motors, motion.Motor{Index: i, Face: string(face)})
	}
	return motors
}

func (f *fakeSource) PulsesPerBaseTurn() int { return 400 }

func newTestHandlers() (*Handlers, *fakeSource) {
	src := &fakeSource{stats: motion.Stats{Commands: 3, Pulses: 2400, LastCommand: "M2_CW_2"}}
	return NewHandlers(NewLogBroadcaster(), src), src
}

func TestHandleStatus(t *testing.T) {
	h, _ := newTestHandlers()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()

	h.HandleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var st Status
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(st.Motors) != 6 || st.Motors[5].Face != "B" {
		t.Errorf("motors = %+v", st.Motors)
	}
	if st.PulsesPerBaseTurn != 400 {
		t.Errorf("pulses_per_base_turn = %d", st.PulsesPerBaseTurn)
	}
	if st.Stats.Commands != 3 || st.Stats.LastCommand != "M2_CW_2" {
		t.Errorf("stats = %+v", st.Stats)
	}
}

func TestHandleStatus_ReportsLastError(t *testing.T) {
	h, src := newTestHandlers()
	src.stats.Errors = 1
	src.stats.LastError = "motion: unknown motor: 7 (have 6)"

	w := httptest.NewRecorder()
	h.HandleStatus(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	if !strings.Contains(w.Body.String(), `"last_error":"motion: unknown motor: 7 (have 6)"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHandleHealthz(t *testing.T) {
	h, _ := newTestHandlers()
	w := httptest.NewRecorder()
	h.HandleHealthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("healthz = %d %q", w.Code, w.Body.String())
	}
}

func TestMux_Routes(t *testing.T) {
	srv := NewServer("127.0.0.1:0", NewLogBroadcaster(), &fakeSource{})
	mux := srv.Mux()

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/status", http.StatusOK},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodPost, "/status", http.StatusMethodNotAllowed},
		{http.MethodGet, "/run", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestStatusStream_DeliversLogLines(t *testing.T) {
	b := NewLogBroadcaster()
	srv := NewServer("", b, &fakeSource{})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/status/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	first, err := r.ReadString('\n')
	if err != nil || first != ": connected\n" {
		t.Fatalf("first line = %q, %v", first, err)
	}

	// The subscription is registered before ": connected" is flushed.
	b.Writer().Write([]byte("[CubeGo] [LIVE] M0_CW_2 -> DONE\n"))

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var evt LogEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &evt); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if evt.Level != "live" || !strings.Contains(evt.Msg, "M0_CW_2") {
			t.Errorf("event = %+v", evt)
		}
		return
	}
}

func TestServer_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(ln.Addr().String(), NewLogBroadcaster(), &fakeSource{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
