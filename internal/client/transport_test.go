package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const waitTimeout = 5 * time.Second

type errEvent struct {
	err      error
	terminal bool
}

// recorder turns subscription callbacks into channels tests can wait on.
type recorder struct {
	opened   chan struct{}
	messages chan string
	errs     chan errEvent
}

func newRecorder() *recorder {
	return &recorder{
		opened:   make(chan struct{}, 8),
		messages: make(chan string, 64),
		errs:     make(chan errEvent, 8),
	}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnOpen:    func() { r.opened <- struct{}{} },
		OnMessage: func(data string) { r.messages <- data },
		OnError:   func(err error, terminal bool) { r.errs <- errEvent{err, terminal} },
	}
}

func (r *recorder) waitOpen(t *testing.T) {
	t.Helper()
	select {
	case <-r.opened:
	case ev := <-r.errs:
		t.Fatalf("got error %v (terminal=%v) before open", ev.err, ev.terminal)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for open")
	}
}

func (r *recorder) waitMessage(t *testing.T) string {
	t.Helper()
	select {
	case m := <-r.messages:
		return m
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for message")
		return ""
	}
}

func (r *recorder) waitError(t *testing.T) errEvent {
	t.Helper()
	select {
	case ev := <-r.errs:
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for error")
		return errEvent{}
	}
}

func sseHandler(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
			flusher.Flush()
		}
		<-r.Context().Done()
	}
}

func TestSSEDeliversFrames(t *testing.T) {
	srv := httptest.NewServer(sseHandler(`{"id":1,"message":"a"}`, `{"id":2,"message":"b"}`))
	defer srv.Close()

	rec := newRecorder()
	tr := New(Options{})
	sub, err := tr.Open(srv.URL+"/stream_message", rec.handlers())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sub.Close()

	rec.waitOpen(t)
	if got := rec.waitMessage(t); got != `{"id":1,"message":"a"}` {
		t.Errorf("first frame = %q", got)
	}
	if got := rec.waitMessage(t); got != `{"id":2,"message":"b"}` {
		t.Errorf("second frame = %q", got)
	}
}

func TestSSERejectedResponseIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := newRecorder()
	sub, err := New(Options{Retries: 0}).Open(srv.URL, rec.handlers())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sub.Close()

	ev := rec.waitError(t)
	if !ev.terminal {
		t.Errorf("error %v should be terminal with retries disabled", ev.err)
	}
	select {
	case <-rec.opened:
		t.Error("open must not be signalled for a rejected response")
	default:
	}
}

func TestSSEServerDropIsRetriedFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"id\":1}\n\n")
		w.(http.Flusher).Flush()
	}))
	defer srv.Close()

	rec := newRecorder()
	sub, err := New(Options{Retries: 3, RetryInitial: 10 * time.Millisecond, RetryMax: 20 * time.Millisecond}).
		Open(srv.URL, rec.handlers())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sub.Close()

	rec.waitOpen(t)
	ev := rec.waitError(t)
	if ev.terminal {
		t.Errorf("first drop should be handled by the transport's own retry, got terminal %v", ev.err)
	}
}

func TestSSECloseSuppressesCallbacks(t *testing.T) {
	srv := httptest.NewServer(sseHandler())
	defer srv.Close()

	rec := newRecorder()
	sub, err := New(Options{}).Open(srv.URL, rec.handlers())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec.waitOpen(t)

	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	select {
	case ev := <-rec.errs:
		t.Errorf("no error expected after Close, got %v (terminal=%v)", ev.err, ev.terminal)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebSocketDeliversTextFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"id":1}`))
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x1})
		conn.WriteMessage(websocket.TextMessage, []byte(`{"id":2}`))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	rec := newRecorder()
	sub, err := New(Options{}).Open(wsURL, rec.handlers())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sub.Close()

	rec.waitOpen(t)
	if got := rec.waitMessage(t); got != `{"id":1}` {
		t.Errorf("first frame = %q", got)
	}
	if got := rec.waitMessage(t); got != `{"id":2}` {
		t.Errorf("second frame = %q (binary frames must be skipped)", got)
	}
	if ev := rec.waitError(t); !ev.terminal {
		t.Errorf("websocket close should be terminal, got %v", ev.err)
	}
}

func TestWebSocketDialFailureIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	rec := newRecorder()
	sub, err := New(Options{}).Open(wsURL, rec.handlers())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sub.Close()

	if ev := rec.waitError(t); !ev.terminal {
		t.Errorf("dial failure should be terminal, got %v", ev.err)
	}
}

type fakeTransport struct{ opened []string }

func (f *fakeTransport) Open(rawURL string, _ Handlers) (Subscription, error) {
	f.opened = append(f.opened, rawURL)
	return &subscription{cancel: func() {}}, nil
}

func TestAutoRoutesByScheme(t *testing.T) {
	sseT, wsT := &fakeTransport{}, &fakeTransport{}
	auto := Auto{SSE: sseT, WebSocket: wsT}

	for _, u := range []string{"http://h/a", "https://h/b"} {
		if _, err := auto.Open(u, Handlers{}); err != nil {
			t.Fatalf("Open(%q): %v", u, err)
		}
	}
	for _, u := range []string{"ws://h/a", "wss://h/b"} {
		if _, err := auto.Open(u, Handlers{}); err != nil {
			t.Fatalf("Open(%q): %v", u, err)
		}
	}
	if len(sseT.opened) != 2 || len(wsT.opened) != 2 {
		t.Errorf("sse opened %v, ws opened %v", sseT.opened, wsT.opened)
	}
}

func TestOpenConstructionErrors(t *testing.T) {
	tests := []struct {
		url  string
		want error
	}{
		{"ftp://host/stream", ErrUnsupportedScheme},
		{"://missing-scheme", ErrInvalidURL},
		{"http://", ErrInvalidURL},
		{"stream_message", ErrInvalidURL},
	}
	auto := New(Options{})
	for _, tt := range tests {
		_, err := auto.Open(tt.url, Handlers{})
		if !errors.Is(err, tt.want) {
			t.Errorf("Open(%q) error = %v, want %v", tt.url, err, tt.want)
		}
	}

	if _, err := (&SSE{}).Open("ws://host/ws", Handlers{}); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("SSE.Open(ws://) error = %v, want ErrUnsupportedScheme", err)
	}
	if _, err := (&WebSocket{}).Open("http://host/", Handlers{}); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("WebSocket.Open(http://) error = %v, want ErrUnsupportedScheme", err)
	}
}
