package capture

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// recognitionServer is a minimal websocket speech service for tests: it
// records the start request and plays back a scripted list of events.
type recognitionServer struct {
	events []recognitionEvent

	mu    sync.Mutex
	start startRequest
}

func (s *recognitionServer) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var start startRequest
		if err := conn.ReadJSON(&start); err != nil {
			t.Errorf("read start request: %v", err)
			return
		}
		s.mu.Lock()
		s.start = start
		s.mu.Unlock()

		for _, event := range s.events {
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}

		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func (s *recognitionServer) startRequest() startRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start
}

func wsEndpoint(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func collectResults(t *testing.T, results <-chan Result) []Result {
	t.Helper()

	var out []Result
	timeout := time.After(2 * time.Second)
	for {
		select {
		case res, ok := <-results:
			if !ok {
				return out
			}
			out = append(out, res)
		case <-timeout:
			t.Fatalf("timed out waiting for results, got %d so far", len(out))
		}
	}
}

func TestWSRecognizerRelaysEvents(t *testing.T) {
	server := &recognitionServer{events: []recognitionEvent{
		{Text: "tell me", IsFinal: false},
		{Text: "tell me about yourself", IsFinal: true},
	}}
	srv := httptest.NewServer(server.handler(t))
	defer srv.Close()

	rec := NewWSRecognizer(wsEndpoint(srv), zap.NewNop())
	results, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rec.Stop()

	got := collectResults(t, results)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(got), got)
	}

	if got[0].Final || got[0].Text != "tell me" {
		t.Fatalf("unexpected interim result: %+v", got[0])
	}
	if !got[1].Final || got[1].Text != "tell me about yourself" {
		t.Fatalf("unexpected final result: %+v", got[1])
	}

	start := server.startRequest()
	if start.Command != "start" || !start.Continuous || !start.Interim {
		t.Fatalf("unexpected start request: %+v", start)
	}
	if start.Locale != recognitionLocale {
		t.Fatalf("unexpected locale: %q", start.Locale)
	}
}

func TestWSRecognizerClassifiesServiceErrors(t *testing.T) {
	server := &recognitionServer{events: []recognitionEvent{
		{Error: "not-allowed"},
	}}
	srv := httptest.NewServer(server.handler(t))
	defer srv.Close()

	rec := NewWSRecognizer(wsEndpoint(srv), zap.NewNop())
	results, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rec.Stop()

	got := collectResults(t, results)
	if len(got) != 1 || got[0].Err == nil {
		t.Fatalf("expected a single error result, got %+v", got)
	}

	if kind := KindOf(got[0].Err); kind != ErrPermissionDenied {
		t.Fatalf("expected permission denied, got %v", kind)
	}
}

func TestWSRecognizerDialFailureIsNetworkError(t *testing.T) {
	rec := NewWSRecognizer("ws://127.0.0.1:1/does-not-exist", zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := rec.Start(ctx)
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if kind := KindOf(err); kind != ErrNetwork {
		t.Fatalf("expected network error, got %v", kind)
	}
}

func TestWSRecognizerStopIsIdempotent(t *testing.T) {
	server := &recognitionServer{}
	srv := httptest.NewServer(server.handler(t))
	defer srv.Close()

	rec := NewWSRecognizer(wsEndpoint(srv), zap.NewNop())
	if _, err := rec.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := rec.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestWSFactoryWithoutEndpoint(t *testing.T) {
	if factory := WSFactory("", zap.NewNop()); factory != nil {
		t.Fatalf("expected nil factory without an endpoint")
	}
	if factory := WSFactory("ws://localhost:9000/asr", zap.NewNop()); factory == nil {
		t.Fatalf("expected a factory with an endpoint")
	}
}

func TestWSRecognizerHandlesMalformedEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var start startRequest
		conn.ReadJSON(&start)

		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		data, _ := json.Marshal(recognitionEvent{Text: "ok", IsFinal: true})
		conn.WriteMessage(websocket.TextMessage, data)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rec := NewWSRecognizer(wsEndpoint(srv), zap.NewNop())
	results, err := rec.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rec.Stop()

	got := collectResults(t, results)
	if len(got) != 1 || got[0].Text != "ok" || !got[0].Final {
		t.Fatalf("expected the malformed event to be skipped, got %+v", got)
	}
}
