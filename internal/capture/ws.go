package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const recognitionLocale = "en-US"

// WSRecognizer streams recognition events from a websocket speech service.
// The service owns the microphone; this client opens a continuous session
// with interim results enabled and relays events until the stream ends.
type WSRecognizer struct {
	endpoint string
	logger   *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	closeOnce sync.Once
	closeChan chan struct{}
}

// NewWSRecognizer builds a recognizer client for the given websocket
// endpoint.
func NewWSRecognizer(endpoint string, logger *zap.Logger) *WSRecognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSRecognizer{
		endpoint:  endpoint,
		logger:    logger,
		closeChan: make(chan struct{}),
	}
}

// WSFactory returns a Factory producing fresh websocket recognizers, or nil
// when no endpoint is configured so the adapter reports the capability as
// unsupported.
func WSFactory(endpoint string, logger *zap.Logger) Factory {
	if endpoint == "" {
		return nil
	}
	return func() (Recognizer, error) {
		return NewWSRecognizer(endpoint, logger), nil
	}
}

type startRequest struct {
	Command    string `json:"command"`
	Locale     string `json:"locale"`
	Continuous bool   `json:"continuous"`
	Interim    bool   `json:"interim_results"`
}

type recognitionEvent struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Error   string `json:"error,omitempty"`
}

// Start dials the service and begins relaying recognition events. The
// returned channel is closed when the stream terminates.
func (r *WSRecognizer) Start(ctx context.Context) (<-chan Result, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.endpoint, nil)
	if err != nil {
		return nil, NewError(ErrNetwork, fmt.Errorf("connect recognition service: %w", err))
	}

	start := startRequest{
		Command:    "start",
		Locale:     recognitionLocale,
		Continuous: true,
		Interim:    true,
	}
	if err := conn.WriteJSON(start); err != nil {
		conn.Close()
		return nil, NewError(ErrNetwork, fmt.Errorf("send start request: %w", err))
	}

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	results := make(chan Result, 16)
	go r.receiveLoop(conn, results)

	return results, nil
}

// Stop requests termination and closes the connection, releasing the
// service-side microphone binding.
func (r *WSRecognizer) Stop() error {
	r.closeOnce.Do(func() {
		close(r.closeChan)

		r.mu.Lock()
		conn := r.conn
		r.conn = nil
		r.mu.Unlock()

		if conn == nil {
			return
		}
		if err := conn.WriteJSON(map[string]string{"command": "stop"}); err != nil {
			r.logger.Debug("sending stop command", zap.Error(err))
		}
		conn.Close()
	})
	return nil
}

func (r *WSRecognizer) receiveLoop(conn *websocket.Conn, results chan<- Result) {
	defer close(results)

	for {
		select {
		case <-r.closeChan:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-r.closeChan:
				// Requested stop; a closed channel is enough signal.
			default:
				if terminatedCleanly(err) {
					return
				}
				results <- Result{Err: classifyTransport(err)}
			}
			return
		}

		var event recognitionEvent
		if err := json.Unmarshal(data, &event); err != nil {
			r.logger.Debug("discarding malformed recognition event", zap.Error(err))
			continue
		}

		if event.Error != "" {
			results <- Result{Err: classifyServiceError(event.Error)}
			return
		}

		results <- Result{Text: event.Text, Final: event.IsFinal}
	}
}

// terminatedCleanly reports a normal close, which models the platform
// silently ending a long-running session.
func terminatedCleanly(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func classifyTransport(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || websocket.IsUnexpectedCloseError(err) {
		return NewError(ErrNetwork, err)
	}
	return NewError(ErrUnknown, err)
}

// classifyServiceError maps service error codes onto the capture taxonomy.
func classifyServiceError(code string) error {
	err := fmt.Errorf("recognition service: %s", code)
	switch code {
	case "network":
		return NewError(ErrNetwork, err)
	case "not-allowed", "permission-denied":
		return NewError(ErrPermissionDenied, err)
	case "service-not-available", "unsupported":
		return NewError(ErrUnsupported, err)
	default:
		return NewError(ErrUnknown, err)
	}
}
