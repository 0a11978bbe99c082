package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"whisper-web/internal/domain"
	"whisper-web/internal/infra"
)

const connectionLostMessage = "worker connection lost"

// Remote talks to a worker process over a websocket. Requests are written as
// JSON text frames; every inbound text frame is one {status, data} message.
type Remote struct {
	endpoint string
	dialer   *websocket.Dialer
	retry    infra.RetryConfig
	logger   *slog.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	outbox    chan domain.StatusMessage
	closeOnce sync.Once
	closing   chan struct{}
}

func NewRemote(endpoint string, logger *slog.Logger) *Remote {
	return &Remote{
		endpoint: endpoint,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			WriteBufferSize:  64 * 1024,
		},
		retry:   infra.DefaultRetryConfig(),
		logger:  logger,
		outbox:  make(chan domain.StatusMessage, 64),
		closing: make(chan struct{}),
	}
}

// Connect dials the worker, retrying transient failures, and starts reading
// its messages.
func (r *Remote) Connect(ctx context.Context) error {
	cfg := r.retry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		r.logger.Warn("worker dial failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	}

	var conn *websocket.Conn
	err := infra.WithRetry(ctx, cfg, func() error {
		c, resp, err := r.dialer.DialContext(ctx, r.endpoint, nil)
		if err != nil {
			if resp != nil && !infra.IsRetryableHTTPStatus(resp.StatusCode) {
				return &infra.Permanent{Err: fmt.Errorf("handshake status %d: %w", resp.StatusCode, err)}
			}
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return fmt.Errorf("connecting to worker %s: %w", r.endpoint, err)
	}

	r.writeMu.Lock()
	r.conn = conn
	r.writeMu.Unlock()

	r.logger.Info("connected to worker", "endpoint", r.endpoint)
	go r.readLoop(conn)
	return nil
}

func (r *Remote) Post(ctx context.Context, req *domain.TranscriptionRequest) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.conn == nil {
		return errors.New("worker not connected")
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	r.conn.SetWriteDeadline(deadline)

	if err := r.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}
	return nil
}

func (r *Remote) Messages() <-chan domain.StatusMessage {
	return r.outbox
}

// Close ends the session; the message stream is closed once the read loop exits.
func (r *Remote) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closing)

		r.writeMu.Lock()
		defer r.writeMu.Unlock()
		if r.conn == nil {
			close(r.outbox)
			return
		}
		r.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = r.conn.Close()
	})
	return err
}

func (r *Remote) readLoop(conn *websocket.Conn) {
	defer close(r.outbox)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-r.closing:
				return
			default:
			}
			r.logger.Error("worker connection lost", "error", err)
			select {
			case r.outbox <- domain.ErrorMessage(connectionLostMessage):
			case <-r.closing:
			}
			return
		}

		if msgType != websocket.TextMessage {
			r.logger.Warn("ignoring non-text worker frame", "type", msgType)
			continue
		}

		var msg domain.StatusMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			r.logger.Error("undecodable worker message", "error", err, "bytes", len(data))
			continue
		}

		select {
		case r.outbox <- msg:
		case <-r.closing:
			return
		}
	}
}
