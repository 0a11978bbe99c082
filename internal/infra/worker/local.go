// Package worker runs transcription requests out of band and reports progress
// as status messages, either in-process or over a websocket.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"whisper-web/internal/domain"
)

var errStopped = errors.New("worker stopped")

// Engine performs the recognition for one request. onUpdate may be called
// with partial transcripts before the final text is returned.
type Engine interface {
	Transcribe(ctx context.Context, req *domain.TranscriptionRequest, onUpdate func(text string)) (string, error)
}

// Local is an in-process worker: one goroutine consumes requests and emits
// their status messages in order.
type Local struct {
	engine Engine
	logger *slog.Logger

	inbox  chan *domain.TranscriptionRequest
	outbox chan domain.StatusMessage

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewLocal(engine Engine, logger *slog.Logger) *Local {
	ctx, cancel := context.WithCancel(context.Background())
	return &Local{
		engine: engine,
		logger: logger,
		inbox:  make(chan *domain.TranscriptionRequest, 4),
		outbox: make(chan domain.StatusMessage, 64),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start begins the worker's processing loop in its own goroutine.
func (l *Local) Start() {
	l.startOnce.Do(func() {
		go l.process()
	})
}

// Stop terminates the processing loop and closes the message stream.
func (l *Local) Stop() {
	l.stopOnce.Do(func() {
		l.cancel()
		l.Start() // so done is always closed
		<-l.done
		close(l.outbox)
	})
}

func (l *Local) Post(ctx context.Context, req *domain.TranscriptionRequest) error {
	if l.ctx.Err() != nil {
		return errStopped
	}

	select {
	case l.inbox <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return errStopped
	}
}

func (l *Local) Messages() <-chan domain.StatusMessage {
	return l.outbox
}

func (l *Local) process() {
	defer close(l.done)

	for {
		select {
		case <-l.ctx.Done():
			l.logger.Debug("local worker shutting down")
			return
		case req := <-l.inbox:
			l.run(req)
		}
	}
}

func (l *Local) run(req *domain.TranscriptionRequest) {
	l.emit(domain.StatusMessage{Status: domain.StatusInitiate, Data: domain.Payload{Name: req.Model}})
	l.emit(domain.StatusMessage{Status: domain.StatusReady})

	text, err := l.engine.Transcribe(l.ctx, req, func(partial string) {
		l.emit(domain.UpdateMessage(partial))
	})
	if err != nil {
		l.logger.Error("transcription failed", "request_id", req.ID, "error", err)
		l.emit(domain.ErrorMessage(err.Error()))
		return
	}

	l.emit(domain.CompleteMessage(text))
}

func (l *Local) emit(msg domain.StatusMessage) {
	select {
	case l.outbox <- msg:
	case <-l.ctx.Done():
	}
}
