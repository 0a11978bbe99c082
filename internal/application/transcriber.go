package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"whisper-web/internal/domain"
	"whisper-web/internal/metrics"
	"whisper-web/internal/pcm"
)

const (
	missingSourceMessage = "Please select an audio file first!"
	completeMessage      = "Transcription complete!"
)

var errStreamClosed = errors.New("worker message stream closed")

// Transcriber owns the Idle/Busy state of the transcription UI. Submit runs
// acquisition, decoding and dispatch; Run relays worker messages to the view.
type Transcriber struct {
	source   AudioSource
	decoder  Decoder
	worker   Worker
	view     View
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	options  domain.RequestOptions

	mu        sync.Mutex
	busy      bool
	acquiring bool
	requestID string
	started   time.Time
	idle      chan struct{}
}

func NewTranscriber(
	source AudioSource,
	decoder Decoder,
	worker Worker,
	view View,
	notifier Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Transcriber {
	return &Transcriber{
		source:   source,
		decoder:  decoder,
		worker:   worker,
		view:     view,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		options:  domain.DefaultRequestOptions(),
	}
}

// Busy reports whether a request is outstanding.
func (t *Transcriber) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.busy
}

// Submit acquires, decodes and dispatches one transcription request and
// returns its ID. It returns domain.ErrBusy without side effects while another
// submission is outstanding.
func (t *Transcriber) Submit(ctx context.Context) (string, error) {
	if !t.claim() {
		t.metrics.RecordBusyRejection()
		return "", domain.ErrBusy
	}

	file, err := t.source.Acquire(ctx)
	if err == nil && file == nil {
		err = domain.Errorf(domain.KindMissingSource, "acquiring audio", "source %s returned no file", t.source.Name())
	}
	if err != nil {
		t.release()
		t.reportAcquireError(ctx, err)
		return "", fmt.Errorf("acquiring audio: %w", err)
	}

	t.logger.Info("acquired audio", "source", t.source.Name(), "name", file.Name, "bytes", len(file.Data))
	t.enterBusy()

	req, err := t.prepare(ctx, file)
	if err != nil {
		t.metrics.RecordFailure(domain.KindOf(err))
		t.notify(ctx, "Error decoding audio: "+err.Error())
		t.leaveBusy()
		return "", err
	}

	t.mu.Lock()
	t.requestID = req.ID
	t.started = time.Now()
	t.mu.Unlock()

	if err := t.worker.Post(ctx, req); err != nil {
		werr := domain.NewError(domain.KindWorker, "posting request", err)
		t.metrics.RecordFailure(domain.KindWorker)
		t.notify(ctx, werr.Error())
		t.leaveBusy()
		return "", werr
	}

	t.metrics.RecordSubmission()
	t.logger.Info("dispatched transcription request",
		"request_id", req.ID,
		"samples", len(req.Audio),
		"model", req.Model,
	)

	return req.ID, nil
}

// WaitIdle blocks until the outstanding submission, if any, has reached a
// terminal state.
func (t *Transcriber) WaitIdle(ctx context.Context) error {
	t.mu.Lock()
	idle := t.idle
	pending := t.busy || t.acquiring
	t.mu.Unlock()

	if !pending || idle == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-idle:
		return nil
	}
}

// Run relays worker status messages in arrival order until ctx is done or the
// worker closes its stream.
func (t *Transcriber) Run(ctx context.Context) error {
	messages := t.worker.Messages()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errStreamClosed
			}
			t.handle(ctx, msg)
		}
	}
}

func (t *Transcriber) handle(ctx context.Context, msg domain.StatusMessage) {
	t.metrics.RecordStatus(msg.Status)

	if msg.Status.Terminal() && !t.Busy() {
		t.logger.Warn("terminal status received while idle", "status", msg.Status)
		return
	}

	switch msg.Status {
	case domain.StatusUpdate:
		t.view.SetTranscript(msg.Data.Text)

	case domain.StatusComplete:
		t.view.SetTranscript(msg.Data.Text)
		t.logger.Info("transcription complete", "request_id", t.currentRequest(), "text", msg.Data.Text)
		t.notify(ctx, completeMessage)
		t.finish()

	case domain.StatusError:
		t.metrics.RecordFailure(domain.KindWorker)
		t.logger.Error("worker reported error", "request_id", t.currentRequest(), "message", msg.Data.Message)
		t.notify(ctx, msg.Data.Message)
		t.finish()

	case domain.StatusInitiate, domain.StatusProgress, domain.StatusDownload,
		domain.StatusDone, domain.StatusReady:
		t.logger.Debug("worker progress", "status", msg.Status, "file", msg.Data.File, "progress", msg.Data.Progress)

	default:
		t.metrics.RecordFailure(domain.KindProtocol)
		t.logger.Error("unknown message status", "status", msg.Status)
	}
}

func (t *Transcriber) prepare(ctx context.Context, file *domain.AudioFile) (*domain.TranscriptionRequest, error) {
	start := time.Now()

	decoded, err := t.decoder.Decode(ctx, file)
	if err != nil {
		if domain.KindOf(err) == domain.KindUnknown {
			err = domain.NewError(domain.KindDecode, "decoding audio", err)
		}
		return nil, err
	}

	mono, err := pcm.Downmix(decoded)
	if err != nil {
		return nil, err
	}

	t.metrics.ObserveDecode(time.Since(start))
	t.logger.Debug("decoded audio",
		"channels", decoded.NumChannels(),
		"samples", len(mono),
		"sample_rate", decoded.SampleRate,
	)

	return domain.NewTranscriptionRequest(mono, t.options), nil
}

func (t *Transcriber) reportAcquireError(ctx context.Context, err error) {
	kind := domain.KindOf(err)
	t.metrics.RecordFailure(kind)

	switch kind {
	case domain.KindMissingSource:
		t.logger.Warn("no audio source selected", "source", t.source.Name(), "error", err)
		t.notify(ctx, missingSourceMessage)
	default:
		t.logger.Error("converting source to file", "source", t.source.Name(), "error", err)
	}
}

func (t *Transcriber) notify(ctx context.Context, message string) {
	if err := t.notifier.Notify(ctx, message); err != nil {
		t.logger.Error("notifying user", "error", err)
	}
}

func (t *Transcriber) currentRequest() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requestID
}

// claim reserves the submission slot for acquisition without flipping the
// visible busy flag.
func (t *Transcriber) claim() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.busy || t.acquiring {
		return false
	}
	t.acquiring = true
	t.idle = make(chan struct{})
	return true
}

func (t *Transcriber) release() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.acquiring = false
	t.signalIdle()
}

// View and metrics are updated under the lock so busy transitions reach the
// view in the order they happen; views must not call back into Transcriber.
func (t *Transcriber) enterBusy() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.acquiring = false
	t.busy = true
	t.view.SetBusy(true)
	t.metrics.SetBusy(true)
}

func (t *Transcriber) leaveBusy() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.busy = false
	t.requestID = ""
	t.view.SetBusy(false)
	t.metrics.SetBusy(false)
	t.signalIdle()
}

// finish leaves Busy on a terminal worker status.
func (t *Transcriber) finish() {
	t.mu.Lock()
	if !t.busy {
		t.mu.Unlock()
		t.logger.Warn("terminal status received while idle")
		return
	}
	started := t.started
	t.mu.Unlock()

	t.metrics.ObserveTranscription(time.Since(started))
	t.leaveBusy()
}

func (t *Transcriber) signalIdle() {
	if t.idle != nil {
		close(t.idle)
		t.idle = nil
	}
}
