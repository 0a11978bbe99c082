package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"whisper-web/internal/domain"
	"whisper-web/internal/infra/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type scriptedEngine struct {
	partials []string
	text     string
	err      error
}

func (e *scriptedEngine) Transcribe(_ context.Context, _ *domain.TranscriptionRequest, onUpdate func(string)) (string, error) {
	for _, p := range e.partials {
		onUpdate(p)
	}
	return e.text, e.err
}

func collect(t *testing.T, messages <-chan domain.StatusMessage, until domain.Status) []domain.StatusMessage {
	t.Helper()
	timeout := time.After(5 * time.Second)

	var got []domain.StatusMessage
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return got
			}
			got = append(got, msg)
			if msg.Status == until {
				return got
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s, got %v", until, got)
		}
	}
}

func statuses(msgs []domain.StatusMessage) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = string(m.Status)
	}
	return strings.Join(parts, ",")
}

func TestLocal_EmitsOrderedStatuses(t *testing.T) {
	w := worker.NewLocal(&scriptedEngine{partials: []string{"hel"}, text: "hello"}, discardLogger())
	w.Start()
	defer w.Stop()

	req := domain.NewTranscriptionRequest([]float32{0}, domain.DefaultRequestOptions())
	if err := w.Post(context.Background(), req); err != nil {
		t.Fatalf("post: %v", err)
	}

	got := collect(t, w.Messages(), domain.StatusComplete)

	if statuses(got) != "initiate,ready,update,complete" {
		t.Fatalf("statuses: got %s", statuses(got))
	}
	if got[0].Data.Name != domain.DefaultModel {
		t.Errorf("initiate name: got %q", got[0].Data.Name)
	}
	if got[2].Data.Text != "hel" || got[3].Data.Text != "hello" {
		t.Errorf("texts: got %q then %q", got[2].Data.Text, got[3].Data.Text)
	}
}

func TestLocal_EngineErrorBecomesErrorStatus(t *testing.T) {
	w := worker.NewLocal(&scriptedEngine{err: errors.New("model failed")}, discardLogger())
	w.Start()
	defer w.Stop()

	req := domain.NewTranscriptionRequest([]float32{0}, domain.DefaultRequestOptions())
	if err := w.Post(context.Background(), req); err != nil {
		t.Fatalf("post: %v", err)
	}

	got := collect(t, w.Messages(), domain.StatusError)
	last := got[len(got)-1]
	if last.Status != domain.StatusError || last.Data.Message != "model failed" {
		t.Errorf("last message: got %+v", last)
	}
}

func TestLocal_PostAfterStop(t *testing.T) {
	w := worker.NewLocal(&scriptedEngine{}, discardLogger())
	w.Start()
	w.Stop()

	if err := w.Post(context.Background(), &domain.TranscriptionRequest{}); err == nil {
		t.Error("expected error posting to a stopped worker")
	}
	if _, ok := <-w.Messages(); ok {
		t.Error("message stream should be closed")
	}
}

// workerServer answers each request with an undecodable frame, an update and a
// completion that echoes the request.
func workerServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			var req domain.TranscriptionRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}

			conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
			conn.WriteJSON(domain.UpdateMessage("partial"))
			conn.WriteJSON(domain.CompleteMessage(fmt.Sprintf("%s:%d:%v", req.Model, len(req.Audio), req.Language == nil)))
		}
	}))
}

func TestRemote_RoundTrip(t *testing.T) {
	ts := workerServer(t)
	defer ts.Close()

	w := worker.NewRemote("ws"+strings.TrimPrefix(ts.URL, "http"), discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer w.Close()

	req := domain.NewTranscriptionRequest([]float32{0.1, 0.2, 0.3}, domain.DefaultRequestOptions())
	if err := w.Post(ctx, req); err != nil {
		t.Fatalf("post: %v", err)
	}

	got := collect(t, w.Messages(), domain.StatusComplete)
	if statuses(got) != "update,complete" {
		t.Fatalf("statuses: got %s", statuses(got))
	}
	if want := "Xenova/whisper-tiny:3:true"; got[1].Data.Text != want {
		t.Errorf("complete text: got %q, want %q", got[1].Data.Text, want)
	}
}

func TestRemote_RequestWireFormat(t *testing.T) {
	req := domain.NewTranscriptionRequest([]float32{0.5}, domain.DefaultRequestOptions())

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"audio", "model", "multilingual", "quantized", "subtask", "language"} {
		if _, ok := wire[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if wire["subtask"] != nil || wire["language"] != nil {
		t.Errorf("subtask/language must be null: %v %v", wire["subtask"], wire["language"])
	}
}

func TestRemote_ConnectionLostReportsError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var req domain.TranscriptionRequest
		conn.ReadJSON(&req)
		conn.Close()
	}))
	defer ts.Close()

	w := worker.NewRemote("ws"+strings.TrimPrefix(ts.URL, "http"), discardLogger())
	ctx := context.Background()
	if err := w.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer w.Close()

	if err := w.Post(ctx, domain.NewTranscriptionRequest([]float32{0}, domain.DefaultRequestOptions())); err != nil {
		t.Fatalf("post: %v", err)
	}

	got := collect(t, w.Messages(), domain.StatusError)
	if len(got) == 0 || got[len(got)-1].Status != domain.StatusError {
		t.Fatalf("expected error status, got %v", got)
	}
}

func TestRemote_CloseWithUnreadMessagesAfterDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	served := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(served)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for i := 0; i < 64; i++ {
			conn.WriteJSON(domain.UpdateMessage("partial"))
		}
		conn.Close()
	}))
	defer ts.Close()

	w := worker.NewRemote("ws"+strings.TrimPrefix(ts.URL, "http"), discardLogger())
	if err := w.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	<-served
	time.Sleep(100 * time.Millisecond)
	w.Close()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-w.Messages():
			if !ok {
				return
			}
			if msg.Status != domain.StatusUpdate {
				t.Errorf("unexpected %s after close", msg.Status)
			}
		case <-timeout:
			t.Fatal("message stream not closed after Close")
		}
	}
}

func TestRemote_PostBeforeConnect(t *testing.T) {
	w := worker.NewRemote("ws://127.0.0.1:1/worker", discardLogger())
	if err := w.Post(context.Background(), &domain.TranscriptionRequest{}); err == nil {
		t.Error("expected error when not connected")
	}
}
