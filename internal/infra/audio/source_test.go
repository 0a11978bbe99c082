package audio_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"whisper-web/internal/domain"
	"whisper-web/internal/infra/audio"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFilePicker_ReadsFirstSelected(t *testing.T) {
	tmpDir := t.TempDir()
	first := filepath.Join(tmpDir, "first.wav")
	second := filepath.Join(tmpDir, "second.wav")
	if err := os.WriteFile(first, []byte("first audio"), 0644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	if err := os.WriteFile(second, []byte("second audio"), 0644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	source := audio.NewFilePicker(first, second)

	file, err := source.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquiring: %v", err)
	}
	if file.Name != "first.wav" || string(file.Data) != "first audio" {
		t.Errorf("got %q with %q", file.Name, file.Data)
	}
}

func TestFilePicker_NoSelection(t *testing.T) {
	source := audio.NewFilePicker()

	_, err := source.Acquire(context.Background())
	if !domain.IsKind(err, domain.KindMissingSource) {
		t.Errorf("error kind: got %s (%v)", domain.KindOf(err), err)
	}
}

func TestFilePicker_UnreadableFile(t *testing.T) {
	source := audio.NewFilePicker(filepath.Join(t.TempDir(), "missing.wav"))

	_, err := source.Acquire(context.Background())
	if !domain.IsKind(err, domain.KindFetch) {
		t.Errorf("error kind: got %s (%v)", domain.KindOf(err), err)
	}
}

func TestDirSource_EachFileOnce(t *testing.T) {
	tmpDir := t.TempDir()

	testCases := []struct {
		filename string
		content  []byte
	}{
		{"command1.wav", []byte("RIFF....WAVEfmt audio data 1")},
		{"command2.mp4", []byte("....ftypisom video data 2")},
		{"notes.txt", []byte("not audio")},
	}
	for _, tc := range testCases {
		if err := os.WriteFile(filepath.Join(tmpDir, tc.filename), tc.content, 0644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}
	}

	source := audio.NewDirSource(tmpDir)
	ctx := context.Background()
	if err := source.Start(ctx); err != nil {
		t.Fatalf("starting source: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		file, err := source.Acquire(ctx)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		seen[file.Name] = true
	}
	if !seen["command1.wav"] || !seen["command2.mp4"] {
		t.Errorf("files seen: %v", seen)
	}

	_, err := source.Acquire(ctx)
	if !domain.IsKind(err, domain.KindMissingSource) {
		t.Errorf("exhausted dir: got %v", err)
	}
}

func TestURLSource_FetchesAsVideoFile(t *testing.T) {
	content := []byte("fake mp4 bytes")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(content)
	}))
	defer ts.Close()

	source := audio.NewURLSource(ts.URL+"/clip.mp4", time.Second, discardLogger())

	file, err := source.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquiring: %v", err)
	}
	if file.Name != audio.VideoFileName {
		t.Errorf("name: got %q, want %q", file.Name, audio.VideoFileName)
	}
	if file.ContentType != "video/mp4" {
		t.Errorf("content type: got %q", file.ContentType)
	}
	if !bytes.Equal(file.Data, content) {
		t.Error("data mismatch")
	}
}

func TestURLSource_Failures(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name     string
		src      string
		wantKind domain.ErrorKind
	}{
		{name: "missing src attribute", src: "", wantKind: domain.KindMissingSource},
		{name: "not found", src: notFound.URL + "/video.mp4", wantKind: domain.KindFetch},
		{name: "connection refused", src: closedURL + "/video.mp4", wantKind: domain.KindFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := audio.NewURLSource(tt.src, time.Second, discardLogger())

			file, err := source.Acquire(context.Background())
			if file != nil {
				t.Error("expected no result")
			}
			if !domain.IsKind(err, tt.wantKind) {
				t.Errorf("error kind: got %s, want %s (%v)", domain.KindOf(err), tt.wantKind, err)
			}
		})
	}
}

func TestUploadSource_Selection(t *testing.T) {
	source := audio.NewUploadSource()
	ctx := context.Background()

	if _, err := source.Acquire(ctx); !domain.IsKind(err, domain.KindMissingSource) {
		t.Errorf("empty selection: got %v", err)
	}

	source.Select(&domain.AudioFile{Name: "a.wav", Data: []byte("a")})
	source.Select(&domain.AudioFile{Name: "b.wav", Data: []byte("b")})

	file, err := source.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquiring: %v", err)
	}
	if file.Name != "b.wav" {
		t.Errorf("latest selection wins: got %q", file.Name)
	}

	source.Select(nil)
	if _, ok := source.Selected(); ok {
		t.Error("selection should be cleared")
	}
}

func TestMicrophoneSource_UnavailableWithoutTag(t *testing.T) {
	source := audio.NewMicrophoneSource(16000, time.Second, discardLogger())

	if err := source.Start(context.Background()); err == nil {
		source.Stop()
		t.Skip("portaudio available")
	}
	if source.Name() != "microphone" {
		t.Errorf("name: got %q", source.Name())
	}
}

func TestURLSource_SizeLimit(t *testing.T) {
	content := bytes.Repeat([]byte{0x42}, 64)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer ts.Close()

	tests := []struct {
		name    string
		limit   int64
		wantErr bool
	}{
		{name: "exactly at limit", limit: 64},
		{name: "one byte over", limit: 63, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := audio.NewURLSource(ts.URL+"/clip.mp4", time.Second, discardLogger())
			source.SetMaxBytes(tt.limit)

			file, err := source.Acquire(context.Background())
			if tt.wantErr {
				if !domain.IsKind(err, domain.KindFetch) {
					t.Errorf("error kind: got %s (%v)", domain.KindOf(err), err)
				}
				if file != nil {
					t.Error("oversize source must not be returned")
				}
				return
			}
			if err != nil {
				t.Fatalf("acquiring: %v", err)
			}
			if len(file.Data) != len(content) {
				t.Errorf("bytes: got %d, want %d", len(file.Data), len(content))
			}
		})
	}
}
