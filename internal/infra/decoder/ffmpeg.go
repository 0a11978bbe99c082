package decoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"whisper-web/internal/domain"
)

// FFmpeg converts arbitrary media to PCM-16 WAV at a fixed rate by running the
// ffmpeg binary. The original channel layout is kept.
type FFmpeg struct {
	path       string
	sampleRate int
}

func NewFFmpeg(path string, sampleRate int) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path, sampleRate: sampleRate}
}

// Available reports whether the binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.path)
	return err == nil
}

func (f *FFmpeg) ToWAV(ctx context.Context, file *domain.AudioFile) ([]byte, error) {
	dir, err := os.MkdirTemp("", "whisper-web-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	name := filepath.Base(file.Name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "input"
	}
	in := filepath.Join(dir, name)
	out := filepath.Join(dir, "converted.wav")

	if err := os.WriteFile(in, file.Data, 0600); err != nil {
		return nil, fmt.Errorf("writing input: %w", err)
	}

	cmd := exec.CommandContext(ctx, f.path,
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-i", in,
		"-vn",
		"-ar", strconv.Itoa(f.sampleRate),
		"-c:a", "pcm_s16le",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running ffmpeg: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("reading converted audio: %w", err)
	}
	return data, nil
}
