//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"whisper-web/internal/domain"
	"whisper-web/internal/pcm"
)

// RecordingFileName is the name given to microphone captures.
const RecordingFileName = "recording.wav"

const framesPerBuffer = 1024

// MicrophoneSource records a fixed-length mono clip from the default input device.
type MicrophoneSource struct {
	sampleRate int
	duration   time.Duration
	logger     *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	buffer []int16
}

func NewMicrophoneSource(sampleRate int, duration time.Duration, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{
		sampleRate: sampleRate,
		duration:   duration,
		logger:     logger,
		buffer:     make([]int16, framesPerBuffer),
	}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Start(_ context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), framesPerBuffer, m.buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening stream: %w", err)
	}

	m.mu.Lock()
	m.stream = stream
	m.mu.Unlock()

	m.logger.Info("microphone ready", "sampleRate", m.sampleRate, "duration", m.duration)
	return nil
}

func (m *MicrophoneSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
	portaudio.Terminate()
	return nil
}

func (m *MicrophoneSource) Acquire(ctx context.Context) (*domain.AudioFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil, domain.Errorf(domain.KindMissingSource, "recording", "microphone not started")
	}

	if err := m.stream.Start(); err != nil {
		return nil, domain.NewError(domain.KindFetch, "recording", fmt.Errorf("starting stream: %w", err))
	}
	defer m.stream.Stop()

	want := int(m.duration.Seconds() * float64(m.sampleRate))
	samples := make([]int16, 0, want)

	m.logger.Info("recording", "duration", m.duration)
	for len(samples) < want {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := m.stream.Read(); err != nil {
			return nil, domain.NewError(domain.KindFetch, "recording", fmt.Errorf("reading from stream: %w", err))
		}
		samples = append(samples, m.buffer...)
	}

	data, err := pcm.EncodeWAV(samples[:want], m.sampleRate, 1)
	if err != nil {
		return nil, domain.NewError(domain.KindFetch, "recording", err)
	}

	return &domain.AudioFile{
		Name:        RecordingFileName,
		ContentType: "audio/wav",
		Data:        data,
	}, nil
}
