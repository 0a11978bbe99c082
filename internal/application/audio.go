package application

import (
	"context"

	"whisper-web/internal/domain"
)

// AudioSource obtains the raw media for one submission.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop() error
	Acquire(ctx context.Context) (*domain.AudioFile, error)
	Name() string
}

// Decoder turns raw media into a signal at domain.TargetSampleRate.
type Decoder interface {
	Decode(ctx context.Context, file *domain.AudioFile) (*domain.DecodedAudio, error)
}
