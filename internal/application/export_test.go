package application

import (
	"context"

	"whisper-web/internal/domain"
)

// Handle exposes the relay step so tests can drive it synchronously.
func (t *Transcriber) Handle(ctx context.Context, msg domain.StatusMessage) {
	t.handle(ctx, msg)
}
