package application

import (
	"context"

	"whisper-web/internal/domain"
)

// Worker runs the recognition model out of band. Post hands over one request;
// Messages delivers status messages in the order the worker produced them.
type Worker interface {
	Post(ctx context.Context, req *domain.TranscriptionRequest) error
	Messages() <-chan domain.StatusMessage
}
