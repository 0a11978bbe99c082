package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"whisper-web/internal/domain"
)

// VideoFileName is the name given to media fetched from a source URL.
const VideoFileName = "video.mp4"

const maxFetchBytes = 512 * 1024 * 1024

// URLSource fetches the media behind a source URL, the way a page reads the
// src attribute of its video element.
type URLSource struct {
	src        string
	maxBytes   int64
	httpClient *http.Client
	logger     *slog.Logger
}

func NewURLSource(src string, timeout time.Duration, logger *slog.Logger) *URLSource {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &URLSource{
		src:        src,
		maxBytes:   maxFetchBytes,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (u *URLSource) Name() string {
	return "url"
}

func (u *URLSource) Start(_ context.Context) error {
	return nil
}

func (u *URLSource) Stop() error {
	return nil
}

func (u *URLSource) Acquire(ctx context.Context) (*domain.AudioFile, error) {
	if u.src == "" {
		return nil, domain.Errorf(domain.KindMissingSource, "reading video source", "video source not found")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.src, nil)
	if err != nil {
		return nil, domain.NewError(domain.KindFetch, "fetching video source", fmt.Errorf("creating request: %w", err))
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.KindFetch, "fetching video source", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.Errorf(domain.KindFetch, "fetching video source", "unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, u.maxBytes+1))
	if err != nil {
		return nil, domain.NewError(domain.KindFetch, "fetching video source", fmt.Errorf("reading body: %w", err))
	}
	if int64(len(data)) > u.maxBytes {
		return nil, domain.Errorf(domain.KindFetch, "fetching video source", "video source exceeds %d bytes", u.maxBytes)
	}

	u.logger.Debug("fetched video source", "src", u.src, "bytes", len(data), "content_type", resp.Header.Get("Content-Type"))

	return &domain.AudioFile{
		Name:        VideoFileName,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
