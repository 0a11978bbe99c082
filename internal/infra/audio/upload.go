package audio

import (
	"context"
	"sync"

	"whisper-web/internal/domain"
)

// UploadSource holds the file last selected through the web UI.
type UploadSource struct {
	mu       sync.Mutex
	selected *domain.AudioFile
}

func NewUploadSource() *UploadSource {
	return &UploadSource{}
}

func (u *UploadSource) Name() string {
	return "upload"
}

func (u *UploadSource) Start(_ context.Context) error {
	return nil
}

func (u *UploadSource) Stop() error {
	return nil
}

// Select replaces the selected file. A nil file clears the selection.
func (u *UploadSource) Select(file *domain.AudioFile) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.selected = file
}

func (u *UploadSource) Selected() (*domain.AudioFile, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.selected, u.selected != nil
}

func (u *UploadSource) Acquire(_ context.Context) (*domain.AudioFile, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.selected == nil || len(u.selected.Data) == 0 {
		return nil, domain.Errorf(domain.KindMissingSource, "reading uploaded file", "no file selected")
	}
	return u.selected, nil
}
