package audio

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"whisper-web/internal/domain"
)

var mediaExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".webm": true,
	".mp4":  true,
}

// FilePicker reads the first of a list of selected files, like a file input.
type FilePicker struct {
	mu       sync.Mutex
	selected []string
}

func NewFilePicker(paths ...string) *FilePicker {
	return &FilePicker{selected: paths}
}

func (f *FilePicker) Name() string {
	return "file"
}

func (f *FilePicker) Start(_ context.Context) error {
	return nil
}

func (f *FilePicker) Stop() error {
	return nil
}

// Select replaces the current selection.
func (f *FilePicker) Select(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = paths
}

func (f *FilePicker) Acquire(_ context.Context) (*domain.AudioFile, error) {
	f.mu.Lock()
	var path string
	if len(f.selected) > 0 {
		path = f.selected[0]
	}
	f.mu.Unlock()

	if path == "" {
		return nil, domain.Errorf(domain.KindMissingSource, "reading selected file", "no file selected")
	}

	return readMediaFile(path)
}

// DirSource hands out audio files dropped into a directory, oldest name first,
// each one only once.
type DirSource struct {
	dir       string
	processed map[string]bool
	mu        sync.Mutex
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{
		dir:       dir,
		processed: make(map[string]bool),
	}
}

func (d *DirSource) Name() string {
	return "dir"
}

func (d *DirSource) Start(_ context.Context) error {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("creating audio dir: %w", err)
	}
	return nil
}

func (d *DirSource) Stop() error {
	return nil
}

func (d *DirSource) Acquire(_ context.Context) (*domain.AudioFile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, domain.NewError(domain.KindFetch, "reading audio dir", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !mediaExtensions[ext] {
			continue
		}

		path := filepath.Join(d.dir, entry.Name())
		if d.processed[path] {
			continue
		}

		file, err := readMediaFile(path)
		if err != nil {
			return nil, err
		}

		d.processed[path] = true
		return file, nil
	}

	return nil, domain.Errorf(domain.KindMissingSource, "reading audio dir", "no new audio file in %s", d.dir)
}

func readMediaFile(path string) (*domain.AudioFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.Errorf(domain.KindFetch, "reading selected file", "reading file %s: %w", path, err)
	}

	return &domain.AudioFile{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	}, nil
}
