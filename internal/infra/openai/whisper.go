package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"whisper-web/internal/domain"
	"whisper-web/internal/pcm"
)

// languageCodes maps the model's language names to the ISO-639-1 codes the
// transcription endpoint expects.
var languageCodes = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
	"japanese":   "ja",
	"chinese":    "zh",
	"russian":    "ru",
}

// WhisperEngine transcribes requests through an OpenAI-compatible
// /audio/transcriptions endpoint, either the hosted API or a local server.
type WhisperEngine struct {
	client     *goopenai.Client
	model      string
	sampleRate int
}

type Options struct {
	APIKey  string
	BaseURL string
	// Model overrides the request's model identifier when the server uses
	// its own naming (whisper-1 on the hosted API).
	Model   string
	Timeout time.Duration
}

func NewWhisperEngine(opts Options) *WhisperEngine {
	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &WhisperEngine{
		client:     goopenai.NewClientWithConfig(cfg),
		model:      opts.Model,
		sampleRate: domain.TargetSampleRate,
	}
}

func (e *WhisperEngine) Transcribe(ctx context.Context, req *domain.TranscriptionRequest, onUpdate func(string)) (string, error) {
	audio, err := pcm.EncodeMonoWAV(req.Audio, e.sampleRate)
	if err != nil {
		return "", fmt.Errorf("encoding audio: %w", err)
	}

	model := e.model
	if model == "" {
		model = req.Model
	}

	audioReq := goopenai.AudioRequest{
		Model:    model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(audio),
		Format:   goopenai.AudioResponseFormatJSON,
	}
	if req.Language != nil {
		audioReq.Language = languageCode(*req.Language)
	}

	var resp goopenai.AudioResponse
	if req.Subtask != nil && *req.Subtask == "translate" {
		resp, err = e.client.CreateTranslation(ctx, audioReq)
	} else {
		resp, err = e.client.CreateTranscription(ctx, audioReq)
	}
	if err != nil {
		return "", fmt.Errorf("whisper API: %w", err)
	}

	return resp.Text, nil
}

func languageCode(name string) string {
	if code, ok := languageCodes[name]; ok {
		return code
	}
	return name
}
