package domain

import "github.com/google/uuid"

const (
	DefaultModel        = "Xenova/whisper-tiny"
	DefaultMultilingual = false
	DefaultQuantized    = false
	DefaultSubtask      = "transcribe"
	DefaultLanguage     = "english"

	// LanguageAuto lets the model detect the language; it is never sent.
	LanguageAuto = "auto"
)

// RequestOptions are the model parameters attached to a request.
type RequestOptions struct {
	Model        string
	Multilingual bool
	Quantized    bool
	Subtask      string
	Language     string
}

// DefaultRequestOptions returns the fixed parameters used for every submission.
func DefaultRequestOptions() RequestOptions {
	return RequestOptions{
		Model:        DefaultModel,
		Multilingual: DefaultMultilingual,
		Quantized:    DefaultQuantized,
		Subtask:      DefaultSubtask,
		Language:     DefaultLanguage,
	}
}

// TranscriptionRequest is the single message posted to the worker per submission.
type TranscriptionRequest struct {
	ID           string    `json:"id"`
	Audio        []float32 `json:"audio"`
	Model        string    `json:"model"`
	Multilingual bool      `json:"multilingual"`
	Quantized    bool      `json:"quantized"`
	Subtask      *string   `json:"subtask"`
	Language     *string   `json:"language"`
}

// NewTranscriptionRequest builds a request for audio. Subtask and language are
// only carried for multilingual models, and an "auto" language is left unset.
func NewTranscriptionRequest(audio []float32, opts RequestOptions) *TranscriptionRequest {
	req := &TranscriptionRequest{
		ID:           uuid.NewString(),
		Audio:        audio,
		Model:        opts.Model,
		Multilingual: opts.Multilingual,
		Quantized:    opts.Quantized,
	}

	if opts.Multilingual {
		subtask := opts.Subtask
		req.Subtask = &subtask
		if opts.Language != LanguageAuto {
			language := opts.Language
			req.Language = &language
		}
	}

	return req
}
