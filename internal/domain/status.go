package domain

type Status string

const (
	StatusInitiate Status = "initiate"
	StatusDownload Status = "download"
	StatusProgress Status = "progress"
	StatusReady    Status = "ready"
	StatusUpdate   Status = "update"
	StatusComplete Status = "complete"
	StatusDone     Status = "done"
	StatusError    Status = "error"
)

// Known reports whether s is one of the tags the worker protocol defines.
func (s Status) Known() bool {
	switch s {
	case StatusInitiate, StatusDownload, StatusProgress, StatusReady,
		StatusUpdate, StatusComplete, StatusDone, StatusError:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further messages are expected for the request.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Payload is the data attached to a status message. Update and complete carry
// Text, error carries Message, and the progress family may carry file details.
type Payload struct {
	Text     string  `json:"text,omitempty"`
	Message  string  `json:"message,omitempty"`
	File     string  `json:"file,omitempty"`
	Name     string  `json:"name,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Loaded   int64   `json:"loaded,omitempty"`
	Total    int64   `json:"total,omitempty"`
}

// StatusMessage is one message emitted by the worker.
type StatusMessage struct {
	Status Status  `json:"status"`
	Data   Payload `json:"data"`
}

func UpdateMessage(text string) StatusMessage {
	return StatusMessage{Status: StatusUpdate, Data: Payload{Text: text}}
}

func CompleteMessage(text string) StatusMessage {
	return StatusMessage{Status: StatusComplete, Data: Payload{Text: text}}
}

func ErrorMessage(message string) StatusMessage {
	return StatusMessage{Status: StatusError, Data: Payload{Message: message}}
}
