package application

// View is the user-facing surface: the transcript text and the submission control.
type View interface {
	SetTranscript(text string)
	SetBusy(busy bool)
}

type NoopView struct{}

func (NoopView) SetTranscript(string) {}
func (NoopView) SetBusy(bool)         {}
