// Package console renders transcription progress as plain text lines.
package console

import (
	"fmt"
	"io"
	"sync"
)

// View writes transcript changes and busy transitions to w. Repeated
// values are suppressed so partial updates do not flood the output.
type View struct {
	mu   sync.Mutex
	w    io.Writer
	text string
	busy bool
}

func NewView(w io.Writer) *View {
	return &View{w: w}
}

func (v *View) SetTranscript(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if text == v.text {
		return
	}
	v.text = text
	fmt.Fprintf(v.w, "transcript: %s\n", text)
}

func (v *View) SetBusy(busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if busy == v.busy {
		return
	}
	v.busy = busy
	if busy {
		fmt.Fprintln(v.w, "transcribing...")
	} else {
		fmt.Fprintln(v.w, "ready")
	}
}

// Transcript returns the last text shown.
func (v *View) Transcript() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.text
}
