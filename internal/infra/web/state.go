package web

import "sync"

// Snapshot is what the page shows: the transcript text and whether the
// transcribe button is disabled.
type Snapshot struct {
	Text string `json:"text"`
	Busy bool   `json:"busy"`
}

// State is the View backing the web UI. Every change is fanned out to
// subscribers; slow subscribers miss intermediate snapshots, never the latest.
type State struct {
	mu          sync.Mutex
	current     Snapshot
	subscribers map[chan Snapshot]struct{}
}

func NewState() *State {
	return &State{subscribers: make(map[chan Snapshot]struct{})}
}

func (s *State) SetTranscript(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Text = text
	s.broadcast()
}

func (s *State) SetBusy(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Busy = busy
	s.broadcast()
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe returns a channel primed with the current snapshot and a function
// that detaches it.
func (s *State) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.current
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
		})
	}
}

func (s *State) broadcast() {
	for ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- s.current
	}
}
