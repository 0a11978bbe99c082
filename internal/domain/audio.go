package domain

import "fmt"

// TargetSampleRate is the rate every decoded signal is converted to before it
// reaches the worker.
const TargetSampleRate = 16000

// AudioFile is raw media obtained from a source, consumed once by the decoder.
type AudioFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// DecodedAudio is a time-domain signal with one slice of samples per channel.
type DecodedAudio struct {
	SampleRate int
	Channels   [][]float32
}

func (d *DecodedAudio) NumChannels() int {
	return len(d.Channels)
}

// Len returns the per-channel sample count.
func (d *DecodedAudio) Len() int {
	if len(d.Channels) == 0 {
		return 0
	}
	return len(d.Channels[0])
}

// Validate checks that all channels have the same length.
func (d *DecodedAudio) Validate() error {
	if len(d.Channels) == 0 {
		return fmt.Errorf("decoded audio has no channels")
	}
	n := len(d.Channels[0])
	for i, ch := range d.Channels[1:] {
		if len(ch) != n {
			return fmt.Errorf("channel %d has %d samples, channel 0 has %d", i+1, len(ch), n)
		}
	}
	return nil
}
