package pcm

import (
	"encoding/binary"
	"math"
	"testing"

	"whisper-web/internal/domain"
)

func TestDownmix_MonoIsIdentity(t *testing.T) {
	in := []float32{0.25, -0.5, 0.999, -1, 0}
	out, err := Downmix(&domain.DecodedAudio{SampleRate: 16000, Channels: [][]float32{in}})
	if err != nil {
		t.Fatalf("Downmix failed: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("length: got %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDownmix_StereoFormula(t *testing.T) {
	left := make([]float32, 256)
	right := make([]float32, 256)
	for i := range left {
		left[i] = float32(math.Sin(float64(i) * 0.1))
		right[i] = float32(math.Cos(float64(i) * 0.07))
	}

	out, err := Downmix(&domain.DecodedAudio{Channels: [][]float32{left, right}})
	if err != nil {
		t.Fatalf("Downmix failed: %v", err)
	}

	if len(out) != len(left) {
		t.Fatalf("length: got %d, want %d", len(out), len(left))
	}
	for i := range left {
		want := float32(math.Sqrt2 * (float64(left[i]) + float64(right[i])) / 2)
		if out[i] != want {
			t.Errorf("sample %d: got %v, want %v", i, out[i], want)
		}
	}
}

func TestDownmix_Examples(t *testing.T) {
	tests := []struct {
		name  string
		left  []float32
		right []float32
		want  []float64
	}{
		{
			name:  "in phase",
			left:  []float32{1.0, -1.0},
			right: []float32{1.0, -1.0},
			want:  []float64{math.Sqrt2, -math.Sqrt2},
		},
		{
			name:  "cancelling",
			left:  []float32{0.5, 0.0},
			right: []float32{-0.5, 0.0},
			want:  []float64{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Downmix(&domain.DecodedAudio{Channels: [][]float32{tt.left, tt.right}})
			if err != nil {
				t.Fatalf("Downmix failed: %v", err)
			}
			for i, want := range tt.want {
				if math.Abs(float64(out[i])-want) > 1e-6 {
					t.Errorf("sample %d: got %v, want %v", i, out[i], want)
				}
			}
		})
	}
}

func TestDownmix_Deterministic(t *testing.T) {
	audio := &domain.DecodedAudio{Channels: [][]float32{{0.1, 0.2, 0.3}, {0.3, 0.2, 0.1}}}

	first, err := Downmix(audio)
	if err != nil {
		t.Fatalf("Downmix failed: %v", err)
	}
	second, _ := Downmix(audio)

	for i := range first {
		if math.Float32bits(first[i]) != math.Float32bits(second[i]) {
			t.Errorf("sample %d differs between runs", i)
		}
	}
}

func TestDownmix_UnsupportedLayout(t *testing.T) {
	tests := []struct {
		name     string
		channels [][]float32
	}{
		{name: "no channels", channels: nil},
		{name: "surround", channels: [][]float32{{0}, {0}, {0}, {0}, {0}, {0}}},
		{name: "ragged stereo", channels: [][]float32{{0, 1}, {0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Downmix(&domain.DecodedAudio{Channels: tt.channels})
			if err == nil {
				t.Fatal("expected error")
			}
			if !domain.IsKind(err, domain.KindUnsupportedLayout) {
				t.Errorf("kind: got %s, want %s", domain.KindOf(err), domain.KindUnsupportedLayout)
			}
		})
	}
}

func TestEncodeMonoWAV(t *testing.T) {
	signal := []float32{0, 0.5, -0.5, 1, -1, 2}

	data, err := EncodeMonoWAV(signal, 16000)
	if err != nil {
		t.Fatalf("EncodeMonoWAV failed: %v", err)
	}

	if len(data) != 44+len(signal)*2 {
		t.Fatalf("size: got %d, want %d", len(data), 44+len(signal)*2)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Error("invalid WAV markers")
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Errorf("sample rate: got %d", rate)
	}

	samples := FloatToPCM16(signal)
	want := []int16{0, 16383, -16384, 32767, -32768, 32767}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, samples[i], want[i])
		}
	}
}

func TestEncodeWAV_Errors(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000, 1); err == nil {
		t.Error("expected error for empty samples")
	}
	if _, err := EncodeWAV([]int16{1}, 0, 1); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := EncodeWAV([]int16{1, 2, 3}, 16000, 2); err == nil {
		t.Error("expected error for partial frame")
	}
}

func TestInterleave(t *testing.T) {
	got := Interleave([]int16{1, 2, 3}, []int16{-1, -2, -3})
	want := []int16{1, -1, 2, -2, 3, -3}
	if len(got) != len(want) {
		t.Fatalf("length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}
