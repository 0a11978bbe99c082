// Package pcm holds the sample-level transforms applied between decoding and
// dispatch: channel down-mixing and PCM-16 WAV encoding.
package pcm

import (
	"math"

	"whisper-web/internal/domain"
)

// Downmix collapses decoded audio into a single channel of the same length.
//
// Mono input is returned as is. Stereo input is folded sample by sample as
// √2·(L+R)/2, evaluated in float64 and rounded once to float32 so the result
// is reproducible for identical inputs. Any other layout is rejected.
func Downmix(audio *domain.DecodedAudio) ([]float32, error) {
	switch audio.NumChannels() {
	case 1:
		return audio.Channels[0], nil
	case 2:
		left, right := audio.Channels[0], audio.Channels[1]
		if len(left) != len(right) {
			return nil, domain.Errorf(domain.KindUnsupportedLayout, "downmix",
				"channel lengths differ: %d and %d", len(left), len(right))
		}
		out := make([]float32, len(left))
		for i := range left {
			out[i] = float32(math.Sqrt2 * (float64(left[i]) + float64(right[i])) / 2)
		}
		return out, nil
	default:
		return nil, domain.Errorf(domain.KindUnsupportedLayout, "downmix",
			"unsupported channel layout: %d channels", audio.NumChannels())
	}
}
