// Package decoder turns uploaded or fetched media into PCM at the rate the
// recognition model expects.
package decoder

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"

	"whisper-web/internal/domain"
)

const resampleQuality = 4

// Converter rewrites media that beep cannot read (video containers, AAC, Opus)
// into WAV.
type Converter interface {
	ToWAV(ctx context.Context, file *domain.AudioFile) ([]byte, error)
}

type format int

const (
	formatUnknown format = iota
	formatWAV
	formatMP3
)

type Decoder struct {
	sampleRate int
	converter  Converter
	logger     *slog.Logger
}

// New returns a decoder producing signals at sampleRate. converter may be nil,
// in which case only WAV and MP3 input is accepted.
func New(sampleRate int, converter Converter, logger *slog.Logger) *Decoder {
	return &Decoder{
		sampleRate: sampleRate,
		converter:  converter,
		logger:     logger,
	}
}

func (d *Decoder) Decode(ctx context.Context, file *domain.AudioFile) (*domain.DecodedAudio, error) {
	if file == nil || len(file.Data) == 0 {
		return nil, domain.Errorf(domain.KindDecode, "decoding audio", "empty input")
	}

	data := file.Data
	kind := sniff(data, file.ContentType)

	if kind == formatUnknown {
		if d.converter == nil {
			return nil, domain.Errorf(domain.KindDecode, "decoding audio",
				"unsupported media type %q (%s)", file.ContentType, file.Name)
		}

		d.logger.Debug("converting media", "name", file.Name, "content_type", file.ContentType)
		converted, err := d.converter.ToWAV(ctx, file)
		if err != nil {
			return nil, domain.NewError(domain.KindDecode, "converting media", err)
		}
		data, kind = converted, formatWAV
	}

	var (
		stream  beep.StreamSeekCloser
		fmtInfo beep.Format
		err     error
	)
	switch kind {
	case formatWAV:
		channels, probeErr := wavChannels(data)
		if probeErr != nil {
			return nil, domain.NewError(domain.KindDecode, "decoding wav", probeErr)
		}
		if channels != 1 && channels != 2 {
			return nil, domain.Errorf(domain.KindUnsupportedLayout, "decoding wav",
				"unsupported channel layout: %d channels", channels)
		}
		stream, fmtInfo, err = wav.Decode(bytes.NewReader(data))
	case formatMP3:
		stream, fmtInfo, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	}
	if err != nil {
		return nil, domain.NewError(domain.KindDecode, "decoding audio", err)
	}
	defer stream.Close()

	decoded, err := d.collect(stream, fmtInfo)
	if err != nil {
		return nil, err
	}

	// The mp3 decoder always yields two identical channels for mono input.
	if kind == formatMP3 && mp3Channels(data) == 1 && decoded.NumChannels() == 2 {
		decoded.Channels = decoded.Channels[:1]
	}
	return decoded, nil
}

func (d *Decoder) collect(stream beep.StreamSeekCloser, f beep.Format) (*domain.DecodedAudio, error) {
	if f.SampleRate <= 0 {
		return nil, domain.Errorf(domain.KindDecode, "decoding audio", "invalid sample rate %d", int(f.SampleRate))
	}

	var src beep.Streamer = stream
	if int(f.SampleRate) != d.sampleRate {
		src = beep.Resample(resampleQuality, f.SampleRate, beep.SampleRate(d.sampleRate), stream)
	}

	channels := f.NumChannels
	if channels != 1 && channels != 2 {
		return nil, domain.Errorf(domain.KindUnsupportedLayout, "decoding audio",
			"unsupported channel layout: %d channels", channels)
	}

	out := make([][]float32, channels)
	buf := make([][2]float64, 4096)
	for {
		n, ok := src.Stream(buf)
		for _, frame := range buf[:n] {
			for c := 0; c < channels; c++ {
				out[c] = append(out[c], float32(frame[c]))
			}
		}
		if !ok {
			break
		}
	}
	if err := src.Err(); err != nil {
		return nil, domain.NewError(domain.KindDecode, "reading samples", err)
	}
	if err := stream.Err(); err != nil {
		return nil, domain.NewError(domain.KindDecode, "reading samples", err)
	}

	decoded := &domain.DecodedAudio{SampleRate: d.sampleRate, Channels: out}
	if decoded.Len() == 0 {
		return nil, domain.Errorf(domain.KindDecode, "decoding audio", "no audio samples")
	}

	d.logger.Debug("decoded audio",
		"source_rate", int(f.SampleRate),
		"channels", channels,
		"samples", decoded.Len(),
	)
	return decoded, nil
}

func sniff(data []byte, contentType string) format {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return formatWAV
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return formatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 && data[1]&0x06 != 0:
		// MPEG audio frame sync; layer bits 00 would be AAC ADTS.
		return formatMP3
	}

	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "audio/mpeg", "audio/mp3":
		return formatMP3
	}
	return formatUnknown
}

// wavChannels walks the RIFF chunks up to "fmt " and returns its channel count.
func wavChannels(data []byte) (int, error) {
	if len(data) < 12 {
		return 0, fmt.Errorf("WAV data too short: %d bytes", len(data))
	}

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		if id == "fmt " {
			if body+4 > len(data) {
				return 0, fmt.Errorf("truncated fmt chunk")
			}
			return int(binary.LittleEndian.Uint16(data[body+2 : body+4])), nil
		}

		pos = body + size + size%2
	}

	return 0, fmt.Errorf("invalid WAV file: missing fmt chunk")
}

// mp3Channels reads the channel mode of the first MPEG audio frame, skipping
// an ID3v2 tag. It returns 2 when no frame header is found.
func mp3Channels(data []byte) int {
	pos := 0
	if len(data) >= 10 && string(data[0:3]) == "ID3" {
		size := int(data[6]&0x7F)<<21 | int(data[7]&0x7F)<<14 | int(data[8]&0x7F)<<7 | int(data[9]&0x7F)
		pos = 10 + size
		if data[5]&0x10 != 0 {
			pos += 10
		}
	}

	for ; pos+4 <= len(data); pos++ {
		if data[pos] != 0xFF || data[pos+1]&0xE0 != 0xE0 {
			continue
		}
		layer := data[pos+1] >> 1 & 0x03
		bitrate := data[pos+2] >> 4
		rate := data[pos+2] >> 2 & 0x03
		if layer == 0 || bitrate == 0x0F || rate == 0x03 {
			continue
		}
		if data[pos+3]>>6 == 0x03 {
			return 1
		}
		return 2
	}
	return 2
}
