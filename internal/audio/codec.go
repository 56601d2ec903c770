package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// Codec converts between wire bytes and raw float32 samples in [-1, 1].
// Both directions are pure functions that can fail.
type Codec interface {
	Decode(data []byte) ([]float32, error)
	Encode(samples []float32) ([]byte, error)
}

// DefaultCodec picks the daemon's wire codec: Ogg Opus when the decoder
// is built in, PCM16 otherwise.
func DefaultCodec(log zerolog.Logger) Codec {
	c, err := NewOpusCodec()
	if err != nil {
		log.Info().Err(err).Msg("using pcm16 wire codec")
		return PCM16Codec{}
	}
	log.Info().Msg("using opus wire codec")
	return c
}

// PCM16Codec is little-endian signed 16-bit mono PCM. It is the default
// wire format and the reference implementation for tests.
type PCM16Codec struct{}

func (PCM16Codec) Decode(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm16: odd byte count %d", len(data))
	}
	out := make([]float32, len(data)/2)
	for i := range out {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(s) / 32768
	}
	return out, nil
}

func (PCM16Codec) Encode(samples []float32) ([]byte, error) {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		// Same 32768 scale as Decode; only the positive rail needs a
		// clamp since +1.0 has no exact int16 representation.
		v := math.Round(float64(f) * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out, nil
}
