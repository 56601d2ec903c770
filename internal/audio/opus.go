//go:build opus

package audio

import (
	"bytes"
	"errors"
	"io"

	popus "github.com/pekim/opus"
)

// OpusCodec decodes Ogg Opus payloads to 16 kHz mono float32. Encoding
// answers as Opus is not supported; callers fall back to PCM for the
// return path.
type OpusCodec struct{}

func NewOpusCodec() (Codec, error) { return OpusCodec{}, nil }

func (OpusCodec) Decode(data []byte) ([]float32, error) {
	dec, err := popus.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}
	var (
		pcm48 []float32
		buf   = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			w := buf[:n*ch]
			tmp := make([]float32, len(w))
			for i, s := range w {
				tmp[i] = float32(s) / 32768
			}
			pcm48 = append(pcm48, tmp...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if ch > 1 {
		pcm48 = downmixInterleaved(pcm48, ch)
	}
	return resampleLinear(pcm48, 48000, 16000), nil
}

func (OpusCodec) Encode([]float32) ([]byte, error) {
	return nil, errors.New("opus: encoding not supported")
}
