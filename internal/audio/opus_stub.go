//go:build !opus

package audio

import "errors"

// NewOpusCodec without the 'opus' build tag reports the codec as
// unavailable; satellites then speak PCM16 on the wire.
func NewOpusCodec() (Codec, error) {
	return nil, errors.New("opus codec not built in (build with -tags=opus)")
}
