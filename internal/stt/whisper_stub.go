//go:build !whisper

package stt

import (
	"fmt"

	"voiced/pkg/types"
)

// NewWhisperFactory without the 'whisper' build tag yields engines that
// cannot be constructed, so the daemon still builds without cgo. Text
// requests keep working; audio requires the real runtime.
func NewWhisperFactory(map[types.LanguageTag]string) Factory {
	return func(lang types.LanguageTag) (Engine, error) {
		return nil, fmt.Errorf("whisper runtime not built in (build with -tags=whisper): lang %q", lang)
	}
}
