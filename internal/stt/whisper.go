//go:build whisper

package stt

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"voiced/pkg/types"
)

// NewWhisperFactory returns a Factory backed by whisper.cpp. Each
// engine owns its own model instance; that load cost is exactly what
// the pools amortize.
func NewWhisperFactory(modelPaths map[types.LanguageTag]string) Factory {
	return func(lang types.LanguageTag) (Engine, error) {
		path, ok := modelPaths[lang]
		if !ok {
			return nil, fmt.Errorf("no acoustic model for language %q", lang)
		}
		model, err := whisper.New(path)
		if err != nil {
			return nil, fmt.Errorf("load model %s: %w", path, err)
		}
		return &whisperEngine{model: model, lang: lang}, nil
	}
}

type whisperEngine struct {
	model whisper.Model
	lang  types.LanguageTag
	wctx  whisper.Context
	buf   []float32
}

func (w *whisperEngine) BeginDecoding() error {
	wctx, err := w.model.NewContext()
	if err != nil {
		return fmt.Errorf("new context: %w", err)
	}
	if err := wctx.SetLanguage(primaryLang(w.lang)); err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	wctx.SetThreads(uint(runtime.NumCPU()))
	w.wctx = wctx
	w.buf = w.buf[:0]
	return nil
}

// Process buffers samples; whisper decodes whole utterances, so the
// actual inference happens in EndDecoding.
func (w *whisperEngine) Process(samples []float32) error {
	if w.wctx == nil {
		return errors.New("Process before BeginDecoding")
	}
	w.buf = append(w.buf, samples...)
	return nil
}

func (w *whisperEngine) EndDecoding() (Decoded, error) {
	if w.wctx == nil {
		return Decoded{}, errors.New("EndDecoding before BeginDecoding")
	}
	wctx := w.wctx
	w.wctx = nil
	if len(w.buf) == 0 {
		return Decoded{}, nil
	}
	if err := wctx.Process(w.buf, nil, nil, nil); err != nil {
		return Decoded{}, fmt.Errorf("process: %w", err)
	}
	var (
		text   string
		sum    float64
		tokens int
	)
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Decoded{}, fmt.Errorf("next segment: %w", err)
		}
		if text == "" {
			text = seg.Text
		} else {
			text += " " + seg.Text
		}
		for _, tok := range seg.Tokens {
			sum += float64(tok.P)
			tokens++
		}
	}
	var conf float32
	if tokens > 0 {
		conf = float32(sum / float64(tokens))
	}
	return Decoded{Hypothesis: text, Confidence: conf}, nil
}

func (w *whisperEngine) Close() error {
	w.wctx = nil
	return w.model.Close()
}

// primaryLang maps a BCP-47 tag to the two-letter code whisper expects.
func primaryLang(l types.LanguageTag) string {
	s := string(l)
	for i := 0; i < len(s); i++ {
		if s[i] == '-' || s[i] == '_' {
			return s[:i]
		}
	}
	return s
}
