package stt

import (
	"fmt"

	"voiced/pkg/types"
)

// Detector guesses the language of an audio sample by racing one
// dedicated long-lived engine per configured language through a full
// decode cycle and comparing confidences. This is O(languages) full
// decodes per call, which is acceptable because detection happens once
// per utterance, not once per audio frame.
type Detector struct {
	langs   []types.LanguageTag
	engines map[types.LanguageTag]Engine
}

// NewDetector constructs the dedicated engines, one per language, in
// declaration order. These instances live outside the pools.
func NewDetector(langs []types.LanguageTag, factory Factory) (*Detector, error) {
	d := &Detector{engines: make(map[types.LanguageTag]Engine, len(langs))}
	for _, lang := range langs {
		eng, err := factory(lang)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("detector %s engine: %w", lang, err)
		}
		d.langs = append(d.langs, lang)
		d.engines[lang] = eng
	}
	return d, nil
}

// DetectLang decodes the sample against every configured language and
// returns the one with the highest confidence. Ties keep the earlier
// declared language. A single language's decode failure fails the whole
// detection: the comparison needs all candidates.
func (d *Detector) DetectLang(samples []float32) (types.LanguageTag, error) {
	if len(d.langs) == 0 {
		return "", fmt.Errorf("no languages configured for detection")
	}
	best := d.langs[0]
	var bestScore float32 = -1
	for _, lang := range d.langs {
		score, err := d.score(lang, samples)
		if err != nil {
			return "", fmt.Errorf("detect %s: %w", lang, err)
		}
		if score > bestScore {
			best = lang
			bestScore = score
		}
	}
	return best, nil
}

func (d *Detector) score(lang types.LanguageTag, samples []float32) (float32, error) {
	eng := d.engines[lang]
	if err := eng.BeginDecoding(); err != nil {
		return 0, err
	}
	if err := eng.Process(samples); err != nil {
		return 0, err
	}
	dec, err := eng.EndDecoding()
	if err != nil {
		return 0, err
	}
	return dec.Confidence, nil
}

func (d *Detector) Close() {
	for _, eng := range d.engines {
		_ = eng.Close()
	}
}
