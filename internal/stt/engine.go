package stt

import "voiced/pkg/types"

// Decoded is the outcome of one utterance's decode cycle.
type Decoded struct {
	Hypothesis string
	// Normalized score in [0,1].
	Confidence float32
}

// Engine is one speech-recognition instance. An utterance is a strictly
// ordered Begin -> Process* -> End sequence; callers serialize access
// (the session layer holds the exclusive handle).
type Engine interface {
	BeginDecoding() error
	Process(samples []float32) error
	EndDecoding() (Decoded, error)
	Close() error
}

// Factory constructs an engine for a language. Construction may be
// expensive (model loading), which is why pools retain idle instances.
type Factory func(lang types.LanguageTag) (Engine, error)
