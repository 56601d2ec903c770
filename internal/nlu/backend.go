package nlu

import (
	"context"

	"voiced/pkg/types"
)

// IntentSpec is one intent's training data, keyed by its mangled name.
type IntentSpec struct {
	Name       string   `json:"name"`
	Utterances []string `json:"utterances"`
}

// EntitySpec declares a slot type and the values it can take.
type EntitySpec struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
	// Automatically extensible entities also match unseen values.
	AutomaticallyExtensible bool `json:"automatically_extensible,omitempty"`
}

// TrainData is everything a backend needs to train one language.
type TrainData struct {
	Intents  []IntentSpec `json:"intents"`
	Entities []EntitySpec `json:"entities"`
}

// Result is the best intent guess for a parsed utterance.
type Result struct {
	// Mangled intent name; empty when the backend has no guess.
	Name string `json:"name"`
	// Normalized score in [0,1].
	Confidence float32 `json:"confidence"`
	// Extracted slot values keyed by slot name.
	Slots map[string]string `json:"slots,omitempty"`
}

// TrainedModel serves parses for one language. Implementations are
// read-only after training.
type TrainedModel interface {
	Parse(ctx context.Context, text string) (Result, error)
}

// Backend is the external intent classifier. Training may shell out and
// take seconds; it is called exactly once per language.
type Backend interface {
	// IsLangCompatible reports whether the backend can train this language.
	IsLangCompatible(lang types.LanguageTag) bool
	Train(ctx context.Context, data TrainData, lang types.LanguageTag) (TrainedModel, error)
}
