package nlu

import (
	"context"
	"strings"

	"voiced/pkg/types"
)

// BuiltinBackend is a deterministic keyword matcher used when no
// external trainer is configured, and by tests. It scores an utterance
// against every trained example by token overlap and extracts slots by
// scanning for known entity values. It is not a statistical model; it
// exists so the daemon runs end to end without external tooling.
type BuiltinBackend struct{}

func NewBuiltinBackend() *BuiltinBackend { return &BuiltinBackend{} }

func (b *BuiltinBackend) IsLangCompatible(types.LanguageTag) bool { return true }

func (b *BuiltinBackend) Train(_ context.Context, data TrainData, _ types.LanguageTag) (TrainedModel, error) {
	m := &builtinModel{entities: make(map[string][]string)}
	for _, in := range data.Intents {
		for _, u := range in.Utterances {
			m.examples = append(m.examples, example{intent: in.Name, tokens: tokenize(u)})
		}
	}
	for _, e := range data.Entities {
		m.entities[e.Name] = e.Values
	}
	return m, nil
}

type example struct {
	intent string
	tokens []string
}

type builtinModel struct {
	examples []example
	entities map[string][]string
}

func (m *builtinModel) Parse(_ context.Context, text string) (Result, error) {
	toks := tokenize(text)
	best := Result{}
	for _, ex := range m.examples {
		score := overlap(toks, ex.tokens)
		if score > best.Confidence {
			best = Result{Name: ex.intent, Confidence: score}
		}
	}
	if best.Name == "" {
		return best, nil
	}
	lower := strings.ToLower(text)
	for name, values := range m.entities {
		for _, v := range values {
			if strings.Contains(lower, strings.ToLower(v)) {
				if best.Slots == nil {
					best.Slots = make(map[string]string)
				}
				best.Slots[name] = v
				break
			}
		}
	}
	return best, nil
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// overlap is the Jaccard index of the two token sets.
func overlap(a, b []string) float32 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter := 0
	bset := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := bset[t]; dup {
			continue
		}
		bset[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		}
	}
	union := len(set) + len(bset) - inter
	return float32(inter) / float32(union)
}
