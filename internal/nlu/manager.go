package nlu

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"voiced/internal/registry"
	"voiced/pkg/types"
)

// Manager owns the authoritative per-language training/serving state.
// Registration is only legal while a language is Training; calling a
// method in the wrong state is a contract violation and panics, because
// it indicates a caller bug rather than a runtime condition.
type Manager struct {
	mu      sync.Mutex
	backend Backend
	langs   map[types.LanguageTag]*langEntry
	// mangled intent name -> user-facing intent name
	reverse map[string]string
}

// NewManager starts every given language in Training.
func NewManager(backend Backend, langs []types.LanguageTag) *Manager {
	m := &Manager{
		backend: backend,
		langs:   make(map[types.LanguageTag]*langEntry, len(langs)),
		reverse: make(map[string]string),
	}
	for _, l := range langs {
		m.langs[l] = &langEntry{state: StateTraining}
	}
	return m
}

// AddIntent registers training utterances for a skill's intent and
// returns the mangled name, the only key the backend and the registries
// ever see. Valid only while the language is Training.
func (m *Manager) AddIntent(lang types.LanguageTag, skill, intent string, utterances []string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.trainingEntry(lang, "AddIntent")
	mangled := registry.Mangle(skill, intent)
	e.data.Intents = append(e.data.Intents, IntentSpec{Name: mangled, Utterances: utterances})
	m.reverse[mangled] = intent
	return mangled
}

// AddEntity registers a slot type definition. Valid only while the
// language is Training.
func (m *Manager) AddEntity(lang types.LanguageTag, def EntitySpec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.trainingEntry(lang, "AddEntity")
	e.data.Entities = append(e.data.Entities, def)
}

func (m *Manager) trainingEntry(lang types.LanguageTag, op string) *langEntry {
	e, ok := m.langs[lang]
	if !ok {
		panic(fmt.Sprintf("nlu: %s for unconfigured language %q", op, lang))
	}
	if e.state != StateTraining {
		panic(fmt.Sprintf("nlu: %s called while %q is %s, not training", op, lang, e.state))
	}
	return e
}

// EndLoading trains each language and transitions it to Done. It is
// called exactly once, after all skills have registered. A language the
// backend cannot handle, or whose training fails, is excluded from
// service; the joined error reports every exclusion.
func (m *Manager) EndLoading(ctx context.Context, langs []types.LanguageTag) error {
	var errs []error
	for _, lang := range langs {
		if err := m.endLoadingOne(ctx, lang); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) endLoadingOne(ctx context.Context, lang types.LanguageTag) error {
	m.mu.Lock()
	e := m.trainingEntry(lang, "EndLoading")
	if !m.backend.IsLangCompatible(lang) {
		delete(m.langs, lang)
		m.mu.Unlock()
		return ErrIncompatibleLanguage(lang)
	}
	e.state = StateInProcess
	data := e.data
	m.mu.Unlock()

	// Training may shell out and take seconds; the lock is not held
	// across it. The InProcess marker keeps registration calls fatal in
	// the meantime.
	model, err := m.backend.Train(ctx, data, lang)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		delete(m.langs, lang)
		return fmt.Errorf("train %s: %w", lang, err)
	}
	e.state = StateDone
	e.model = model
	e.data = TrainData{}
	return nil
}

// Parse returns the best intent guess for text. Calling it while the
// language is still loading is a contract violation; calling it for a
// language not in service is a runtime error.
func (m *Manager) Parse(ctx context.Context, lang types.LanguageTag, text string) (Result, error) {
	m.mu.Lock()
	e, ok := m.langs[lang]
	if !ok {
		m.mu.Unlock()
		return Result{}, ErrUnknownLanguage(lang)
	}
	if e.state != StateDone {
		m.mu.Unlock()
		panic(fmt.Sprintf("nlu: Parse called while %q is %s, not done", lang, e.state))
	}
	model := e.model
	m.mu.Unlock()

	res, err := model.Parse(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", lang, err)
	}
	return res, nil
}

// Demangle restores the user-facing intent name for a mangled key.
func (m *Manager) Demangle(mangled string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.reverse[mangled]
	return name, ok
}

// StateOf reports the lifecycle state of a language for status views.
func (m *Manager) StateOf(lang types.LanguageTag) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.langs[lang]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// ServedLanguages lists the languages currently in service or loading.
func (m *Manager) ServedLanguages() []types.LanguageTag {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.LanguageTag, 0, len(m.langs))
	for l := range m.langs {
		out = append(out, l)
	}
	return out
}
