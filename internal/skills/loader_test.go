package skills

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"voiced/internal/audio"
	"voiced/internal/nlu"
	"voiced/internal/pipeline"
	"voiced/internal/registry"
	"voiced/internal/session"
	"voiced/pkg/types"
)

const enUS = types.LanguageTag("en-US")

type answerSink struct{ answers []types.Answer }

func (s *answerSink) Answer(_ string, ans types.Answer) error {
	s.answers = append(s.answers, ans)
	return nil
}

type env struct {
	pipe    *pipeline.Pipeline
	out     *answerSink
	signals *registry.Store[registry.Signal]
	actions *registry.Store[registry.Action]
	queries *registry.Store[registry.Query]
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		out:     &answerSink{},
		signals: registry.NewStore[registry.Signal](),
		actions: registry.NewStore[registry.Action](),
		queries: registry.NewStore[registry.Query](),
	}
	e.pipe = pipeline.New(pipeline.Deps{
		Sessions:    session.NewManager(),
		Caps:        session.NewCapsManager(zerolog.Nop()),
		Nlu:         nlu.NewManager(nlu.NewBuiltinBackend(), []types.LanguageTag{enUS}),
		Actions:     e.actions,
		Signals:     e.signals,
		Codec:       audio.PCM16Codec{},
		Out:         e.out,
		DefaultLang: enUS,
		Log:         zerolog.Nop(),
	}, pipeline.Config{})
	return e
}

func (e *env) loader(backends ...Backend) *Loader {
	return NewLoader(Deps{
		Backends:  backends,
		Pipeline:  e.pipe,
		Languages: []types.LanguageTag{enUS},
		Signals:   e.signals,
		Actions:   e.actions,
		Queries:   e.queries,
		Log:       zerolog.Nop(),
	})
}

func writeSkill(t *testing.T, root, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for fname, content := range files {
		if err := os.WriteFile(filepath.Join(dir, fname), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const lightsManifest = `name: lights
intents:
  - name: turn_on_light
    utterances:
      en-US:
        - turn on the light
        - switch the light on
    actions:
      - turn_on
`

const lightsScript = `package main

import "strings"

func Actions() map[string]func(slots map[string]string) (string, bool, error) {
	return map[string]func(slots map[string]string) (string, bool, error){
		"turn_on": func(slots map[string]string) (string, bool, error) {
			room := slots["room"]
			if room == "" {
				return "light is on", true, nil
			}
			return "light is on in the " + strings.ToLower(room), true, nil
		},
	}
}
`

func TestLoadScriptedSkillEndToEnd(t *testing.T) {
	e := newEnv(t)
	root := t.TempDir()
	writeSkill(t, root, "lights", map[string]string{
		"skill.yaml": lightsManifest,
		"skill.go":   lightsScript,
	})

	rep := e.loader(NewScriptBackend()).LoadAll([]string{root})
	if len(rep.Failed) != 0 {
		t.Fatalf("failed skills: %+v", rep.Failed)
	}
	if !reflect.DeepEqual(rep.Loaded, []string{"lights"}) {
		t.Fatalf("loaded = %v", rep.Loaded)
	}
	if _, ok := e.actions.Get("__lights__turn_on"); !ok {
		t.Fatal("script action not registered under its mangled key")
	}

	if err := e.pipe.EndLoading(context.Background(), []types.LanguageTag{enUS}); err != nil {
		t.Fatalf("EndLoading: %v", err)
	}
	if err := e.pipe.HandleText(context.Background(), "sat-1", "turn on the light", enUS); err != nil {
		t.Fatalf("HandleText: %v", err)
	}
	if len(e.out.answers) != 1 || e.out.answers[0].Text != "light is on" {
		t.Fatalf("answers = %+v", e.out.answers)
	}
	if !e.out.answers[0].EndSession {
		t.Fatal("script's end-session flag was dropped")
	}
}

func TestUnknownActionRollsBackRegistrations(t *testing.T) {
	e := newEnv(t)
	root := t.TempDir()
	// The manifest binds an action the script never exports.
	writeSkill(t, root, "broken", map[string]string{
		"skill.yaml": `name: broken
intents:
  - name: do_thing
    utterances:
      en-US:
        - do the thing
    actions:
      - missing_action
`,
		"skill.go": lightsScript,
	})

	before := e.actions.Keys()
	rep := e.loader(NewScriptBackend()).LoadAll([]string{root})
	if len(rep.Failed) != 1 || rep.Failed[0].Name != "broken" {
		t.Fatalf("report = %+v, want broken excluded", rep)
	}
	// The script's turn_on action got inserted during the action phase
	// and must be gone again after rollback.
	if got := e.actions.Keys(); !reflect.DeepEqual(got, before) {
		t.Fatalf("action keys after rollback = %v, want %v", got, before)
	}
}

// failingBackend registers some objects and then fails at a chosen
// phase, to exercise mid-load rollback.
type failingBackend struct {
	failPhase string
}

func (b *failingBackend) Name() string { return "failing" }

func (b *failingBackend) LoadSignals(sk *SkillCtx) error {
	if _, err := sk.Signals.Insert(sk.Name, "sig1", &staticSignal{name: "sig1"}); err != nil {
		return err
	}
	if b.failPhase == "signals" {
		return errors.New("injected signal failure")
	}
	return nil
}

func (b *failingBackend) LoadActions(sk *SkillCtx) error {
	if _, err := sk.Actions.Insert(sk.Name, "act1", &staticAction{name: "act1"}); err != nil {
		return err
	}
	if b.failPhase == "actions" {
		return errors.New("injected action failure")
	}
	return nil
}

func (b *failingBackend) LoadQueries(sk *SkillCtx) error {
	if b.failPhase == "queries" {
		return errors.New("injected query failure")
	}
	return nil
}

type staticAction struct{ name string }

func (a *staticAction) Name() string { return a.name }

func (a *staticAction) Call(*types.RequestContext) (types.Answer, error) {
	return types.Answer{Text: "static"}, nil
}

type staticSignal struct{ name string }

func (s *staticSignal) Name() string { return s.name }

func (s *staticSignal) Event(*types.RequestContext) (types.Answer, error) {
	return types.Answer{Text: "static"}, nil
}

func TestRollbackAtEveryPhase(t *testing.T) {
	for _, phase := range []string{"signals", "actions", "queries"} {
		t.Run(phase, func(t *testing.T) {
			e := newEnv(t)
			root := t.TempDir()
			writeSkill(t, root, "partial", map[string]string{
				"skill.yaml": "name: partial\n",
			})

			sigBefore := e.signals.Keys()
			actBefore := e.actions.Keys()
			rep := e.loader(&failingBackend{failPhase: phase}).LoadAll([]string{root})
			if len(rep.Failed) != 1 {
				t.Fatalf("report = %+v, want one failure", rep)
			}
			if got := e.signals.Keys(); !reflect.DeepEqual(got, sigBefore) {
				t.Fatalf("signal keys = %v, want %v", got, sigBefore)
			}
			if got := e.actions.Keys(); !reflect.DeepEqual(got, actBefore) {
				t.Fatalf("action keys = %v, want %v", got, actBefore)
			}
		})
	}
}

func TestFailingSkillDoesNotBlockOthers(t *testing.T) {
	e := newEnv(t)
	root := t.TempDir()
	writeSkill(t, root, "lights", map[string]string{
		"skill.yaml": lightsManifest,
		"skill.go":   lightsScript,
	})
	writeSkill(t, root, "broken", map[string]string{
		"skill.yaml": "name: broken\nintents:\n  - name: x\n", // no actions
	})

	rep := e.loader(NewScriptBackend()).LoadAll([]string{root})
	if !reflect.DeepEqual(rep.Loaded, []string{"lights"}) {
		t.Fatalf("loaded = %v", rep.Loaded)
	}
	if len(rep.Failed) != 1 || rep.Failed[0].Name != "broken" {
		t.Fatalf("failed = %+v", rep.Failed)
	}
}

func TestEventBindingUnknownSignalIsTolerated(t *testing.T) {
	e := newEnv(t)
	root := t.TempDir()
	writeSkill(t, root, "lights", map[string]string{
		"skill.yaml": lightsManifest + `events:
  - name: unrecognized
    signals:
      - no_such_signal
`,
		"skill.go": lightsScript,
	})
	rep := e.loader(NewScriptBackend()).LoadAll([]string{root})
	if len(rep.Failed) != 0 {
		t.Fatalf("failed = %+v, want binding warning only", rep.Failed)
	}
}

func TestScriptImportWhitelist(t *testing.T) {
	e := newEnv(t)
	root := t.TempDir()
	writeSkill(t, root, "sneaky", map[string]string{
		"skill.yaml": "name: sneaky\n",
		"skill.go": `package main

import "os"

func Actions() map[string]func(slots map[string]string) (string, bool, error) {
	os.Exit(1)
	return nil
}
`,
	})
	rep := e.loader(NewScriptBackend()).LoadAll([]string{root})
	if len(rep.Failed) != 1 {
		t.Fatalf("report = %+v, want os import rejected", rep)
	}
}

func TestReadManifestValidation(t *testing.T) {
	root := t.TempDir()

	dir := writeSkill(t, root, "unnamed", map[string]string{
		"skill.yaml": "intents: []\n",
	})
	m, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.Name != "unnamed" {
		t.Fatalf("name = %q, want directory basename", m.Name)
	}

	dir = writeSkill(t, root, "noname", map[string]string{
		"skill.yaml": "intents:\n  - utterances: {}\n    actions: [a]\n",
	})
	if _, err := ReadManifest(dir); err == nil {
		t.Fatal("empty intent name accepted")
	}

	dir = writeSkill(t, root, "noactions", map[string]string{
		"skill.yaml": "intents:\n  - name: x\n",
	})
	if _, err := ReadManifest(dir); err == nil {
		t.Fatal("intent without actions accepted")
	}
}
