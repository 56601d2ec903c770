package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"voiced/internal/config"
	"voiced/internal/nlu"
	"voiced/internal/pipeline"
	"voiced/internal/registry"
	"voiced/pkg/types"
)

func nluEntity(st SlotTypeDecl) nlu.EntitySpec {
	return nlu.EntitySpec{
		Name:                    st.Name,
		Values:                  st.Values,
		AutomaticallyExtensible: st.AutomaticallyExtensible,
	}
}

// SkillCtx is what a loader backend sees while registering one skill:
// the manifest, the skill directory, and the per-skill local registry
// views to insert into. The scratch map lets a backend carry state
// between its phases (e.g. an evaluated script program).
type SkillCtx struct {
	Name     string
	Dir      string
	Manifest *Manifest
	Signals  *registry.Local[registry.Signal]
	Actions  *registry.Local[registry.Action]
	Queries  *registry.Local[registry.Query]

	scratch map[string]any
}

// Scratch returns per-backend scratch storage.
func (sk *SkillCtx) Scratch(backend string) (any, bool) {
	v, ok := sk.scratch[backend]
	return v, ok
}

func (sk *SkillCtx) SetScratch(backend string, v any) {
	sk.scratch[backend] = v
}

// Backend registers a skill's objects in three phases. The loader runs
// all backends through one phase before the next, in the fixed order
// signals, actions, queries; intents bind last, from the manifest.
type Backend interface {
	Name() string
	LoadSignals(sk *SkillCtx) error
	LoadActions(sk *SkillCtx) error
	LoadQueries(sk *SkillCtx) error
}

// FailedSkill records one excluded skill for the load report.
type FailedSkill struct {
	Name string
	Err  error
}

// Report is the consolidated outcome of one load pass.
type Report struct {
	Loaded []string
	Failed []FailedSkill
}

// Loader walks skill directories and drives the backends, rolling a
// skill's partial registration back on its first error. Loading is
// idempotent across restarts: directories are re-scanned from scratch,
// no partial state persists.
type Loader struct {
	backends []Backend
	pipe     *pipeline.Pipeline
	langs    []types.LanguageTag
	log      zerolog.Logger

	signals *registry.Local[registry.Signal]
	actions *registry.Local[registry.Action]
	queries *registry.Local[registry.Query]
}

// Deps groups loader construction arguments.
type Deps struct {
	Backends []Backend
	Pipeline *pipeline.Pipeline
	// Languages currently in Training; intents are registered for the
	// subset of these each manifest covers.
	Languages []types.LanguageTag
	Signals   *registry.Store[registry.Signal]
	Actions   *registry.Store[registry.Action]
	Queries   *registry.Store[registry.Query]
	Log       zerolog.Logger
}

func NewLoader(deps Deps) *Loader {
	return &Loader{
		backends: deps.Backends,
		pipe:     deps.Pipeline,
		langs:    deps.Languages,
		log:      deps.Log,
		signals:  registry.NewLocal(deps.Signals),
		actions:  registry.NewLocal(deps.Actions),
		queries:  registry.NewLocal(deps.Queries),
	}
}

// LoadAll scans every configured directory for skill subdirectories and
// loads each one. A failing skill is rolled back and excluded; the rest
// keep loading. The consolidated report is logged once at the end.
func (l *Loader) LoadAll(dirs []string) Report {
	var rep Report
	for _, dir := range dirs {
		base, err := config.ExpandPath(dir)
		if err != nil {
			l.log.Error().Err(err).Str("dir", dir).Msg("skills dir unusable")
			continue
		}
		entries, err := os.ReadDir(base)
		if err != nil {
			l.log.Error().Err(err).Str("dir", base).Msg("skills dir unreadable")
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			skillDir := filepath.Join(base, e.Name())
			name, err := l.loadSkill(skillDir)
			if err != nil {
				rep.Failed = append(rep.Failed, FailedSkill{Name: name, Err: err})
				continue
			}
			rep.Loaded = append(rep.Loaded, name)
		}
	}
	sort.Strings(rep.Loaded)
	l.logReport(rep)
	return rep
}

func (l *Loader) loadSkill(dir string) (string, error) {
	name := filepath.Base(dir)
	m, err := ReadManifest(dir)
	if err != nil {
		return name, err
	}
	name = m.Name

	// Snapshot before this skill touches anything; the diff against it
	// is exactly what this skill contributed, however far it got.
	sigBefore := l.signals.Clone()
	actBefore := l.actions.Clone()
	qryBefore := l.queries.Clone()

	sk := &SkillCtx{
		Name:     name,
		Dir:      dir,
		Manifest: m,
		Signals:  l.signals,
		Actions:  l.actions,
		Queries:  l.queries,
		scratch:  make(map[string]any),
	}

	err = l.runPhases(sk)
	if err == nil {
		err = l.registerIntents(sk)
	}
	if err != nil {
		l.rollback(sigBefore, actBefore, qryBefore)
		return name, err
	}
	l.bindEvents(sk)
	return name, nil
}

// runPhases drives every backend through the fixed phase order.
func (l *Loader) runPhases(sk *SkillCtx) error {
	for _, b := range l.backends {
		if err := b.LoadSignals(sk); err != nil {
			return fmt.Errorf("%s signals: %w", b.Name(), err)
		}
	}
	for _, b := range l.backends {
		if err := b.LoadActions(sk); err != nil {
			return fmt.Errorf("%s actions: %w", b.Name(), err)
		}
	}
	for _, b := range l.backends {
		if err := b.LoadQueries(sk); err != nil {
			return fmt.Errorf("%s queries: %w", b.Name(), err)
		}
	}
	return nil
}

// registerIntents feeds the manifest's intents and slot types into the
// NLU (per served language) and binds action handles to mangled keys.
func (l *Loader) registerIntents(sk *SkillCtx) error {
	for _, st := range sk.Manifest.SlotTypes {
		for _, lang := range l.langs {
			l.pipe.AddSlotType(lang, nluEntity(st))
		}
	}
	for _, in := range sk.Manifest.Intents {
		handles := make([]registry.Handle, 0, len(in.Actions))
		for _, actionName := range in.Actions {
			h, ok := sk.Actions.HandleFor(registry.Mangle(sk.Name, actionName))
			if !ok {
				return fmt.Errorf("intent %q binds unknown action %q", in.Name, actionName)
			}
			handles = append(handles, h)
		}
		mangled := ""
		for _, lang := range l.langs {
			utts, ok := in.Utterances[string(lang)]
			if !ok || len(utts) == 0 {
				continue
			}
			mangled = l.pipe.AddIntent(lang, sk.Name, in.Name, utts)
		}
		if mangled == "" {
			return fmt.Errorf("intent %q has no utterances for any served language", in.Name)
		}
		for _, h := range handles {
			l.pipe.BindAction(mangled, h)
		}
	}
	return nil
}

func (l *Loader) bindEvents(sk *SkillCtx) {
	for _, ev := range sk.Manifest.Events {
		for _, sigName := range ev.Signals {
			h, ok := sk.Signals.HandleFor(registry.Mangle(sk.Name, sigName))
			if !ok {
				l.log.Warn().Str("skill", sk.Name).Str("event", ev.Name).
					Str("signal", sigName).Msg("event binds unknown signal")
				continue
			}
			l.pipe.BindEvent(ev.Name, h)
		}
	}
}

// rollback removes exactly this skill's delta from the global stores
// and restores the loader's local views to the snapshot.
func (l *Loader) rollback(sig *registry.Local[registry.Signal], act *registry.Local[registry.Action], qry *registry.Local[registry.Query]) {
	l.signals.Minus(sig).RemoveFromGlobal()
	l.actions.Minus(act).RemoveFromGlobal()
	l.queries.Minus(qry).RemoveFromGlobal()
	l.signals = sig
	l.actions = act
	l.queries = qry
}

func (l *Loader) logReport(rep Report) {
	l.log.Info().Strs("loaded", rep.Loaded).Int("failed", len(rep.Failed)).Msg("skill load pass done")
	for _, f := range rep.Failed {
		l.log.Error().Err(f.Err).Str("skill", f.Name).Msg("skill excluded")
	}
}
