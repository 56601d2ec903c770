package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"voiced/pkg/types"
)

// ScriptBackend loads a skill's imperative half from an interpreted Go
// file (skill.go) evaluated with yaegi, so skill authors never
// recompile the daemon. The script exports plain functions:
//
//	func Actions() map[string]func(slots map[string]string) (string, bool, error)
//	func Signals() map[string]func(slots map[string]string) (string, error)
//	func Queries() map[string]func(params map[string]string) (map[string]string, error)
//
// Any of the three may be omitted. Only a whitelist of stdlib packages
// may be imported; the script has no filesystem, network, or exec
// access.
type ScriptBackend struct {
	allowed map[string]bool
}

const scriptFile = "skill.go"

func NewScriptBackend() *ScriptBackend {
	return &ScriptBackend{
		allowed: map[string]bool{
			"strings":       true,
			"strconv":       true,
			"fmt":           true,
			"math":          true,
			"math/rand":     true,
			"regexp":        true,
			"encoding/json": true,
			"time":          true,
			"sort":          true,
			"errors":        true,
		},
	}
}

func (b *ScriptBackend) Name() string { return "script" }

type scriptProgram struct {
	actions map[string]func(map[string]string) (string, bool, error)
	signals map[string]func(map[string]string) (string, error)
	queries map[string]func(map[string]string) (map[string]string, error)
}

// LoadSignals is the first phase, so it also evaluates the script once
// and stashes the program for the later phases.
func (b *ScriptBackend) LoadSignals(sk *SkillCtx) error {
	prog, err := b.program(sk)
	if err != nil {
		return err
	}
	if prog == nil {
		return nil
	}
	for name, fn := range prog.signals {
		if _, err := sk.Signals.Insert(sk.Name, name, &scriptSignal{name: name, fn: fn}); err != nil {
			return err
		}
	}
	return nil
}

func (b *ScriptBackend) LoadActions(sk *SkillCtx) error {
	prog, err := b.program(sk)
	if err != nil {
		return err
	}
	if prog == nil {
		return nil
	}
	for name, fn := range prog.actions {
		if _, err := sk.Actions.Insert(sk.Name, name, &scriptAction{name: name, fn: fn}); err != nil {
			return err
		}
	}
	return nil
}

func (b *ScriptBackend) LoadQueries(sk *SkillCtx) error {
	prog, err := b.program(sk)
	if err != nil {
		return err
	}
	if prog == nil {
		return nil
	}
	for name, fn := range prog.queries {
		if _, err := sk.Queries.Insert(sk.Name, name, &scriptQuery{name: name, fn: fn}); err != nil {
			return err
		}
	}
	return nil
}

// program evaluates the skill script once per skill; later phases reuse
// the cached result. A missing script file means a manifest-only skill.
func (b *ScriptBackend) program(sk *SkillCtx) (*scriptProgram, error) {
	if v, ok := sk.Scratch(b.Name()); ok {
		return v.(*scriptProgram), nil
	}
	path := filepath.Join(sk.Dir, scriptFile)
	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			sk.SetScratch(b.Name(), (*scriptProgram)(nil))
			return nil, nil
		}
		return nil, fmt.Errorf("read script: %w", err)
	}
	if err := b.validateImports(string(src)); err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib: %w", err)
	}
	if _, err := i.Eval(string(src)); err != nil {
		return nil, fmt.Errorf("evaluate script: %w", err)
	}

	prog := &scriptProgram{}
	if v, err := i.Eval("main.Actions"); err == nil {
		fn, ok := v.Interface().(func() map[string]func(map[string]string) (string, bool, error))
		if !ok {
			return nil, fmt.Errorf("Actions has wrong signature")
		}
		prog.actions = fn()
	}
	if v, err := i.Eval("main.Signals"); err == nil {
		fn, ok := v.Interface().(func() map[string]func(map[string]string) (string, error))
		if !ok {
			return nil, fmt.Errorf("Signals has wrong signature")
		}
		prog.signals = fn()
	}
	if v, err := i.Eval("main.Queries"); err == nil {
		fn, ok := v.Interface().(func() map[string]func(map[string]string) (map[string]string, error))
		if !ok {
			return nil, fmt.Errorf("Queries has wrong signature")
		}
		prog.queries = fn()
	}
	sk.SetScratch(b.Name(), prog)
	return prog, nil
}

// validateImports rejects scripts importing outside the whitelist.
func (b *ScriptBackend) validateImports(code string) error {
	inBlock := false
	for _, line := range strings.Split(code, "\n") {
		t := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(t, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(t, ")"):
			inBlock = false
		case inBlock:
			if pkg := strings.Trim(t, `"`); pkg != "" && !b.allowed[pkg] {
				return fmt.Errorf("import %q not allowed", pkg)
			}
		case strings.HasPrefix(t, "import "):
			pkg := strings.Trim(strings.TrimPrefix(t, "import "), `"`)
			if pkg != "" && !b.allowed[pkg] {
				return fmt.Errorf("import %q not allowed", pkg)
			}
		}
	}
	return nil
}

type scriptAction struct {
	name string
	fn   func(map[string]string) (string, bool, error)
}

func (a *scriptAction) Name() string { return a.name }

func (a *scriptAction) Call(ctx *types.RequestContext) (types.Answer, error) {
	text, end, err := a.fn(ctx.Data)
	if err != nil {
		return types.Answer{}, err
	}
	return types.Answer{Text: text, EndSession: end}, nil
}

type scriptSignal struct {
	name string
	fn   func(map[string]string) (string, error)
}

func (s *scriptSignal) Name() string { return s.name }

func (s *scriptSignal) Event(ctx *types.RequestContext) (types.Answer, error) {
	text, err := s.fn(ctx.Data)
	if err != nil {
		return types.Answer{}, err
	}
	return types.Answer{Text: text}, nil
}

type scriptQuery struct {
	name string
	fn   func(map[string]string) (map[string]string, error)
}

func (q *scriptQuery) Name() string { return q.name }

func (q *scriptQuery) Execute(params map[string]string) (map[string]string, error) {
	return q.fn(params)
}

func (q *scriptQuery) IsMonitorable() bool { return false }
