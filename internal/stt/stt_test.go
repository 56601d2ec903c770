package stt

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"voiced/pkg/types"
)

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

const (
	enUS = types.LanguageTag("en-US")
	frFR = types.LanguageTag("fr-FR")
)

// fakeEngine records lifecycle calls and returns a canned result.
type fakeEngine struct {
	lang       types.LanguageTag
	result     Decoded
	beginErr   error
	processErr error
	endErr     error

	begins, processes, ends int
	closed                  bool
}

func (e *fakeEngine) BeginDecoding() error {
	e.begins++
	return e.beginErr
}

func (e *fakeEngine) Process([]float32) error {
	e.processes++
	return e.processErr
}

func (e *fakeEngine) EndDecoding() (Decoded, error) {
	e.ends++
	if e.endErr != nil {
		return Decoded{}, e.endErr
	}
	return e.result, nil
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

// countingFactory tracks how many engines it constructed per language.
func countingFactory(results map[types.LanguageTag]Decoded, made *atomic.Int32) Factory {
	return func(lang types.LanguageTag) (Engine, error) {
		if made != nil {
			made.Add(1)
		}
		return &fakeEngine{lang: lang, result: results[lang]}, nil
	}
}

func TestPoolPrewarmAndReuse(t *testing.T) {
	var made atomic.Int32
	p, err := NewPool(enUS, PoolConfig{Capacity: 2, Prewarm: 2}, countingFactory(nil, &made))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if got := made.Load(); got != 2 {
		t.Fatalf("prewarm constructed %d engines, want 2", got)
	}
	if p.IdleCount() != 2 {
		t.Fatalf("IdleCount = %d, want 2", p.IdleCount())
	}

	lease, err := p.Take()
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if p.IdleCount() != 1 {
		t.Fatalf("IdleCount after take = %d, want 1", p.IdleCount())
	}
	lease.Release()
	lease.Release() // second release is a no-op
	if p.IdleCount() != 2 {
		t.Fatalf("IdleCount after release = %d, want 2", p.IdleCount())
	}
	if got := made.Load(); got != 2 {
		t.Fatalf("reuse constructed extra engines: %d", got)
	}
}

func TestPoolTakeNeverBlocksAndBoundsIdle(t *testing.T) {
	var made atomic.Int32
	p, err := NewPool(enUS, PoolConfig{Capacity: 1, Prewarm: 0}, countingFactory(nil, &made))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	// Two concurrent leases on a capacity-1 pool: the second is built
	// on demand instead of waiting.
	a, err := p.Take()
	if err != nil {
		t.Fatalf("Take a: %v", err)
	}
	b, err := p.Take()
	if err != nil {
		t.Fatalf("Take b: %v", err)
	}
	if got := made.Load(); got != 2 {
		t.Fatalf("constructed %d engines, want 2", got)
	}

	a.Release()
	b.Release()
	if p.IdleCount() != 1 {
		t.Fatalf("IdleCount = %d, capacity bound not enforced", p.IdleCount())
	}
	// The over-capacity engine must have been closed, not leaked.
	if eng := b.engine.(*fakeEngine); !eng.closed {
		t.Fatal("over-capacity engine was not closed")
	}
}

func TestPoolPrewarmFailureIsFatal(t *testing.T) {
	boom := errors.New("model missing")
	calls := 0
	factory := func(types.LanguageTag) (Engine, error) {
		calls++
		if calls > 1 {
			return nil, boom
		}
		return &fakeEngine{}, nil
	}
	if _, err := NewPool(enUS, PoolConfig{Capacity: 3, Prewarm: 2}, factory); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestPoolSetOrderAndLookup(t *testing.T) {
	ps, err := NewPoolSet([]types.LanguageTag{enUS, frFR}, PoolConfig{Prewarm: 0}, countingFactory(nil, nil))
	if err != nil {
		t.Fatalf("NewPoolSet: %v", err)
	}
	defer ps.Close()
	langs := ps.Langs()
	if len(langs) != 2 || langs[0] != enUS || langs[1] != frFR {
		t.Fatalf("Langs = %v", langs)
	}
	if _, ok := ps.Pool(frFR); !ok {
		t.Fatal("fr-FR pool missing")
	}
	if _, ok := ps.Pool("de-DE"); ok {
		t.Fatal("lookup invented a pool")
	}
}

func TestDetectLangPicksHighestConfidence(t *testing.T) {
	d, err := NewDetector([]types.LanguageTag{enUS, frFR}, countingFactory(map[types.LanguageTag]Decoded{
		enUS: {Hypothesis: "hello", Confidence: 0.4},
		frFR: {Hypothesis: "bonjour", Confidence: 0.9},
	}, nil))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	defer d.Close()
	lang, err := d.DetectLang([]float32{0, 0, 0})
	if err != nil {
		t.Fatalf("DetectLang: %v", err)
	}
	if lang != frFR {
		t.Fatalf("detected %s, want fr-FR", lang)
	}
}

func TestDetectLangTieKeepsDeclarationOrder(t *testing.T) {
	d, err := NewDetector([]types.LanguageTag{enUS, frFR}, countingFactory(map[types.LanguageTag]Decoded{
		enUS: {Confidence: 0.5},
		frFR: {Confidence: 0.5},
	}, nil))
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	defer d.Close()
	lang, err := d.DetectLang([]float32{0})
	if err != nil {
		t.Fatalf("DetectLang: %v", err)
	}
	if lang != enUS {
		t.Fatalf("tie resolved to %s, want earlier-declared en-US", lang)
	}
}

func TestDetectLangFailsWhenAnyEngineFails(t *testing.T) {
	boom := errors.New("decode blew up")
	factory := func(lang types.LanguageTag) (Engine, error) {
		e := &fakeEngine{lang: lang, result: Decoded{Confidence: 0.8}}
		if lang == frFR {
			e.endErr = boom
		}
		return e, nil
	}
	d, err := NewDetector([]types.LanguageTag{enUS, frFR}, factory)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	defer d.Close()
	if _, err := d.DetectLang([]float32{0}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestScanModelsMapsFilenamesToLanguages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"en-US.bin", "fr-FR.bin", "README.md"} {
		writeFile(t, dir, name)
	}
	models, err := ScanModels(dir)
	if err != nil {
		t.Fatalf("ScanModels: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("found %d models, want 2", len(models))
	}
	got := map[types.LanguageTag]bool{}
	for _, m := range models {
		got[m.Lang] = true
	}
	if !got[enUS] || !got[frFR] {
		t.Fatalf("models = %+v", models)
	}
}
