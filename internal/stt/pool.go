package stt

import (
	"fmt"
	"sync"

	"voiced/pkg/types"
)

// Defaults applied when corresponding PoolConfig fields are unset.
const (
	defaultPoolCapacity = 3
	defaultPoolPrewarm  = 1
)

// Pool caches idle engine instances for one language. It is advisory,
// not admission-controlled: Take never blocks, it constructs a fresh
// engine when the idle set is empty. Instances returned beyond capacity
// are closed rather than retained, which bounds steady-state memory
// while tolerating bursts.
type Pool struct {
	lang     types.LanguageTag
	capacity int
	factory  Factory

	mu   sync.Mutex
	idle []Engine
}

// PoolConfig holds tunables for pool construction.
type PoolConfig struct {
	Capacity int
	// Prewarm engines are constructed eagerly at startup, capped at
	// Capacity.
	Prewarm int
}

// NewPool builds a pool and pre-warms the configured instance count.
// A construction failure during pre-warm is fatal for the language.
func NewPool(lang types.LanguageTag, cfg PoolConfig, factory Factory) (*Pool, error) {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultPoolCapacity
	}
	prewarm := cfg.Prewarm
	if prewarm < 0 {
		prewarm = defaultPoolPrewarm
	}
	if prewarm > capacity {
		prewarm = capacity
	}
	p := &Pool{lang: lang, capacity: capacity, factory: factory}
	for i := 0; i < prewarm; i++ {
		eng, err := factory(lang)
		if err != nil {
			p.drain()
			return nil, fmt.Errorf("prewarm %s engine: %w", lang, err)
		}
		p.idle = append(p.idle, eng)
	}
	poolIdle.WithLabelValues(string(lang)).Set(float64(len(p.idle)))
	return p, nil
}

func (p *Pool) Lang() types.LanguageTag { return p.lang }

func (p *Pool) Capacity() int { return p.capacity }

// IdleCount reports the number of cached instances.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Take leases an idle engine, or constructs one when none is cached.
func (p *Pool) Take() (*Lease, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		eng := p.idle[n-1]
		p.idle = p.idle[:n-1]
		poolIdle.WithLabelValues(string(p.lang)).Set(float64(len(p.idle)))
		p.mu.Unlock()
		return &Lease{engine: eng, pool: p}, nil
	}
	p.mu.Unlock()
	eng, err := p.factory(p.lang)
	if err != nil {
		return nil, fmt.Errorf("construct %s engine: %w", p.lang, err)
	}
	return &Lease{engine: eng, pool: p}, nil
}

func (p *Pool) put(eng Engine) {
	p.mu.Lock()
	if len(p.idle) < p.capacity {
		p.idle = append(p.idle, eng)
		poolIdle.WithLabelValues(string(p.lang)).Set(float64(len(p.idle)))
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	_ = eng.Close()
}

func (p *Pool) drain() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	poolIdle.WithLabelValues(string(p.lang)).Set(0)
	p.mu.Unlock()
	for _, eng := range idle {
		_ = eng.Close()
	}
}

// Lease is an exclusively held engine on loan from its pool. Releasing
// twice is a no-op.
type Lease struct {
	engine   Engine
	pool     *Pool
	released bool
}

func (l *Lease) Lang() types.LanguageTag { return l.pool.lang }

func (l *Lease) BeginDecoding() error { return l.engine.BeginDecoding() }

func (l *Lease) Process(samples []float32) error { return l.engine.Process(samples) }

func (l *Lease) EndDecoding() (Decoded, error) { return l.engine.EndDecoding() }

// Release returns the engine to its origin pool, which retains or
// discards it depending on the idle count.
func (l *Lease) Release() {
	if l.released {
		return
	}
	l.released = true
	l.pool.put(l.engine)
}

// PoolSet groups the per-language pools, preserving declaration order.
type PoolSet struct {
	langs []types.LanguageTag
	pools map[types.LanguageTag]*Pool
}

// NewPoolSet builds one pool per language, in the given order.
func NewPoolSet(langs []types.LanguageTag, cfg PoolConfig, factory Factory) (*PoolSet, error) {
	ps := &PoolSet{pools: make(map[types.LanguageTag]*Pool, len(langs))}
	for _, lang := range langs {
		p, err := NewPool(lang, cfg, factory)
		if err != nil {
			ps.Close()
			return nil, err
		}
		ps.langs = append(ps.langs, lang)
		ps.pools[lang] = p
	}
	return ps, nil
}

func (ps *PoolSet) Pool(lang types.LanguageTag) (*Pool, bool) {
	p, ok := ps.pools[lang]
	return p, ok
}

func (ps *PoolSet) Langs() []types.LanguageTag { return ps.langs }

func (ps *PoolSet) Close() {
	for _, p := range ps.pools {
		p.drain()
	}
}
