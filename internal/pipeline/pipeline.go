package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voiced/internal/audio"
	"voiced/internal/nlu"
	"voiced/internal/registry"
	"voiced/internal/session"
	"voiced/internal/stt"
	"voiced/pkg/types"
)

// MinGoodConfidence is the dispatch gate: a parse below it (or with no
// intent name at all) falls back to the unrecognized event instead of
// invoking actions.
const MinGoodConfidence float32 = 0.8

// Well-known fallback event names.
const (
	EventEmptyReco    = "empty_reco"
	EventUnrecognized = "unrecognized"
)

// Answerer is the output side of the transport: it carries an action's
// answer back to the satellite that asked.
type Answerer interface {
	Answer(deviceID string, ans types.Answer) error
}

// Config holds pipeline construction tunables.
type Config struct {
	// Threshold overrides MinGoodConfidence when > 0.
	Threshold float32
	// BaseContext is copied into every request context before slots
	// are merged in.
	BaseContext map[string]string
	// DefaultAnswer is spoken when a fallback event has no bound
	// signal, so the user always hears something.
	DefaultAnswer string
}

// Pipeline turns decoded utterances and typed text into dispatched
// actions. Per inbound item it moves Idle -> AwaitingDecode ->
// Dispatching -> Idle; no lock is held across a decode or parse call.
type Pipeline struct {
	sessions *session.Manager
	caps     *session.CapsManager
	pools    *stt.PoolSet
	detector *stt.Detector
	nlu      *nlu.Manager
	actions  *registry.Store[registry.Action]
	signals  *registry.Store[registry.Signal]
	codec    audio.Codec
	pub      EventPublisher
	out      Answerer
	log      zerolog.Logger

	threshold     float32
	base          map[string]string
	defaultAnswer string
	defaultLang   types.LanguageTag

	mu      sync.Mutex
	intents map[string]*registry.ActionSet
	events  map[string][]registry.Handle
}

// Deps groups the collaborators the pipeline dispatches through.
type Deps struct {
	Sessions *session.Manager
	Caps     *session.CapsManager
	// Pools and Detector may be nil when no speech runtime is built
	// in; audio requests then fail while text keeps working.
	Pools    *stt.PoolSet
	Detector *stt.Detector
	Nlu      *nlu.Manager
	Actions  *registry.Store[registry.Action]
	Signals  *registry.Store[registry.Signal]
	Codec    audio.Codec
	Out      Answerer
	// Publisher may be nil; events are then dropped.
	Publisher   EventPublisher
	DefaultLang types.LanguageTag
	Log         zerolog.Logger
}

func New(deps Deps, cfg Config) *Pipeline {
	p := &Pipeline{
		sessions:      deps.Sessions,
		caps:          deps.Caps,
		pools:         deps.Pools,
		detector:      deps.Detector,
		nlu:           deps.Nlu,
		actions:       deps.Actions,
		signals:       deps.Signals,
		codec:         deps.Codec,
		out:           deps.Out,
		pub:           deps.Publisher,
		log:           deps.Log,
		threshold:     cfg.Threshold,
		base:          cfg.BaseContext,
		defaultAnswer: cfg.DefaultAnswer,
		defaultLang:   deps.DefaultLang,
		intents:       make(map[string]*registry.ActionSet),
		events:        make(map[string][]registry.Handle),
	}
	if p.pub == nil {
		p.pub = noopPublisher{}
	}
	if p.threshold <= 0 {
		p.threshold = MinGoodConfidence
	}
	if p.defaultAnswer == "" {
		p.defaultAnswer = "I didn't understand"
	}
	return p
}

// AddIntent registers an intent's utterances with the NLU (legal only
// while the language is Training) and returns the mangled key actions
// are bound under. Exposed to the skill loader.
func (p *Pipeline) AddIntent(lang types.LanguageTag, skill, intent string, utterances []string) string {
	return p.nlu.AddIntent(lang, skill, intent, utterances)
}

// AddSlotType registers a slot type with the NLU. Exposed to the skill
// loader while a language is Training.
func (p *Pipeline) AddSlotType(lang types.LanguageTag, def nlu.EntitySpec) {
	p.nlu.AddEntity(lang, def)
}

// BindAction attaches an action handle to a mangled intent key.
func (p *Pipeline) BindAction(mangled string, h registry.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.intents[mangled]
	if !ok {
		set = registry.NewActionSet()
		p.intents[mangled] = set
	}
	set.Add(h)
}

// BindEvent attaches a signal handle to a fallback event name.
func (p *Pipeline) BindEvent(name string, h registry.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[name] = append(p.events[name], h)
}

// EndLoading trains every language and flips the NLU into serving.
// Called exactly once, after all skills have registered.
func (p *Pipeline) EndLoading(ctx context.Context, langs []types.LanguageTag) error {
	return p.nlu.EndLoading(ctx, langs)
}

// HandleText dispatches a typed request: a trivial decode result with
// confidence 1.0, skipping STT entirely.
func (p *Pipeline) HandleText(ctx context.Context, deviceID, text string, lang types.LanguageTag) error {
	lang = types.NegotiateLanguage(lang, p.nlu.ServedLanguages(), p.defaultLang)
	p.dispatch(ctx, deviceID, lang, stt.Decoded{Hypothesis: text, Confidence: 1.0}, uuid.NewString())
	return nil
}

// HandleAudio feeds one audio frame into the device's utterance. On the
// final-frame marker the decode ends and the hypothesis is dispatched.
// Frames for one device arrive in order (per-topic transport ordering);
// the session mutex serializes any concurrent second attempt.
func (p *Pipeline) HandleAudio(ctx context.Context, deviceID string, data []byte, isFinal bool) error {
	if p.pools == nil || p.detector == nil {
		return errors.New("audio pipeline unavailable: no speech runtime")
	}
	samples, err := p.codec.Decode(data)
	if err != nil {
		p.log.Error().Err(err).Str("device", deviceID).Msg("audio decode failed")
		utterancesTotal.WithLabelValues(outcomeError).Inc()
		p.signalEvent(EventUnrecognized, deviceID, p.defaultLang)
		return nil
	}
	sess := p.sessions.SessionFor(deviceID)
	lease, lang, err := sess.GetSttOrMake(p.pools, p.detector, samples)
	if err != nil {
		p.log.Error().Err(err).Str("device", deviceID).Msg("stt lease failed")
		utterancesTotal.WithLabelValues(outcomeError).Inc()
		p.signalEvent(EventUnrecognized, deviceID, p.defaultLang)
		return nil
	}
	if err := lease.Process(samples); err != nil {
		p.log.Error().Err(err).Str("device", deviceID).Msg("stt process failed")
		utterancesTotal.WithLabelValues(outcomeError).Inc()
		p.signalEvent(EventUnrecognized, deviceID, lang)
		return nil
	}
	if !isFinal {
		return nil
	}
	uttID := sess.UtteranceID()
	dec, err := sess.EndDecoding()
	if err != nil {
		p.log.Error().Err(err).Str("device", deviceID).Msg("stt end failed")
		utterancesTotal.WithLabelValues(outcomeError).Inc()
		p.signalEvent(EventUnrecognized, deviceID, lang)
		return nil
	}
	p.pub.Publish(Event{Name: "utterance_end", DeviceID: deviceID, Fields: map[string]any{
		"lang": string(lang), "confidence": dec.Confidence, "utterance_id": uttID,
	}})
	p.dispatch(ctx, deviceID, lang, dec, uttID)
	return nil
}

// HandleEvent routes a transport-delivered named event (e.g. a button
// press) to its bound signals.
func (p *Pipeline) HandleEvent(deviceID, name string) {
	p.signalEvent(name, deviceID, p.defaultLang)
}

// dispatch resolves an utterance to actions. The utterance id ties the
// log lines and events of one turn together. Per-request failures are
// recovered locally: logged, and a fallback event is emitted instead of
// propagating to the transport layer.
func (p *Pipeline) dispatch(ctx context.Context, deviceID string, lang types.LanguageTag, dec stt.Decoded, uttID string) {
	if dec.Hypothesis == "" {
		utterancesTotal.WithLabelValues(outcomeEmpty).Inc()
		p.signalEvent(EventEmptyReco, deviceID, lang)
		return
	}
	res, err := p.nlu.Parse(ctx, lang, dec.Hypothesis)
	if err != nil {
		p.log.Error().Err(err).Str("device", deviceID).Str("lang", string(lang)).
			Str("utterance", uttID).Msg("nlu parse failed")
		utterancesTotal.WithLabelValues(outcomeError).Inc()
		p.signalEvent(EventUnrecognized, deviceID, lang)
		return
	}
	if res.Name == "" || res.Confidence < p.threshold {
		p.log.Info().Str("device", deviceID).Str("hypothesis", dec.Hypothesis).
			Str("utterance", uttID).Float32("confidence", res.Confidence).Msg("low confidence parse")
		utterancesTotal.WithLabelValues(outcomeUnrecognized).Inc()
		p.signalEvent(EventUnrecognized, deviceID, lang)
		return
	}

	intent, _ := p.nlu.Demangle(res.Name)
	reqCtx := types.NewRequestContext(lang, deviceID, p.base, res.Slots)
	reqCtx.Intent = intent
	if p.caps != nil {
		reqCtx.Capabilities = p.caps.Caps(deviceID)
	}

	p.mu.Lock()
	set, ok := p.intents[res.Name]
	p.mu.Unlock()
	if !ok {
		p.log.Warn().Str("intent", res.Name).Str("utterance", uttID).Msg("intent has no bound actions")
		utterancesTotal.WithLabelValues(outcomeUnrecognized).Inc()
		p.signalEvent(EventUnrecognized, deviceID, lang)
		return
	}

	p.pub.Publish(Event{Name: "dispatch", DeviceID: deviceID, Fields: map[string]any{
		"intent": intent, "confidence": res.Confidence, "utterance_id": uttID,
	}})
	answers, failed := set.CallAll(p.actions, reqCtx, p.log)
	if failed > 0 {
		actionFailures.Add(float64(failed))
	}
	utterancesTotal.WithLabelValues(outcomeDispatched).Inc()

	endSession := false
	for _, ans := range answers {
		if err := p.out.Answer(deviceID, ans); err != nil {
			p.log.Error().Err(err).Str("device", deviceID).Msg("answer delivery failed")
		}
		if ans.EndSession {
			endSession = true
		}
	}
	// The turn ends only when the action layer says so, never
	// automatically on a reply.
	if endSession {
		if err := p.sessions.EndSession(deviceID); err != nil && !session.IsNoSuchSession(err) {
			p.log.Error().Err(err).Str("device", deviceID).Msg("end session failed")
		}
		p.pub.Publish(Event{Name: "session_end", DeviceID: deviceID})
	}
}

// signalEvent fans a named event out to its bound signals, or answers
// with the default text when nothing is bound.
func (p *Pipeline) signalEvent(name, deviceID string, lang types.LanguageTag) {
	p.pub.Publish(Event{Name: name, DeviceID: deviceID, Fields: map[string]any{"lang": string(lang)}})
	reqCtx := types.NewRequestContext(lang, deviceID, p.base, nil)
	if p.caps != nil {
		reqCtx.Capabilities = p.caps.Caps(deviceID)
	}

	p.mu.Lock()
	handles := p.events[name]
	p.mu.Unlock()

	delivered := false
	for _, h := range handles {
		sig, ok := p.signals.Resolve(h)
		if !ok {
			p.log.Warn().Str("event", name).Msg("skipping dead signal binding")
			continue
		}
		ans, err := sig.Event(reqCtx)
		if err != nil {
			p.log.Error().Err(err).Str("signal", sig.Name()).Str("event", name).Msg("signal failed")
			continue
		}
		if ans.Text != "" {
			if err := p.out.Answer(deviceID, ans); err != nil {
				p.log.Error().Err(err).Str("device", deviceID).Msg("answer delivery failed")
			}
			delivered = true
		}
	}
	if !delivered && (name == EventEmptyReco || name == EventUnrecognized) {
		if err := p.out.Answer(deviceID, types.Answer{Text: p.defaultAnswer}); err != nil {
			p.log.Error().Err(err).Str("device", deviceID).Msg("answer delivery failed")
		}
	}
}
