package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"voiced/internal/audio"
	"voiced/internal/config"
	"voiced/internal/httpapi"
	"voiced/internal/nlu"
	"voiced/internal/pipeline"
	"voiced/internal/registry"
	"voiced/internal/session"
	"voiced/internal/skills"
	"voiced/internal/stt"
	"voiced/internal/transport"
	"voiced/pkg/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	flags := config.Config{}

	cmd := &cobra.Command{
		Use:           "voiced",
		Short:         "Voice assistant orchestration daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{}
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = loaded
			}
			applyFlagOverrides(cmd, &cfg, flags)
			applyDefaults(&cfg)
			return run(cfg)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "Config file (.yaml/.json/.toml)")
	cmd.Flags().StringVar(&flags.Addr, "addr", "", "Admin HTTP listen address")
	cmd.Flags().StringVar(&flags.WsAddr, "ws-addr", "", "Satellite websocket listen address")
	cmd.Flags().StringVar(&flags.ModelsDir, "models-dir", "", "Directory to scan for *.bin acoustic models")
	cmd.Flags().StringSliceVar(&flags.SkillsDirs, "skills-dir", nil, "Skill directories (repeatable)")
	cmd.Flags().StringVar(&flags.DefaultLanguage, "default-language", "", "Fallback language tag")
	cmd.Flags().IntVar(&flags.PoolCapacity, "pool-capacity", 0, "Idle decoder instances retained per language")
	cmd.Flags().IntVar(&flags.PoolPrewarm, "pool-prewarm", 0, "Decoder instances constructed at startup per language")
	cmd.Flags().Float64Var(&flags.ConfidenceThreshold, "confidence-threshold", 0, "Dispatch confidence gate")
	cmd.Flags().StringVar(&flags.NluTrainerBin, "nlu-trainer", "", "External NLU trainer binary (empty selects builtin)")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "", "Log level (trace..error)")
	return cmd
}

// applyFlagOverrides copies only the flags the user actually set, so a
// config file and flags compose with flags winning.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config, flags config.Config) {
	if cmd.Flags().Changed("addr") {
		cfg.Addr = flags.Addr
	}
	if cmd.Flags().Changed("ws-addr") {
		cfg.WsAddr = flags.WsAddr
	}
	if cmd.Flags().Changed("models-dir") {
		cfg.ModelsDir = flags.ModelsDir
	}
	if cmd.Flags().Changed("skills-dir") {
		cfg.SkillsDirs = flags.SkillsDirs
	}
	if cmd.Flags().Changed("default-language") {
		cfg.DefaultLanguage = flags.DefaultLanguage
	}
	if cmd.Flags().Changed("pool-capacity") {
		cfg.PoolCapacity = flags.PoolCapacity
	}
	if cmd.Flags().Changed("pool-prewarm") {
		cfg.PoolPrewarm = flags.PoolPrewarm
	}
	if cmd.Flags().Changed("confidence-threshold") {
		cfg.ConfidenceThreshold = flags.ConfidenceThreshold
	}
	if cmd.Flags().Changed("nlu-trainer") {
		cfg.NluTrainerBin = flags.NluTrainerBin
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flags.LogLevel
	}
}

func applyDefaults(cfg *config.Config) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.WsAddr == "" {
		cfg.WsAddr = ":8090"
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = "~/models/stt"
	}
	if len(cfg.SkillsDirs) == 0 {
		cfg.SkillsDirs = []string{"~/skills"}
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en-US"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func run(cfg config.Config) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("bad log level %q: %w", cfg.LogLevel, err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()
	httpapi.SetLogger(log)

	defaultLang := types.LanguageTag(cfg.DefaultLanguage)

	// Acoustic models decide the language set the speech side serves.
	models, err := stt.ScanModels(cfg.ModelsDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.ModelsDir).Msg("model scan failed, audio disabled")
	}
	modelPaths := make(map[types.LanguageTag]string, len(models))
	sttLangs := make([]types.LanguageTag, 0, len(models))
	for _, m := range models {
		modelPaths[m.Lang] = m.Path
		sttLangs = append(sttLangs, m.Lang)
	}

	// Speech runtime is best effort: without the whisper build tag (or
	// without models) the daemon still serves the text path.
	var pools *stt.PoolSet
	var detector *stt.Detector
	if len(sttLangs) > 0 {
		factory := stt.NewWhisperFactory(modelPaths)
		poolCfg := stt.PoolConfig{Capacity: cfg.PoolCapacity, Prewarm: cfg.PoolPrewarm}
		pools, err = stt.NewPoolSet(sttLangs, poolCfg, factory)
		if err != nil {
			log.Warn().Err(err).Msg("speech runtime unavailable, audio disabled")
			pools = nil
		} else {
			detector, err = stt.NewDetector(sttLangs, factory)
			if err != nil {
				log.Warn().Err(err).Msg("language detector unavailable, audio disabled")
				pools.Close()
				pools = nil
			}
		}
	} else {
		log.Warn().Str("dir", cfg.ModelsDir).Msg("no acoustic models found, audio disabled")
	}

	nluLangs := sttLangs
	if len(nluLangs) == 0 {
		nluLangs = []types.LanguageTag{defaultLang}
	}

	var backend nlu.Backend
	if cfg.NluTrainerBin != "" {
		eb, err := nlu.NewExecBackend(nlu.ExecConfig{Bin: cfg.NluTrainerBin})
		if err != nil {
			return fmt.Errorf("nlu trainer: %w", err)
		}
		backend = eb
	} else {
		backend = nlu.NewBuiltinBackend()
	}
	nluMgr := nlu.NewManager(backend, nluLangs)

	actions := registry.NewStore[registry.Action]()
	signals := registry.NewStore[registry.Signal]()
	queries := registry.NewStore[registry.Query]()
	sessions := session.NewManager()
	caps := session.NewCapsManager(log)
	pub := pipeline.NewMemoryPublisher(256)

	d := &daemon{
		sessions: sessions,
		caps:     caps,
		pools:    pools,
		nlu:      nluMgr,
		pub:      pub,
		queries:  queries,
		langs:    nluLangs,
		started:  time.Now(),
		state:    "loading",
		log:      log,
	}
	wsServer := transport.NewServer(d, log)

	pipe := pipeline.New(pipeline.Deps{
		Sessions:    sessions,
		Caps:        caps,
		Pools:       pools,
		Detector:    detector,
		Nlu:         nluMgr,
		Actions:     actions,
		Signals:     signals,
		Codec:       audio.DefaultCodec(log),
		Out:         wsServer,
		Publisher:   pub,
		DefaultLang: defaultLang,
		Log:         log,
	}, pipeline.Config{
		Threshold: float32(cfg.ConfidenceThreshold),
	})
	d.pipe = pipe

	loader := skills.NewLoader(skills.Deps{
		Backends:  []skills.Backend{skills.NewScriptBackend()},
		Pipeline:  pipe,
		Languages: nluLangs,
		Signals:   signals,
		Actions:   actions,
		Queries:   queries,
		Log:       log,
	})
	report := loader.LoadAll(cfg.SkillsDirs)
	d.setReport(report)

	trainCtx, cancelTrain := context.WithTimeout(context.Background(), 10*time.Minute)
	if err := pipe.EndLoading(trainCtx, nluLangs); err != nil {
		log.Error().Err(err).Msg("some languages excluded from service")
	}
	cancelTrain()
	d.setReady()
	log.Info().Int("skills", len(report.Loaded)).Int("languages", len(nluLangs)).
		Bool("audio", pools != nil).Msg("loading complete")

	adminSrv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(d)}
	wsMux := http.NewServeMux()
	wsMux.Handle("/ws", wsServer)
	satSrv := &http.Server{Addr: cfg.WsAddr, Handler: wsMux}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("admin api listening")
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin server: %w", err)
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.WsAddr).Msg("satellite channel listening")
		if err := satSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("satellite server: %w", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := satSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("satellite shutdown")
	}
	if err := adminSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("admin shutdown")
	}
	if pools != nil {
		pools.Close()
	}
	if detector != nil {
		detector.Close()
	}
	return nil
}

// daemon glues the transport handler and the admin API service onto the
// pipeline and its collaborators.
type daemon struct {
	pipe     *pipeline.Pipeline
	sessions *session.Manager
	caps     *session.CapsManager
	pools    *stt.PoolSet
	nlu      *nlu.Manager
	pub      *pipeline.MemoryPublisher
	queries  *registry.Store[registry.Query]
	langs    []types.LanguageTag
	started  time.Time
	log      zerolog.Logger

	mu     sync.Mutex
	state  string
	report skills.Report
}

func (d *daemon) setReport(rep skills.Report) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.report = rep
}

func (d *daemon) setReady() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = "ready"
}

// transport.Handler

func (d *daemon) HandleText(deviceID, text string, lang types.LanguageTag) {
	if err := d.pipe.HandleText(context.Background(), deviceID, text, lang); err != nil {
		d.log.Error().Err(err).Str("device", deviceID).Msg("text request failed")
	}
}

func (d *daemon) HandleAudio(deviceID string, data []byte, isFinal bool) {
	if err := d.pipe.HandleAudio(context.Background(), deviceID, data, isFinal); err != nil {
		d.log.Error().Err(err).Str("device", deviceID).Msg("audio request failed")
	}
}

func (d *daemon) HandleEvent(deviceID, name string) {
	d.pipe.HandleEvent(deviceID, name)
}

func (d *daemon) NewDevice(deviceID string, capabilities []string) {
	d.caps.AddClient(deviceID, capabilities)
	d.pub.Publish(pipeline.Event{Name: "new_device", DeviceID: deviceID})
}

func (d *daemon) Disconnected(deviceID string) {
	d.caps.Disconnected(deviceID)
	if err := d.sessions.EndSession(deviceID); err != nil && !session.IsNoSuchSession(err) {
		d.log.Error().Err(err).Str("device", deviceID).Msg("disconnect cleanup failed")
	}
}

// httpapi.Service

func (d *daemon) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == "ready"
}

func (d *daemon) Status() types.StatusResponse {
	d.mu.Lock()
	state := d.state
	rep := d.report
	d.mu.Unlock()

	langs := make([]types.LanguageStatus, 0, len(d.langs))
	for _, lang := range d.langs {
		ls := types.LanguageStatus{Lang: string(lang), NluState: "excluded"}
		if st, ok := d.nlu.StateOf(lang); ok {
			ls.NluState = st.String()
		}
		if d.pools != nil {
			if p, ok := d.pools.Pool(lang); ok {
				ls.PoolIdle = p.IdleCount()
				ls.PoolCapacity = p.Capacity()
			}
		}
		langs = append(langs, ls)
	}

	failed := make([]string, 0, len(rep.Failed))
	for _, f := range rep.Failed {
		failed = append(failed, f.Name)
	}
	now := time.Now()
	return types.StatusResponse{
		State:          state,
		Languages:      langs,
		Sessions:       d.sessions.Count(),
		Skills:         rep.Loaded,
		FailedSkills:   failed,
		UptimeSeconds:  int64(now.Sub(d.started).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}

func (d *daemon) Skills() []types.SkillStatus {
	d.mu.Lock()
	rep := d.report
	d.mu.Unlock()
	out := make([]types.SkillStatus, 0, len(rep.Loaded)+len(rep.Failed))
	for _, name := range rep.Loaded {
		out = append(out, types.SkillStatus{Name: name, Loaded: true})
	}
	for _, f := range rep.Failed {
		out = append(out, types.SkillStatus{Name: f.Name, Error: f.Err.Error()})
	}
	return out
}

func (d *daemon) RecentEvents() []map[string]any {
	evs := d.pub.Recent()
	out := make([]map[string]any, 0, len(evs))
	for _, ev := range evs {
		m := map[string]any{"name": ev.Name, "device_id": ev.DeviceID}
		for k, v := range ev.Fields {
			m[k] = v
		}
		out = append(out, m)
	}
	return out
}

func (d *daemon) Say(ctx context.Context, req types.SayRequest) error {
	return d.pipe.HandleText(ctx, req.DeviceID, req.Text, types.LanguageTag(req.Lang))
}

func (d *daemon) Query(_ context.Context, req types.QueryRequest) (map[string]string, error) {
	key := registry.Mangle(req.Skill, req.Name)
	q, ok := d.queries.Get(key)
	if !ok {
		return nil, registry.ErrNotFound(key)
	}
	return q.Execute(req.Params)
}
