package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"voiced/pkg/types"
)

// ExecBackend drives an external intent-classifier CLI. Training runs
// `<bin> train --lang <tag> --out <artifact>` with TrainData as JSON on
// stdin; parsing runs `<bin> parse --model <artifact>` with the
// utterance on stdin and expects a Result as JSON on stdout. Artifacts
// are opaque blobs owned by the trainer.
type ExecBackend struct {
	bin        string
	workDir    string
	trainWait  time.Duration
	parseWait  time.Duration
	knownLangs map[types.LanguageTag]struct{}
}

// ExecConfig configures the trainer CLI. Zero durations get defaults.
type ExecConfig struct {
	Bin     string
	WorkDir string
	// Languages the trainer supports; empty means all.
	Languages []types.LanguageTag
	TrainWait time.Duration
	ParseWait time.Duration
}

const (
	defaultTrainWait = 2 * time.Minute
	defaultParseWait = 10 * time.Second
)

func NewExecBackend(cfg ExecConfig) (*ExecBackend, error) {
	if strings.TrimSpace(cfg.Bin) == "" {
		return nil, errors.New("trainer binary is empty")
	}
	b := &ExecBackend{
		bin:       cfg.Bin,
		workDir:   cfg.WorkDir,
		trainWait: cfg.TrainWait,
		parseWait: cfg.ParseWait,
	}
	if b.workDir == "" {
		b.workDir = os.TempDir()
	}
	if b.trainWait <= 0 {
		b.trainWait = defaultTrainWait
	}
	if b.parseWait <= 0 {
		b.parseWait = defaultParseWait
	}
	if len(cfg.Languages) > 0 {
		b.knownLangs = make(map[types.LanguageTag]struct{}, len(cfg.Languages))
		for _, l := range cfg.Languages {
			b.knownLangs[l] = struct{}{}
		}
	}
	return b, nil
}

func (b *ExecBackend) IsLangCompatible(lang types.LanguageTag) bool {
	if b.knownLangs == nil {
		return true
	}
	_, ok := b.knownLangs[lang]
	return ok
}

func (b *ExecBackend) Train(ctx context.Context, data TrainData, lang types.LanguageTag) (TrainedModel, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode train data: %w", err)
	}
	artifact := filepath.Join(b.workDir, "nlu-"+string(lang)+".model")
	tctx, cancel := context.WithTimeout(ctx, b.trainWait)
	defer cancel()
	cmd := exec.CommandContext(tctx, b.bin, "train", "--lang", string(lang), "--out", artifact)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("trainer failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	if _, err := os.Stat(artifact); err != nil {
		return nil, fmt.Errorf("trainer produced no artifact: %w", err)
	}
	return &execModel{backend: b, lang: lang, artifact: artifact}, nil
}

type execModel struct {
	backend  *ExecBackend
	lang     types.LanguageTag
	artifact string
}

func (m *execModel) Parse(ctx context.Context, text string) (Result, error) {
	pctx, cancel := context.WithTimeout(ctx, m.backend.parseWait)
	defer cancel()
	cmd := exec.CommandContext(pctx, m.backend.bin, "parse", "--model", m.artifact)
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("parser failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	var res Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return Result{}, fmt.Errorf("decode parse result: %w", err)
	}
	return res, nil
}
