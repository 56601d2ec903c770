package stt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voiced/internal/config"
	"voiced/pkg/types"
)

// ScanModels scans a directory for per-language acoustic model files
// (*.bin) and builds the model set from filenames: "en-US.bin" serves
// language "en-US". The resulting set defines the configured languages.
func ScanModels(dir string) ([]types.AcousticModel, error) {
	base, err := config.ExpandPath(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.AcousticModel
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".bin") {
			continue
		}
		lang := types.LanguageTag(strings.TrimSuffix(name, filepath.Ext(name)))
		models = append(models, types.AcousticModel{Lang: lang, Path: filepath.Join(abs, name)})
	}
	return models, nil
}
