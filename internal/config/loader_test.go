package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeTemp(t, "voiced.yaml", `
addr: ":9090"
ws_addr: ":9091"
models_dir: /opt/models
skills_dirs:
  - /opt/skills
  - ~/skills
default_language: fr-FR
pool_capacity: 4
confidence_threshold: 0.7
log_level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.WsAddr != ":9091" {
		t.Fatalf("addrs = %q / %q", cfg.Addr, cfg.WsAddr)
	}
	if !reflect.DeepEqual(cfg.SkillsDirs, []string{"/opt/skills", "~/skills"}) {
		t.Fatalf("skills dirs = %v", cfg.SkillsDirs)
	}
	if cfg.DefaultLanguage != "fr-FR" || cfg.PoolCapacity != 4 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ConfidenceThreshold != 0.7 {
		t.Fatalf("threshold = %v", cfg.ConfidenceThreshold)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeTemp(t, "voiced.json", `{"addr": ":1234", "default_language": "en-US"}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":1234" || cfg.DefaultLanguage != "en-US" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeTemp(t, "voiced.toml", "addr = \":5678\"\npool_prewarm = 2\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":5678" || cfg.PoolPrewarm != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeTemp(t, "voiced.ini", "addr=:1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("unsupported extension accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
	if _, err := Load(""); err == nil {
		t.Fatal("empty path accepted")
	}
}

func TestLoadBadSyntax(t *testing.T) {
	path := writeTemp(t, "bad.yaml", "addr: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("bad yaml accepted")
	}
}
