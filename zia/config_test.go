package zia

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfigOverridesDefaults(t *testing.T) {
	data := []byte(`
[gc]
stress = true
grow_factor = 1.5

[debug]
trace_execution = true

[limits]
frames_max = 32
`)
	cfg, err := ParseConfig("zia.toml", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.GC.Stress || cfg.GC.GrowFactor != 1.5 {
		t.Fatalf("gc section not applied: %+v", cfg.GC)
	}
	if cfg.GC.InitialThreshold != DefaultConfig().GC.InitialThreshold {
		t.Fatalf("missing key must keep its default, got %d", cfg.GC.InitialThreshold)
	}
	if !cfg.Debug.TraceExecution || cfg.Debug.PrintCode {
		t.Fatalf("debug section not applied: %+v", cfg.Debug)
	}
	if cfg.Limits.FramesMax != 32 {
		t.Fatalf("expected 32 frames, got %d", cfg.Limits.FramesMax)
	}
	if cfg.Path != "zia.toml" {
		t.Fatalf("path not recorded: %q", cfg.Path)
	}
}

func TestParseConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"[gc]\ngrow_factor = 0.5":          "grow_factor",
		"[gc]\ninitial_threshold = 0":      "initial_threshold",
		"[limits]\nframes_max = 1000":      "frames_max",
		"[gc\nstress = true":               "parsing",
		"[gc]\ngrow_factor = \"beaucoup\"": "parsing",
	}
	for data, want := range cases {
		_, err := ParseConfig("zia.toml", []byte(data))
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("%q: expected an error mentioning %q, got %v", data, want, err)
		}
	}
}

func TestFindConfigWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, ConfigFileName)
	if err := os.WriteFile(path, []byte("[gc]\nlog = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := FindConfig(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.GC.Log || cfg.Path != path {
		t.Fatalf("expected config from %s, got %+v", path, cfg)
	}
}

func TestFindConfigDefaults(t *testing.T) {
	cfg, err := FindConfig(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Path != "" && !strings.HasSuffix(cfg.Path, ConfigFileName) {
		t.Fatalf("unexpected config path %q", cfg.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}
