package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.yaml", `
addr: ":9090"
models_dir: /models
sliding_window_tokens: 1024
safety_blocklist: ["bad", "worse"]
max_body_bytes: 65536
cors_origins: ["https://app.example"]
device:
  soc_vendor: qualcomm
  class: flagship
  cores: 8
  capabilities: [neon, opencl, qnn]
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.ModelsDir != "/models" {
		t.Fatalf("basic fields: %+v", cfg)
	}
	if cfg.WindowTokens != 1024 {
		t.Fatalf("sliding_window_tokens: %d", cfg.WindowTokens)
	}
	if len(cfg.SafetyBlocklist) != 2 {
		t.Fatalf("blocklist: %v", cfg.SafetyBlocklist)
	}
	if cfg.MaxBodyBytes != 65536 || len(cfg.CORSOrigins) != 1 {
		t.Fatalf("http fields: max_body_bytes=%d cors=%v", cfg.MaxBodyBytes, cfg.CORSOrigins)
	}
	if cfg.Device.SoCVendor != "qualcomm" || cfg.Device.Class != "flagship" || cfg.Device.Cores != 8 {
		t.Fatalf("device: %+v", cfg.Device)
	}
	if len(cfg.Device.Capabilities) != 3 {
		t.Fatalf("capabilities: %v", cfg.Device.Capabilities)
	}
}

func TestLoad_JSON(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.json", `{"addr":":7070","context_size":4096,"device":{"class":"budget"}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ContextSize != 4096 || cfg.Device.Class != "budget" {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.toml", "addr = \":6060\"\nthreads = 4\n\n[device]\nsoc_vendor = \"mediatek\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":6060" || cfg.Threads != 4 || cfg.Device.SoCVendor != "mediatek" {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("empty path must error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file must error")
	}
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.ini", "addr=:1\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("unsupported extension must error")
	}
}
