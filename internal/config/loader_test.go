package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `addr: :9999
preferred_backend: http-remote
fallback_enabled: false
fallback_order: [http-remote, subprocess-embed]
subprocess:
  script: /opt/embed/server.py
  request_timeout_ms: 1500
remote:
  base_url: http://gpu:11434
  chat_model: qwen2.5
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.PreferredBackend != "http-remote" || cfg.FallbackEnabled == nil || *cfg.FallbackEnabled {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.FallbackOrder) != 2 || cfg.FallbackOrder[0] != "http-remote" {
		t.Fatalf("fallback order: %v", cfg.FallbackOrder)
	}
	if cfg.Subprocess.Script != "/opt/embed/server.py" || cfg.Subprocess.RequestTimeoutMS != 1500 {
		t.Fatalf("subprocess: %+v", cfg.Subprocess)
	}
	if cfg.Remote.BaseURL != "http://gpu:11434" || cfg.Remote.ChatModel != "qwen2.5" {
		t.Fatalf("remote: %+v", cfg.Remote)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","log_level":"debug","cors_origins":["http://localhost:5173"],"remote":{"embed_model":"mxbai-embed-large"}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.LogLevel != "debug" || len(cfg.CORSOrigins) != 1 || cfg.Remote.EmbedModel != "mxbai-embed-large" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.FallbackEnabled != nil {
		t.Fatalf("absent fallback_enabled should stay nil")
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\npreferred_backend=\"subprocess-embed\"\n\n[subprocess]\nmodel=\"BAAI/bge-small-en-v1.5\"\nstartup_timeout_ms=2000\n\n[remote]\ncurl_path=\"/usr/bin/curl\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.Subprocess.Model != "BAAI/bge-small-en-v1.5" || cfg.Subprocess.StartupTimeoutMS != 2000 || cfg.Remote.CurlPath != "/usr/bin/curl" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.Addr != ":8080" || cfg.LogLevel != "info" || cfg.PreferredBackend != "subprocess-embed" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.FallbackEnabled == nil || !*cfg.FallbackEnabled {
		t.Fatalf("fallback should default to enabled")
	}
	if len(cfg.FallbackOrder) != 2 || cfg.FallbackOrder[0] != "subprocess-embed" || cfg.FallbackOrder[1] != "http-remote" {
		t.Fatalf("fallback order: %v", cfg.FallbackOrder)
	}

	off := false
	cfg = Config{Addr: ":1", FallbackEnabled: &off}.WithDefaults()
	if cfg.Addr != ":1" || *cfg.FallbackEnabled {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
}
