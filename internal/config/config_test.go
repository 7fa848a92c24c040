package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConf(t *testing.T, dir string, content string) string {
	t.Helper()
	path := filepath.Join(dir, "conf.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write conf.yaml: %v", err)
	}
	return path
}

func TestLoadConfigAppliesEmbeddedDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConf(t, dir, "gateway_url: \"wss://gateway.example.net/v1\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.GatewayURL != "wss://gateway.example.net/v1" {
		t.Errorf("GatewayURL = %q, want the configured value", cfg.GatewayURL)
	}
	if cfg.ControlAddr != "127.0.0.1:8102" {
		t.Errorf("ControlAddr = %q, want %q", cfg.ControlAddr, "127.0.0.1:8102")
	}
	if cfg.GatewaySampleRate != 16000 {
		t.Errorf("GatewaySampleRate = %d, want 16000", cfg.GatewaySampleRate)
	}
	if cfg.GatewayOutputSampleRate != 24000 {
		t.Errorf("GatewayOutputSampleRate = %d, want 24000", cfg.GatewayOutputSampleRate)
	}
	if cfg.AmbienceCrossfadeMs != 1200 {
		t.Errorf("AmbienceCrossfadeMs = %d, want 1200", cfg.AmbienceCrossfadeMs)
	}
	if cfg.Log.File.Name != "companiond.log" {
		t.Errorf("Log.File.Name = %q, want %q", cfg.Log.File.Name, "companiond.log")
	}
}

func TestLoadConfigDerivesPathsFromRoot(t *testing.T) {
	dir := t.TempDir()
	path := writeConf(t, dir, "chat_history_dir: \"/var/lib/companiond/chat\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.RootDir != dir {
		t.Errorf("RootDir = %q, want %q", cfg.RootDir, dir)
	}
	if want := filepath.Join(dir, "characters"); cfg.CharactersDir != want {
		t.Errorf("CharactersDir = %q, want %q", cfg.CharactersDir, want)
	}
	if want := filepath.Join(dir, "ambience", "catalog.yaml"); cfg.AmbienceCatalogPath != want {
		t.Errorf("AmbienceCatalogPath = %q, want %q", cfg.AmbienceCatalogPath, want)
	}
	if cfg.ChatHistoryDir != "/var/lib/companiond/chat" {
		t.Errorf("ChatHistoryDir = %q, want the absolute path untouched", cfg.ChatHistoryDir)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConf(t, dir, "gateway_sample_rate: 16000\n")

	t.Setenv("AVELINE_GATEWAY_SAMPLE_RATE", "48000")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.GatewaySampleRate != 48000 {
		t.Errorf("GatewaySampleRate = %d, want env override 48000", cfg.GatewaySampleRate)
	}
}

func TestLoadConfigRootDirFromEnv(t *testing.T) {
	dir := t.TempDir()
	root := t.TempDir()
	path := writeConf(t, dir, "")

	t.Setenv("AVELINE_ROOT_DIR", root)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.RootDir != root {
		t.Errorf("RootDir = %q, want %q from AVELINE_ROOT_DIR", cfg.RootDir, root)
	}
	if want := filepath.Join(root, "characters"); cfg.CharactersDir != want {
		t.Errorf("CharactersDir = %q, want %q", cfg.CharactersDir, want)
	}
}
