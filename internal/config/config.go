package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appdefaults "github.com/aveline-ai/companiond/config"

	"github.com/aveline-ai/companiond/internal/logger"
	"github.com/spf13/viper"
)

// Config represents a config.
type Config struct {
	RootDir     string `mapstructure:"-"`
	ControlAddr string `mapstructure:"control_addr"`

	GatewayURL              string `mapstructure:"gateway_url"`
	GatewayProtocolVersion  int    `mapstructure:"gateway_protocol_version"`
	GatewayAudioFormat      string `mapstructure:"gateway_audio_format"`
	GatewaySampleRate       int    `mapstructure:"gateway_sample_rate"`
	GatewayOutputSampleRate int    `mapstructure:"gateway_output_sample_rate"`
	GatewayChannels         int    `mapstructure:"gateway_channels"`
	GatewayFrameDuration    int    `mapstructure:"gateway_frame_duration"`
	GatewayDeviceID         string `mapstructure:"gateway_device_id"`
	GatewayClientID         string `mapstructure:"gateway_client_id"`
	GatewayAccessToken      string `mapstructure:"gateway_access_token"`
	GatewayHelloTimeoutMs   int    `mapstructure:"gateway_hello_timeout_ms"`

	AmbienceSampleRate  int `mapstructure:"ambience_sample_rate"`
	AmbienceCrossfadeMs int `mapstructure:"ambience_crossfade_ms"`

	DefaultCharacter    string `mapstructure:"default_character"`
	CharactersDir       string `mapstructure:"characters_dir"`
	AmbienceCatalogPath string `mapstructure:"ambience_catalog_path"`
	ChatHistoryDir      string `mapstructure:"chat_history_dir"`

	Log logger.Config `mapstructure:"log"`
}

// Load executes the load function.
func Load() (Config, error) {
	rootDir, err := resolveRootDir()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigName("conf")
	v.SetConfigType("yaml")
	v.AddConfigPath(rootDir)

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return Config{}, fmt.Errorf("load embedded config: %w", err)
	}

	setDefaults(v)

	v.SetEnvPrefix("aveline")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.RootDir = rootDir
	derivePaths(&cfg)

	return cfg, nil
}

// LoadConfig executes the loadConfig function.
func LoadConfig(configPath string) (Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		return Load()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, err
	}

	rootDir := strings.TrimSpace(os.Getenv("AVELINE_ROOT_DIR"))
	if rootDir == "" {
		rootDir = filepath.Dir(absPath)
		if filepath.Base(rootDir) == "config" {
			rootDir = filepath.Dir(rootDir)
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return Config{}, fmt.Errorf("load embedded config: %w", err)
	}

	setDefaults(v)

	v.SetEnvPrefix("aveline")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(absPath)
	if err := v.MergeInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.RootDir = rootDir
	derivePaths(&cfg)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("control_addr", "127.0.0.1:8102")
	v.SetDefault("gateway_protocol_version", 1)
	v.SetDefault("gateway_audio_format", "opus")
	v.SetDefault("gateway_sample_rate", 16000)
	v.SetDefault("gateway_output_sample_rate", 24000)
	v.SetDefault("gateway_channels", 1)
	v.SetDefault("gateway_frame_duration", 20)
	v.SetDefault("gateway_hello_timeout_ms", 10000)
	v.SetDefault("ambience_sample_rate", 44100)
	v.SetDefault("ambience_crossfade_ms", 1200)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.file.enabled", true)
	v.SetDefault("log.file.path", "./data/logs")
	v.SetDefault("log.file.name", "companiond.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv("AVELINE_ROOT_DIR")); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, "conf.yaml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func derivePaths(cfg *Config) {
	cfg.CharactersDir = resolvePath(cfg.RootDir, cfg.CharactersDir, "characters")
	cfg.AmbienceCatalogPath = resolvePath(cfg.RootDir, cfg.AmbienceCatalogPath, filepath.Join("ambience", "catalog.yaml"))
	cfg.ChatHistoryDir = resolvePath(cfg.RootDir, cfg.ChatHistoryDir, filepath.Join("data", "chat"))
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
