package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the daemon configuration, assembled from defaults, an
// optional ionmc.yaml, and IONMC_* environment variables.
type Config struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	DataDir      string `mapstructure:"data_dir"`
	DatabasePath string `mapstructure:"database_path"`

	// Runtime selects the process backend: "local" or "container".
	Runtime        string `mapstructure:"runtime"`
	ContainerImage string `mapstructure:"container_image"`
	JavaPath       string `mapstructure:"java_path"`

	CatalogURL string `mapstructure:"catalog_url"`
	CatalogKey string `mapstructure:"catalog_key"`

	DefaultUser string `mapstructure:"default_user"`
	DefaultPass string `mapstructure:"default_pass"`

	LogLevel string `mapstructure:"log_level"`

	// ColorOutput controls ANSI color in console formatting. Explicit
	// configuration rather than a process-wide mode toggle.
	ColorOutput bool `mapstructure:"color_output"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("runtime", "local")
	v.SetDefault("container_image", "eclipse-temurin:21-jre")
	v.SetDefault("java_path", "java")
	v.SetDefault("catalog_url", "https://api.curseforge.com")
	v.SetDefault("default_user", "admin")
	v.SetDefault("default_pass", "admin")
	v.SetDefault("log_level", "info")
	v.SetDefault("color_output", true)

	v.SetEnvPrefix("IONMC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("ionmc")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ionmc")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(dataDir, "ionmc.db")
	}
	return &cfg, nil
}
