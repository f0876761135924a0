package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds server settings. Values come from an optional YAML file with
// FORMFORGE_* environment variables taking precedence. The JWT secret is
// deliberately env-only (FORMFORGE_JWT_SECRET) and never read from a file.
type Config struct {
	Addr          string `yaml:"addr"`
	DBPath        string `yaml:"db_path"`
	MigrationsDir string `yaml:"migrations_dir"`
	StaticDir     string `yaml:"static_dir"`
}

func Default() Config {
	return Config{
		Addr:   ":8080",
		DBPath: "formforge.db",
	}
}

// Load reads path (when non-empty) over the defaults, then applies env
// overrides. A missing file at an explicitly given path is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.Addr = envOr("FORMFORGE_ADDR", cfg.Addr)
	cfg.DBPath = envOr("FORMFORGE_DB_PATH", cfg.DBPath)
	cfg.MigrationsDir = envOr("FORMFORGE_MIGRATIONS_DIR", cfg.MigrationsDir)
	cfg.StaticDir = envOr("FORMFORGE_STATIC_DIR", cfg.StaticDir)
	return cfg, nil
}

// envOr returns the environment variable value for key, or fallback if empty.
func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
