// Package config loads the portal's boot-time configuration (spec §6
// "Environment: none required; all configuration lives in the store" —
// boot config here covers only what must exist before the store can be
// opened: the database path, control-socket bind address, and backup
// file location). Grounded on the teacher's cobra+viper CLI wiring.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the portal's boot-time configuration.
type Config struct {
	DBPath      string `mapstructure:"db_path"`
	ControlAddr string `mapstructure:"control_addr"`
	BackupPath  string `mapstructure:"backup_path"`
}

// Defaults mirror spec §6's "Persistent store" and "Backup file" paths.
func Defaults() Config {
	return Config{
		DBPath:      "./chronokeep-portal.sqlite",
		ControlAddr: "127.0.0.1:9876",
		BackupPath:  "./portal_backup.json",
	}
}

// Load reads configuration from an optional file (path may be empty, in
// which case only defaults and environment overrides apply) using viper,
// the teacher's configuration library.
func Load(path string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("control_addr", cfg.ControlAddr)
	v.SetDefault("backup_path", cfg.BackupPath)
	v.SetEnvPrefix("PORTAL")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
