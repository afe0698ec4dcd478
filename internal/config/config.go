// Package config loads the driver's runtime configuration via viper,
// grounded on the teacher's internal/config/config.go.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the media driver conductor.
type Config struct {
	Conductor ConductorConfig `mapstructure:"conductor"`
	RawLog    RawLogConfig    `mapstructure:"rawlog"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ConductorConfig controls timers, the per-tick command budget and the idle
// back-off settings. The Idle* fields are loaded but not applied: the
// conductor always uses DefaultIdleStrategy.
type ConductorConfig struct {
	ClientLivenessTimeout     time.Duration `mapstructure:"client_liveness_timeout"`
	PublicationLinger         time.Duration `mapstructure:"publication_linger"`
	PublicationConnectionTimeout time.Duration `mapstructure:"publication_connection_timeout"`
	ImageLivenessTimeout      time.Duration `mapstructure:"image_liveness_timeout"`
	TimerInterval             time.Duration `mapstructure:"timer_interval"`
	MaxCommandsPerTick        int           `mapstructure:"max_commands_per_tick"`
	IdleMaxSpins              int           `mapstructure:"idle_max_spins"`
	IdleMaxYields             int           `mapstructure:"idle_max_yields"`
	IdleMinPark               time.Duration `mapstructure:"idle_min_park"`
	IdleMaxPark               time.Duration `mapstructure:"idle_max_park"`
}

// RawLogConfig points at the external raw-log factory's file directory.
type RawLogConfig struct {
	Dir      string `mapstructure:"dir"`
	MaxFiles int    `mapstructure:"max_files"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Endpoint   string `mapstructure:"endpoint"`
}

// LoggingConfig controls zap logger level/encoding.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from environment variables, an optional
// .env file, and an optional config file named "aeron-driver".
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("conductor.client_liveness_timeout", 10*time.Second)
	v.SetDefault("conductor.publication_linger", 5*time.Second)
	v.SetDefault("conductor.publication_connection_timeout", 5*time.Second)
	v.SetDefault("conductor.image_liveness_timeout", 10*time.Second)
	v.SetDefault("conductor.timer_interval", 1*time.Second)
	v.SetDefault("conductor.max_commands_per_tick", 10)
	v.SetDefault("conductor.idle_max_spins", 100)
	v.SetDefault("conductor.idle_max_yields", 100)
	v.SetDefault("conductor.idle_min_park", 1*time.Microsecond)
	v.SetDefault("conductor.idle_max_park", 1*time.Millisecond)

	v.SetDefault("rawlog.dir", "/dev/shm/aeron-driver")
	v.SetDefault("rawlog.max_files", 65536)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9096")
	v.SetDefault("metrics.endpoint", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetConfigName("aeron-driver")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("AERON_DRIVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}

	if cfg.Conductor.MaxCommandsPerTick <= 0 {
		cfg.Conductor.MaxCommandsPerTick = 10
	}
	return cfg, nil
}
