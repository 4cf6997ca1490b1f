package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "chargebook/libs/config"
)

// HTTPConfig holds the listen address.
type HTTPConfig struct {
	Port string `yaml:"port" env:"BOOKING_HTTP_PORT"`
}

// DatabaseConfig holds the durable store settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"BOOKING_POSTGRES_DSN"`
}

// RedisConfig holds the shared cache settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"BOOKING_REDIS_ADDR"`
	Password string `yaml:"password" env:"BOOKING_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"BOOKING_REDIS_DB"`
}

// HoldConfig controls the ephemeral slot lock.
type HoldConfig struct {
	TTLSeconds int `yaml:"ttlSeconds" env:"BOOKING_HOLD_TTL"`
}

// AvailabilityConfig controls the slot grid computation and its cache.
type AvailabilityConfig struct {
	SlotMinutes              int `yaml:"slotMinutes" env:"BOOKING_SLOT_MINUTES"`
	CacheTTLSeconds          int `yaml:"cacheTtlSeconds" env:"BOOKING_AVAILABILITY_CACHE_TTL"`
	OccupiedLookaheadMinutes int `yaml:"occupiedLookaheadMinutes" env:"BOOKING_OCCUPIED_LOOKAHEAD_MINUTES"`
	ProjectionTTLSeconds     int `yaml:"projectionTtlSeconds" env:"BOOKING_PROJECTION_TTL"`
}

// NoShowConfig controls the background reconciler.
type NoShowConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds" env:"BOOKING_NOSHOW_INTERVAL"`
	GraceMinutes    int `yaml:"graceMinutes" env:"BOOKING_NOSHOW_GRACE_MINUTES"`
	LookbackMinutes int `yaml:"lookbackMinutes" env:"BOOKING_NOSHOW_LOOKBACK_MINUTES"`
}

// Config defines booking service configuration.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Hold         HoldConfig         `yaml:"hold"`
	Availability AvailabilityConfig `yaml:"availability"`
	NoShow       NoShowConfig       `yaml:"noShow"`
}

// Load reads configuration via the shared helper and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP:  HTTPConfig{Port: "8084"},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Hold:  HoldConfig{TTLSeconds: 600},
		Availability: AvailabilityConfig{
			SlotMinutes:              60,
			CacheTTLSeconds:          60,
			OccupiedLookaheadMinutes: 30,
			ProjectionTTLSeconds:     3600,
		},
		NoShow: NoShowConfig{
			IntervalSeconds: 300,
			GraceMinutes:    15,
			LookbackMinutes: 60,
		},
	}

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return nil, errors.New("config: redis addr required")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8084"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// HoldTTL returns the hold lifetime as duration.
func (c *Config) HoldTTL() time.Duration {
	if c.Hold.TTLSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Hold.TTLSeconds) * time.Second
}

// SlotDuration returns the default slot size.
func (c *Config) SlotDuration() time.Duration {
	if c.Availability.SlotMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Availability.SlotMinutes) * time.Minute
}

// AvailabilityCacheTTL returns the slot grid cache lifetime.
func (c *Config) AvailabilityCacheTTL() time.Duration {
	if c.Availability.CacheTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Availability.CacheTTLSeconds) * time.Second
}

// OccupiedLookahead returns how far ahead a live-occupied connector blocks slots.
func (c *Config) OccupiedLookahead() time.Duration {
	if c.Availability.OccupiedLookaheadMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Availability.OccupiedLookaheadMinutes) * time.Minute
}

// ProjectionTTL returns the connector state projection lifetime.
func (c *Config) ProjectionTTL() time.Duration {
	if c.Availability.ProjectionTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.Availability.ProjectionTTLSeconds) * time.Second
}

// NoShowInterval returns the reconciler pass interval.
func (c *Config) NoShowInterval() time.Duration {
	if c.NoShow.IntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.NoShow.IntervalSeconds) * time.Second
}

// NoShowGrace returns how long after start a booking may remain unattended.
func (c *Config) NoShowGrace() time.Duration {
	if c.NoShow.GraceMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.NoShow.GraceMinutes) * time.Minute
}

// NoShowLookback bounds the reconciler's candidate scan.
func (c *Config) NoShowLookback() time.Duration {
	if c.NoShow.LookbackMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.NoShow.LookbackMinutes) * time.Minute
}
