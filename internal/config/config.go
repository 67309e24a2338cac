// Package config loads the scanner configuration from a YAML file with
// environment overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  int    `yaml:"read_timeout_seconds"`
	WriteTimeout int    `yaml:"write_timeout_seconds"`
}

type Upstream struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	UserAgent string `yaml:"user_agent"`
}

type Cache struct {
	Capacity         int `yaml:"capacity"`
	ResultTTLMinutes int `yaml:"result_ttl_minutes"`
	ErrorTTLMinutes  int `yaml:"error_ttl_minutes"`
	SweepIntervalSec int `yaml:"sweep_interval_seconds"`
}

type Queue struct {
	InitialIntervalMs int     `yaml:"initial_interval_ms"`
	FloorIntervalMs   int     `yaml:"floor_interval_ms"`
	CeilingIntervalMs int     `yaml:"ceiling_interval_ms"`
	IncreaseFactor    float64 `yaml:"increase_factor"`
	DecreaseFactor    float64 `yaml:"decrease_factor"`
	SuccessStreak     int     `yaml:"success_streak"`
	BackoffBaseMs     int     `yaml:"backoff_base_ms"`
	BackoffCapMs      int     `yaml:"backoff_cap_ms"`
	MaxRetries        int     `yaml:"max_retries"`
}

type Progress struct {
	Alpha            float64 `yaml:"alpha"`
	SeedUncachedMs   float64 `yaml:"seed_uncached_ms"`
	SeedCachedMs     float64 `yaml:"seed_cached_ms"`
	InactivityMin    int     `yaml:"inactivity_minutes"`
	GCIntervalMin    int     `yaml:"gc_interval_minutes"`
}

type Scan struct {
	MaxBatchDays int `yaml:"max_batch_days"`
}

type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Root struct {
	Server   Server   `yaml:"server"`
	Upstream Upstream `yaml:"upstream"`
	Cache    Cache    `yaml:"cache"`
	Queue    Queue    `yaml:"queue"`
	Progress Progress `yaml:"progress"`
	Scan     Scan     `yaml:"scan"`
	Log      Log      `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Root {
	var c Root
	c.applyDefaults()
	return c
}

// Load reads a YAML config file, fills defaults, and applies environment
// overrides.
func Load(path string) (Root, error) {
	var c Root

	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()
	c.applyEnv()
	return c, nil
}

func (c *Root) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60
	}
	if c.Upstream.TimeoutMs == 0 {
		c.Upstream.TimeoutMs = 30000
	}
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = "farescout/0.1.0"
	}
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = 1000
	}
	if c.Cache.ResultTTLMinutes == 0 {
		c.Cache.ResultTTLMinutes = 120
	}
	if c.Cache.ErrorTTLMinutes == 0 {
		c.Cache.ErrorTTLMinutes = 5
	}
	if c.Cache.SweepIntervalSec == 0 {
		c.Cache.SweepIntervalSec = 60
	}
	if c.Queue.InitialIntervalMs == 0 {
		c.Queue.InitialIntervalMs = 1500
	}
	if c.Queue.FloorIntervalMs == 0 {
		c.Queue.FloorIntervalMs = 500
	}
	if c.Queue.CeilingIntervalMs == 0 {
		c.Queue.CeilingIntervalMs = 30000
	}
	if c.Queue.IncreaseFactor == 0 {
		c.Queue.IncreaseFactor = 1.5
	}
	if c.Queue.DecreaseFactor == 0 {
		c.Queue.DecreaseFactor = 0.75
	}
	if c.Queue.SuccessStreak == 0 {
		c.Queue.SuccessStreak = 3
	}
	if c.Queue.BackoffBaseMs == 0 {
		c.Queue.BackoffBaseMs = 2000
	}
	if c.Queue.BackoffCapMs == 0 {
		c.Queue.BackoffCapMs = 60000
	}
	if c.Queue.MaxRetries == 0 {
		c.Queue.MaxRetries = 3
	}
	if c.Progress.Alpha == 0 {
		c.Progress.Alpha = 0.2
	}
	if c.Progress.SeedUncachedMs == 0 {
		c.Progress.SeedUncachedMs = 2000
	}
	if c.Progress.SeedCachedMs == 0 {
		c.Progress.SeedCachedMs = 100
	}
	if c.Progress.InactivityMin == 0 {
		c.Progress.InactivityMin = 45
	}
	if c.Progress.GCIntervalMin == 0 {
		c.Progress.GCIntervalMin = 5
	}
	if c.Scan.MaxBatchDays == 0 {
		c.Scan.MaxBatchDays = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Root) applyEnv() {
	if v := os.Getenv("FARESCOUT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("FARESCOUT_UPSTREAM_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv("FARESCOUT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// UpstreamTimeout returns the upstream timeout as a duration.
func (c *Root) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutMs) * time.Millisecond
}
