// Package config loads the process configuration: a YAML file, optional
// .env files and EDGEPURGE_* environment overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"edgepurge/internal/content"
)

type Config struct {
	Server struct {
		Port            int    `yaml:"port"`
		ReadTimeout     string `yaml:"readTimeout"`
		WriteTimeout    string `yaml:"writeTimeout"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`

		// compiled
		ReadTimeoutDur     time.Duration `yaml:"-"`
		WriteTimeoutDur    time.Duration `yaml:"-"`
		ShutdownTimeoutDur time.Duration `yaml:"-"`
	} `yaml:"server"`

	Admin struct {
		// Token, when set, is required as a bearer token on /api/*.
		Token string `yaml:"token"`
	} `yaml:"admin"`

	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"storage"`

	CDN struct {
		BaseURL               string `yaml:"baseURL"`
		ZoneID                string `yaml:"zoneID"`
		APIToken              string `yaml:"apiToken"`
		Timeout               string `yaml:"timeout"`
		CheckTimeout          string `yaml:"checkTimeout"`
		MaxFilesPerRequest    int    `yaml:"maxFilesPerRequest"`
		MaxPrefixesPerRequest int    `yaml:"maxPrefixesPerRequest"`
		MaxResponseBody       string `yaml:"maxResponseBody"`

		// compiled
		TimeoutDur         time.Duration `yaml:"-"`
		CheckTimeoutDur    time.Duration `yaml:"-"`
		MaxResponseBodyInt int64         `yaml:"-"`
	} `yaml:"cdn"`

	Queue struct {
		// MaxItems is a soft cap; 0 means unbounded, unset means 1000.
		MaxItems *int `yaml:"maxItems"`
	} `yaml:"queue"`

	Scheduler struct {
		Interval   string `yaml:"interval"`
		BatchSize  int    `yaml:"batchSize"`
		RunTimeout string `yaml:"runTimeout"`

		// compiled
		IntervalDur   time.Duration `yaml:"-"`
		RunTimeoutDur time.Duration `yaml:"-"`
	} `yaml:"scheduler"`

	Orchestrator struct {
		RequeueFailedImmediate *bool  `yaml:"requeueFailedImmediate"`
		PurgeTimeout           string `yaml:"purgeTimeout"`

		// compiled
		PurgeTimeoutDur time.Duration `yaml:"-"`
	} `yaml:"orchestrator"`

	Logging struct {
		Level         string `yaml:"level"`
		Pretty        bool   `yaml:"pretty"`
		Debug         bool   `yaml:"debug"`
		LogStatsEvery string `yaml:"logStatsEvery"`

		// compiled
		LogStatsDur time.Duration `yaml:"-"`
	} `yaml:"logging"`

	Events struct {
		DedupSize int    `yaml:"dedupSize"`
		DedupTTL  string `yaml:"dedupTTL"`

		// compiled
		DedupTTLDur time.Duration `yaml:"-"`
	} `yaml:"events"`

	Site content.SiteConfig `yaml:"site"`
}

const (
	defaultPort          = 8080
	defaultMaxItems      = 1000
	defaultBatchSize     = 30
	defaultDedupSize     = 4096
	defaultStoragePath   = "./data/leveldb"
	defaultStorageDriver = "leveldb"
)

// LoadConfig reads path (skipped when empty), applies environment
// overrides, fills defaults and compiles durations and sizes.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.finalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) finalize() error {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = defaultStorageDriver
	}
	switch cfg.Storage.Driver {
	case "leveldb":
		if cfg.Storage.Path == "" {
			cfg.Storage.Path = defaultStoragePath
		}
	case "redis":
		if cfg.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis driver")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver %q is not one of leveldb, redis, memory", cfg.Storage.Driver)
	}

	if cfg.CDN.MaxFilesPerRequest < 0 || cfg.CDN.MaxPrefixesPerRequest < 0 {
		return fmt.Errorf("cdn request ceilings must not be negative")
	}
	if cfg.CDN.MaxResponseBody == "" {
		cfg.CDN.MaxResponseBody = "1mb"
	}
	n, err := ParseBytes(cfg.CDN.MaxResponseBody)
	if err != nil {
		return fmt.Errorf("cdn.maxResponseBody: %w", err)
	}
	cfg.CDN.MaxResponseBodyInt = n

	if cfg.Queue.MaxItems == nil {
		v := defaultMaxItems
		cfg.Queue.MaxItems = &v
	}
	if *cfg.Queue.MaxItems < 0 {
		return fmt.Errorf("queue.maxItems must not be negative")
	}

	if cfg.Scheduler.BatchSize < 1 {
		cfg.Scheduler.BatchSize = defaultBatchSize
	}
	if cfg.Orchestrator.RequeueFailedImmediate == nil {
		v := true
		cfg.Orchestrator.RequeueFailedImmediate = &v
	}
	if cfg.Events.DedupSize <= 0 {
		cfg.Events.DedupSize = defaultDedupSize
	}

	durations := []struct {
		name string
		raw  string
		def  time.Duration
		dst  *time.Duration
	}{
		{"server.readTimeout", cfg.Server.ReadTimeout, 10 * time.Second, &cfg.Server.ReadTimeoutDur},
		{"server.writeTimeout", cfg.Server.WriteTimeout, 40 * time.Second, &cfg.Server.WriteTimeoutDur},
		{"server.shutdownTimeout", cfg.Server.ShutdownTimeout, 10 * time.Second, &cfg.Server.ShutdownTimeoutDur},
		{"cdn.timeout", cfg.CDN.Timeout, 30 * time.Second, &cfg.CDN.TimeoutDur},
		{"cdn.checkTimeout", cfg.CDN.CheckTimeout, 15 * time.Second, &cfg.CDN.CheckTimeoutDur},
		{"scheduler.interval", cfg.Scheduler.Interval, time.Minute, &cfg.Scheduler.IntervalDur},
		{"scheduler.runTimeout", cfg.Scheduler.RunTimeout, 5 * time.Minute, &cfg.Scheduler.RunTimeoutDur},
		{"orchestrator.purgeTimeout", cfg.Orchestrator.PurgeTimeout, 30 * time.Second, &cfg.Orchestrator.PurgeTimeoutDur},
		{"logging.logStatsEvery", cfg.Logging.LogStatsEvery, 0, &cfg.Logging.LogStatsDur},
		{"events.dedupTTL", cfg.Events.DedupTTL, 10 * time.Minute, &cfg.Events.DedupTTLDur},
	}
	for _, d := range durations {
		if d.raw == "" {
			*d.dst = d.def
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must not be negative", d.name)
		}
		*d.dst = v
	}
	if cfg.Scheduler.IntervalDur < time.Second {
		return fmt.Errorf("scheduler.interval must be at least 1s")
	}

	cfg.Site.URL = strings.TrimRight(strings.TrimSpace(cfg.Site.URL), "/")
	if cfg.Site.URL == "" {
		return fmt.Errorf("site.url is required")
	}
	u, err := url.Parse(cfg.Site.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("site.url %q must be an absolute http(s) URL", cfg.Site.URL)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return nil
}
