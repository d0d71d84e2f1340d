// Package config loads TOML files describing a model, its session and the
// actor serving it.
package config

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/born-ml/mnn/internal/actor"
	"github.com/born-ml/mnn/internal/engine"
	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/modelstore"
	"github.com/born-ml/mnn/internal/native"
	"github.com/born-ml/mnn/internal/schedule"
)

// DefaultCacheKeySize is the number of model bytes that key the cache file.
const DefaultCacheKeySize = 128

// Store kinds.
const (
	StoreFile = "file"
	StoreHTTP = "http"
	StoreGCS  = "gcs"
)

// StoreConfig selects where models are fetched from.
type StoreConfig struct {
	Kind     string `toml:"kind"`
	Dir      string `toml:"dir"`
	BaseURL  string `toml:"base_url"`
	Bucket   string `toml:"bucket"`
	Prefix   string `toml:"prefix"`
	CacheDir string `toml:"cache_dir"`
}

// Config is a loaded configuration file with defaults applied.
type Config struct {
	// Model is a local path, or a store name when Store is set.
	Model        string
	CacheFile    string
	CacheKeySize int
	SessionModes []native.SessionMode
	Schedule     schedule.ScheduleConfig
	QueueSize    int
	Store        *StoreConfig
}

type fileConfig struct {
	Model        string                  `toml:"model"`
	CacheFile    string                  `toml:"cache_file"`
	CacheKeySize int                     `toml:"cache_key_size"`
	SessionMode  []string                `toml:"session_mode"`
	Schedule     schedule.ScheduleConfig `toml:"schedule"`
	Actor        struct {
		QueueSize int `toml:"queue_size"`
	} `toml:"actor"`
	Store *StoreConfig `toml:"store"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	return Config{
		CacheKeySize: DefaultCacheKeySize,
		Schedule:     schedule.DefaultScheduleConfig(),
		QueueSize:    actor.DefaultQueueSize,
	}
}

// Load reads path. Relative model and cache paths are resolved against the
// file's directory.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, mnnerr.Wrap(mnnerr.KindIO, err, "load config")
		}
		return Config{}, mnnerr.Wrap(mnnerr.KindParse, err, "load config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, mnnerr.New(mnnerr.KindParse, "unknown keys in %s: %v", path, undecoded)
	}
	cfg, err := fromFile(raw, meta)
	if err != nil {
		return Config{}, err
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, cfg.Validate()
}

// Parse decodes a configuration held in memory. Paths are left as written.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, mnnerr.Wrap(mnnerr.KindParse, err, "parse config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, mnnerr.New(mnnerr.KindParse, "unknown keys: %v", undecoded)
	}
	cfg, err := fromFile(raw, meta)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func fromFile(raw fileConfig, meta toml.MetaData) (Config, error) {
	cfg := Default()

	if meta.IsDefined("model") {
		cfg.Model = strings.TrimSpace(raw.Model)
	}
	if meta.IsDefined("cache_file") {
		cfg.CacheFile = strings.TrimSpace(raw.CacheFile)
	}
	if meta.IsDefined("cache_key_size") {
		cfg.CacheKeySize = raw.CacheKeySize
	}
	if meta.IsDefined("session_mode") {
		for _, name := range raw.SessionMode {
			mode, err := schedule.ParseSessionMode(name)
			if err != nil {
				return Config{}, err
			}
			cfg.SessionModes = append(cfg.SessionModes, mode)
		}
	}

	if meta.IsDefined("schedule", "type") {
		cfg.Schedule.Type = raw.Schedule.Type
	}
	if meta.IsDefined("schedule", "backup_type") {
		cfg.Schedule.BackupType = raw.Schedule.BackupType
	}
	if meta.IsDefined("schedule", "num_threads") {
		cfg.Schedule.NumThreads = raw.Schedule.NumThreads
	}
	if meta.IsDefined("schedule", "mode") {
		cfg.Schedule.Mode = raw.Schedule.Mode
	}
	if meta.IsDefined("schedule", "save_tensors") {
		cfg.Schedule.SaveTensors = raw.Schedule.SaveTensors
	}
	if meta.IsDefined("schedule", "backend") {
		cfg.Schedule.Backend = raw.Schedule.Backend
	}

	if meta.IsDefined("actor", "queue_size") {
		cfg.QueueSize = raw.Actor.QueueSize
	}
	if meta.IsDefined("store") {
		cfg.Store = raw.Store
		if cfg.Store.Kind == "" {
			cfg.Store.Kind = StoreFile
		}
	}
	return cfg, nil
}

func (c *Config) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	if c.Store == nil {
		c.Model = abs(c.Model)
	} else {
		c.Store.Dir = abs(c.Store.Dir)
		c.Store.CacheDir = abs(c.Store.CacheDir)
	}
	c.CacheFile = abs(c.CacheFile)
}

// Validate checks values the decoder accepts but the engine would not.
func (c Config) Validate() error {
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	if c.CacheKeySize < 0 {
		return mnnerr.New(mnnerr.KindParse, "cache_key_size must not be negative: %d", c.CacheKeySize)
	}
	if c.QueueSize < 0 {
		return mnnerr.New(mnnerr.KindParse, "actor.queue_size must not be negative: %d", c.QueueSize)
	}
	if s := c.Store; s != nil {
		switch s.Kind {
		case StoreFile:
			if s.Dir == "" {
				return mnnerr.New(mnnerr.KindParse, "store.dir is required for a file store")
			}
		case StoreHTTP:
			if _, err := url.Parse(s.BaseURL); err != nil || s.BaseURL == "" {
				return mnnerr.New(mnnerr.KindParse, "store.base_url %q is not a URL", s.BaseURL)
			}
		case StoreGCS:
			if s.Bucket == "" {
				return mnnerr.New(mnnerr.KindParse, "store.bucket is required for a gcs store")
			}
		default:
			return mnnerr.New(mnnerr.KindParse, "unknown store kind %q", s.Kind)
		}
		if s.CacheDir == "" {
			return mnnerr.New(mnnerr.KindParse, "store.cache_dir is required")
		}
	}
	return nil
}

// ActorConfig returns the actor settings with a clone of the schedule.
func (c Config) ActorConfig() actor.Config {
	return actor.Config{
		Schedule:  []schedule.ScheduleConfig{c.Schedule.Clone()},
		QueueSize: c.QueueSize,
	}
}

// Apply sets the session modes and the cache file on e.
func (c Config) Apply(e *engine.Engine) error {
	for _, mode := range c.SessionModes {
		if err := e.SetSessionMode(mode); err != nil {
			return err
		}
	}
	if c.CacheFile != "" {
		return e.SetCacheFile(c.CacheFile, c.CacheKeySize)
	}
	return nil
}

// ModelStore builds the configured store, or nil when models are local.
func (c Config) ModelStore() (modelstore.Store, error) {
	s := c.Store
	if s == nil {
		return nil, nil
	}
	switch s.Kind {
	case StoreHTTP:
		u, err := url.Parse(s.BaseURL)
		if err != nil {
			return nil, mnnerr.Wrap(mnnerr.KindParse, err, "store.base_url")
		}
		return &modelstore.HTTPStore{BaseURL: u}, nil
	case StoreGCS:
		return &modelstore.GCSStore{Bucket: s.Bucket, Prefix: s.Prefix}, nil
	default:
		return &modelstore.FileStore{Dir: s.Dir}, nil
	}
}

// ModelPath returns a local path for the model, fetching it from the
// configured store first if there is one.
func (c Config) ModelPath(ctx context.Context) (string, error) {
	if c.Model == "" {
		return "", mnnerr.New(mnnerr.KindParse, "no model configured")
	}
	store, err := c.ModelStore()
	if err != nil {
		return "", err
	}
	if store == nil {
		return c.Model, nil
	}
	path, err := modelstore.Fetch(ctx, store, c.Model, c.Store.CacheDir)
	if err != nil {
		return "", mnnerr.Wrap(mnnerr.KindIO, err, "fetch model %s", c.Model)
	}
	return path, nil
}

// NewEngine resolves the model, loads it into rt and applies c.
func (c Config) NewEngine(ctx context.Context, rt native.Runtime, opts ...engine.Option) (*engine.Engine, error) {
	path, err := c.ModelPath(ctx)
	if err != nil {
		return nil, err
	}
	e, err := engine.NewFromFile(rt, path, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Apply(e); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}
