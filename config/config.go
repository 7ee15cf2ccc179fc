// Package config loads console settings from a yaml file, the environment
// (optionally a .env file) and command-line flags, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/xrpdesk/internal/domain"
)

const (
	EnvNodeURL = "XRPL_NODE_URL"
	EnvAccount = "XRPL_ACCOUNT"

	DefaultNodeURL         = "wss://xrplcluster.com"
	DefaultWebAddr         = ":8080"
	DefaultPollInterval    = 4 * time.Second
	DefaultExpiryLookAhead = 5 * time.Minute
	DefaultExpiryBuffer    = 2 * time.Second
	DefaultRequestTimeout  = 20 * time.Second
	DefaultTradeLimit      = 20
	DefaultBookDepth       = 20
	DefaultCacheSize       = 4096
	DefaultFillsWALDir     = "./wal/fills"
	DefaultPoolsWALDir     = "./wal/pools"
	DefaultCertCacheDir    = "cert-cache"
)

// Config resolved console settings.
type Config struct {
	NodeURL string
	Account string
	// Pair selected at startup, nil when none.
	Pair *domain.Pair

	WebAddr      string
	TLSDomains   []string
	CertCacheDir string

	PollInterval    time.Duration
	ExpiryLookAhead time.Duration
	ExpiryBuffer    time.Duration
	RequestTimeout  time.Duration

	TradeLimit int
	BookDepth  int
	CacheSize  int

	FillsWALDir string
	PoolsWALDir string
}

// ConfigTmp yaml form of Config.
type ConfigTmp struct {
	NodeURL         string        `yaml:"node_url,omitempty"`
	Account         string        `yaml:"account,omitempty"`
	Pair            string        `yaml:"pair,omitempty"`
	WebAddr         string        `yaml:"web_addr,omitempty"`
	TLSDomains      []string      `yaml:"tls_domains,omitempty"`
	CertCacheDir    string        `yaml:"cert_cache_dir,omitempty"`
	PollInterval    time.Duration `yaml:"poll_interval,omitempty"`
	ExpiryLookAhead time.Duration `yaml:"expiry_look_ahead,omitempty"`
	ExpiryBuffer    time.Duration `yaml:"expiry_buffer,omitempty"`
	RequestTimeout  time.Duration `yaml:"request_timeout,omitempty"`
	TradeLimitStr   string        `yaml:"trade_limit,omitempty"`
	BookDepthStr    string        `yaml:"book_depth,omitempty"`
	CacheSizeStr    string        `yaml:"cache_size,omitempty"`
	FillsWALDir     string        `yaml:"fills_wal_dir,omitempty"`
	PoolsWALDir     string        `yaml:"pools_wal_dir,omitempty"`
}

// Flags command-line overrides. Empty fields leave the loaded value alone.
type Flags struct {
	ConfigPath string
	EnvFile    string
	NodeURL    string
	Account    string
	Pair       string
	WebAddr    string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		NodeURL:         DefaultNodeURL,
		WebAddr:         DefaultWebAddr,
		CertCacheDir:    DefaultCertCacheDir,
		PollInterval:    DefaultPollInterval,
		ExpiryLookAhead: DefaultExpiryLookAhead,
		ExpiryBuffer:    DefaultExpiryBuffer,
		RequestTimeout:  DefaultRequestTimeout,
		TradeLimit:      DefaultTradeLimit,
		BookDepth:       DefaultBookDepth,
		CacheSize:       DefaultCacheSize,
		FillsWALDir:     DefaultFillsWALDir,
		PoolsWALDir:     DefaultPoolsWALDir,
	}
}

// Load resolves defaults, the yaml file, the environment and flags.
func Load(flags Flags) (Config, error) {
	cfg := Default()

	if flags.ConfigPath != "" {
		tmp, err := readYaml(flags.ConfigPath)
		if err != nil {
			return Config{}, err
		}
		if err := tmp.applyTo(&cfg); err != nil {
			return Config{}, errors.Wrapf(err, "config %s", flags.ConfigPath)
		}
	}

	if err := loadEnvFile(flags.EnvFile); err != nil {
		return Config{}, err
	}
	if v := os.Getenv(EnvNodeURL); v != "" {
		cfg.NodeURL = v
	}
	if v := os.Getenv(EnvAccount); v != "" {
		cfg.Account = v
	}

	if err := flags.applyTo(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// Validate checks the resolved settings.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.NodeURL, "ws://") && !strings.HasPrefix(c.NodeURL, "wss://") {
		return fmt.Errorf("node url must start with ws:// or wss://, got %q", c.NodeURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.TradeLimit <= 0 || c.BookDepth <= 0 {
		return fmt.Errorf("trade limit and book depth must be positive")
	}
	return nil
}

// Save writes tmp as yaml to path.
func Save(path string, tmp ConfigTmp) error {
	data, err := yaml.Marshal(tmp)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}
	return nil
}

func readYaml(path string) (ConfigTmp, error) {
	var tmp ConfigTmp

	f, err := os.ReadFile(path)
	if err != nil {
		return tmp, err
	}
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return tmp, errors.Wrapf(err, "parse %s", path)
	}
	return tmp, nil
}

// loadEnvFile exports variables from path without overriding the real
// environment. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

func (t ConfigTmp) applyTo(cfg *Config) error {
	setString(&cfg.NodeURL, t.NodeURL)
	setString(&cfg.Account, t.Account)
	setString(&cfg.WebAddr, t.WebAddr)
	setString(&cfg.CertCacheDir, t.CertCacheDir)
	setString(&cfg.FillsWALDir, t.FillsWALDir)
	setString(&cfg.PoolsWALDir, t.PoolsWALDir)
	if len(t.TLSDomains) > 0 {
		cfg.TLSDomains = t.TLSDomains
	}

	setDuration(&cfg.PollInterval, t.PollInterval)
	setDuration(&cfg.ExpiryLookAhead, t.ExpiryLookAhead)
	setDuration(&cfg.ExpiryBuffer, t.ExpiryBuffer)
	setDuration(&cfg.RequestTimeout, t.RequestTimeout)

	if err := setInt(&cfg.TradeLimit, t.TradeLimitStr, "trade_limit"); err != nil {
		return err
	}
	if err := setInt(&cfg.BookDepth, t.BookDepthStr, "book_depth"); err != nil {
		return err
	}
	if err := setInt(&cfg.CacheSize, t.CacheSizeStr, "cache_size"); err != nil {
		return err
	}

	if t.Pair != "" {
		pair, err := domain.ParsePair(t.Pair)
		if err != nil {
			return fmt.Errorf("incorrect 'pair' param in yaml config: %s, error: %w", t.Pair, err)
		}
		cfg.Pair = &pair
	}

	return nil
}

func (f Flags) applyTo(cfg *Config) error {
	setString(&cfg.NodeURL, f.NodeURL)
	setString(&cfg.Account, f.Account)
	setString(&cfg.WebAddr, f.WebAddr)

	if f.Pair != "" {
		pair, err := domain.ParsePair(f.Pair)
		if err != nil {
			return fmt.Errorf("invalid --pair provided, --pair=%s: %w", f.Pair, err)
		}
		cfg.Pair = &pair
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func setInt(dst *int, v, name string) error {
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("incorrect '%s' param in yaml config (must be an integer), error: %w", name, err)
	}
	*dst = n
	return nil
}
