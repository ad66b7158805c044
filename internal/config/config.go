package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/zachw1/AdX-Stencil-2025/internal/eval"
	"github.com/zachw1/AdX-Stencil-2025/internal/gate"
	"github.com/zachw1/AdX-Stencil-2025/internal/learner"
	"github.com/zachw1/AdX-Stencil-2025/internal/strategy"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// #region types
// Config is the bid server's full configuration.
type Config struct {
	Learner  learner.Config  `yaml:"learner"`
	Strategy strategy.Config `yaml:"strategy"`
	Gate     gate.GateConfig `yaml:"gate"`
	Eval     eval.EvalConfig `yaml:"eval"`
	Store    StoreConfig     `yaml:"store"`
	Server   ServerConfig    `yaml:"server"`

	// Seed for the exploration RNG; 0 seeds from the clock.
	Seed int64 `yaml:"seed"`
}

// StoreConfig controls the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
	// Persist restores the active Q-table on start and snapshots it between
	// games. Off by default: each process learns from scratch.
	Persist bool `yaml:"persist"`
	// Journal writes every bid, skip and update to decision_log.
	Journal bool `yaml:"journal"`
}

// ServerConfig holds listen addresses.
type ServerConfig struct {
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Learner:  learner.DefaultConfig(),
		Strategy: strategy.DefaultConfig(),
		Gate:     gate.DefaultGateConfig(),
		Eval:     eval.DefaultEvalConfig(),
		Store:    StoreConfig{Path: "adx.db"},
		Server:   ServerConfig{GRPCAddr: ":50061", MetricsAddr: ":9101"},
	}
}

// #endregion types

// #region load
// Load reads path over the defaults, applies ADX_* environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config %s: %w", path, err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		klog.V(2).InfoS("Loaded configuration file", "path", path)
	}

	cfg.loadFromEnvironment()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFromEnvironment applies ADX_* variables. Environment variables take
// precedence over the file; unparsable values are ignored.
func (c *Config) loadFromEnvironment() {
	envString("ADX_DB_PATH", &c.Store.Path)
	envBool("ADX_PERSIST", &c.Store.Persist)
	envBool("ADX_JOURNAL", &c.Store.Journal)
	envString("ADX_GRPC_ADDR", &c.Server.GRPCAddr)
	envString("ADX_METRICS_ADDR", &c.Server.MetricsAddr)

	var scheme, reward, base string
	if envString("ADX_SCHEME", &scheme) {
		c.Learner.Scheme = learner.StateScheme(scheme)
	}
	if envString("ADX_REWARD", &reward) {
		c.Learner.Reward = learner.RewardRule(reward)
	}
	if envString("ADX_BASE_PRICE", &base) {
		c.Learner.BasePrice = learner.BasePriceRule(base)
	}
	envFloat("ADX_EPSILON", &c.Learner.Epsilon)
	envFloat("ADX_LEARNING_RATE", &c.Learner.LearningRate)
	envFloat("ADX_DISCOUNT", &c.Learner.Discount)
	envInt("ADX_MAX_ACTIVE_CAMPAIGNS", &c.Strategy.MaxActiveCampaigns)

	var seed int
	if envInt("ADX_SEED", &seed) {
		c.Seed = int64(seed)
	}
}

func envString(key string, dst *string) bool {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return false
	}
	*dst = val
	klog.V(2).InfoS("Loaded value from environment", "key", key, "value", val)
	return true
}

func envBool(key string, dst *bool) {
	var s string
	if !envString(key, &s) {
		return
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		klog.InfoS("Ignoring invalid environment value", "key", key, "value", s, "err", err)
		return
	}
	*dst = b
}

func envFloat(key string, dst *float64) {
	var s string
	if !envString(key, &s) {
		return
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		klog.InfoS("Ignoring invalid environment value", "key", key, "value", s, "err", err)
		return
	}
	*dst = f
}

func envInt(key string, dst *int) bool {
	var s string
	if !envString(key, &s) {
		return false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		klog.InfoS("Ignoring invalid environment value", "key", key, "value", s, "err", err)
		return false
	}
	*dst = n
	return true
}

// #endregion load

// #region validate
// Validate reports the first problem found.
func (c Config) Validate() error {
	if err := c.Learner.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch {
	case c.Strategy.MaxActiveCampaigns < 0:
		return fmt.Errorf("%w: max_active_campaigns %d is negative", ErrInvalidConfig, c.Strategy.MaxActiveCampaigns)
	case c.Gate.MaxDeltaNorm <= 0:
		return fmt.Errorf("%w: gate max_delta_norm must be positive", ErrInvalidConfig)
	case c.Eval.MaxAbsQ <= 0:
		return fmt.Errorf("%w: eval max_abs_q must be positive", ErrInvalidConfig)
	case c.Eval.MinCoverage < 0 || c.Eval.MinCoverage > 1:
		return fmt.Errorf("%w: eval min_coverage %g not in [0, 1]", ErrInvalidConfig, c.Eval.MinCoverage)
	case (c.Store.Persist || c.Store.Journal) && c.Store.Path == "":
		return fmt.Errorf("%w: store path required for persistence or journal", ErrInvalidConfig)
	case c.Server.GRPCAddr == "":
		return fmt.Errorf("%w: grpc_addr is empty", ErrInvalidConfig)
	}
	return nil
}

// #endregion validate

// #region log
// Log writes the effective configuration at startup.
func (c Config) Log() {
	l := c.Learner
	klog.InfoS("Learner configuration",
		"scheme", l.Scheme, "actions", l.NumActions, "betaMin", l.BetaMin, "betaMax", l.BetaMax,
		"alpha", l.LearningRate, "bootstrap", l.Bootstrap, "gamma", l.Discount,
		"epsilon", l.Epsilon, "epsilonMin", l.EpsilonMin, "epsilonDecay", l.EpsilonDecay,
		"reward", l.Reward, "basePrice", l.BasePrice, "minPrice", l.MinPrice, "maxPrice", l.MaxPrice)
	klog.InfoS("Service configuration",
		"maxActiveCampaigns", c.Strategy.MaxActiveCampaigns, "maxDeltaNorm", c.Gate.MaxDeltaNorm, "maxAbsQ", c.Eval.MaxAbsQ,
		"db", c.Store.Path, "persist", c.Store.Persist, "journal", c.Store.Journal,
		"grpc", c.Server.GRPCAddr, "metrics", c.Server.MetricsAddr, "seed", c.Seed)
}

// #endregion log
