// Package config loads stockml settings from defaults, an optional YAML file
// and STOCKML_* environment variables, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"stockml/pkg/model"
)

const (
	EnvPrefix = "STOCKML"
	// LegacyAPIKeyEnv is the variable older scripts used for the FMP key.
	LegacyAPIKeyEnv = "API_KEY"
	DateLayout      = "2006-01-02"
)

var ErrNoAPIKey = errors.New("config: FMP API key not set (fmp.api_key, STOCKML_FMP_API_KEY or API_KEY)")

type Config struct {
	FMP      FMPConfig      `yaml:"fmp" mapstructure:"fmp"`
	Dates    DatesConfig    `yaml:"dates" mapstructure:"dates"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Model    ModelConfig    `yaml:"model" mapstructure:"model"`
	Backtest BacktestConfig `yaml:"backtest" mapstructure:"backtest"`
}

type FMPConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Period      string        `yaml:"period" mapstructure:"period"`
	RateLimit   float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	Burst       int           `yaml:"burst" mapstructure:"burst"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// DatesConfig holds YYYY-MM-DD strings; Window parses them.
type DatesConfig struct {
	Start    string `yaml:"start" mapstructure:"start"`
	End      string `yaml:"end" mapstructure:"end"`
	TrainEnd string `yaml:"train_end" mapstructure:"train_end"`
	ValEnd   string `yaml:"val_end" mapstructure:"val_end"`
}

type PipelineConfig struct {
	Workers      int     `yaml:"workers" mapstructure:"workers"`
	TickersFile  string  `yaml:"tickers_file" mapstructure:"tickers_file"`
	TickerColumn string  `yaml:"ticker_column" mapstructure:"ticker_column"`
	FactorsFile  string  `yaml:"factors_file" mapstructure:"factors_file"`
	RiskFree     float64 `yaml:"risk_free" mapstructure:"risk_free"`
	Constituents string  `yaml:"constituents_file" mapstructure:"constituents_file"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Path    string        `yaml:"path" mapstructure:"path"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

type ModelConfig struct {
	Name                string  `yaml:"name" mapstructure:"name"`
	Scaler              string  `yaml:"scaler" mapstructure:"scaler"`
	Imputer             string  `yaml:"imputer" mapstructure:"imputer"`
	Selector            string  `yaml:"selector" mapstructure:"selector"`
	ImportanceThreshold float64 `yaml:"importance_threshold" mapstructure:"importance_threshold"`
	Components          int     `yaml:"components" mapstructure:"components"`
	Linkage             string  `yaml:"linkage" mapstructure:"linkage"`
	ClusterThreshold    float64 `yaml:"cluster_threshold" mapstructure:"cluster_threshold"`
	DropSparse          float64 `yaml:"drop_sparse" mapstructure:"drop_sparse"`
	Winsorize           float64 `yaml:"winsorize" mapstructure:"winsorize"` // percent clipped from each tail
	DateFeatures        bool    `yaml:"date_features" mapstructure:"date_features"`
	// Prune collapses decision_tree nodes that do not help on the validation window.
	Prune  bool         `yaml:"prune" mapstructure:"prune"`
	Seed   int64        `yaml:"seed" mapstructure:"seed"`
	Params model.Params `yaml:"params" mapstructure:"params"`
}

type BacktestConfig struct {
	TopN            int     `yaml:"top_n" mapstructure:"top_n"`
	InitialEquity   float64 `yaml:"initial_equity" mapstructure:"initial_equity"`
	Benchmark       string  `yaml:"benchmark" mapstructure:"benchmark"`
	PredictionsFile string  `yaml:"predictions_file" mapstructure:"predictions_file"`
	EquityFile      string  `yaml:"equity_file" mapstructure:"equity_file"`
}

func Default() Config {
	return Config{
		FMP: FMPConfig{
			BaseURL:     "https://financialmodelingprep.com/api/v3",
			Period:      "quarterly",
			RateLimit:   5,
			Burst:       10,
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
		},
		Dates: DatesConfig{
			Start:    "2020-01-01",
			End:      "2024-12-31",
			TrainEnd: "2023-01-01",
			ValEnd:   "2024-10-01",
		},
		Pipeline: PipelineConfig{
			Workers:      10,
			TickersFile:  "Tickers.csv",
			TickerColumn: "Symbol",
			FactorsFile:  "final_merged_factors.csv",
			RiskFree:     0.02,
			Constituents: "sp500_constituents_timeline.csv",
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    ".stockml/cache.db",
			TTL:     24 * time.Hour,
		},
		Model: ModelConfig{
			Name:                "random_forest",
			Scaler:              "zscore",
			Imputer:             "median",
			Selector:            "importance",
			ImportanceThreshold: 0.80,
			Components:          10,
			Linkage:             "average",
			ClusterThreshold:    0.3,
			DropSparse:          0.9,
			Prune:               true,
			Seed:                42,
			Params:              model.DefaultParams(),
		},
		Backtest: BacktestConfig{
			TopN:            20,
			InitialEquity:   100,
			Benchmark:       "^GSPC",
			PredictionsFile: "quarterly_predictions.csv",
			EquityFile:      "equity_curve.csv",
		},
	}
}

// Window is the parsed form of DatesConfig.
type Window struct {
	Start, End, TrainEnd, ValEnd time.Time
}

func (d DatesConfig) Window() (Window, error) {
	var w Window
	for _, f := range []struct {
		name string
		val  string
		dst  *time.Time
	}{
		{"start", d.Start, &w.Start},
		{"end", d.End, &w.End},
		{"train_end", d.TrainEnd, &w.TrainEnd},
		{"val_end", d.ValEnd, &w.ValEnd},
	} {
		t, err := time.Parse(DateLayout, f.val)
		if err != nil {
			return Window{}, fmt.Errorf("config: dates.%s: %w", f.name, err)
		}
		*f.dst = t
	}
	return w, nil
}

// Validate checks date ordering and that counts and rates are positive.
func (c Config) Validate() error {
	w, err := c.Dates.Window()
	if err != nil {
		return err
	}
	var errs []error
	if !w.Start.Before(w.End) {
		errs = append(errs, errors.New("dates.start must be before dates.end"))
	}
	if w.TrainEnd.Before(w.Start) || w.TrainEnd.After(w.ValEnd) {
		errs = append(errs, errors.New("dates.train_end must lie between dates.start and dates.val_end"))
	}
	if w.ValEnd.After(w.End) {
		errs = append(errs, errors.New("dates.val_end must not be after dates.end"))
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, errors.New("pipeline.workers must be positive"))
	}
	if c.FMP.RateLimit <= 0 {
		errs = append(errs, errors.New("fmp.rate_limit must be positive"))
	}
	if c.FMP.Burst < 1 {
		errs = append(errs, errors.New("fmp.burst must be positive"))
	}
	if c.FMP.MaxAttempts < 1 {
		errs = append(errs, errors.New("fmp.max_attempts must be positive"))
	}
	if c.Backtest.TopN < 1 {
		errs = append(errs, errors.New("backtest.top_n must be positive"))
	}
	if c.Backtest.InitialEquity <= 0 {
		errs = append(errs, errors.New("backtest.initial_equity must be positive"))
	}
	if w := c.Model.Winsorize; w < 0 || w >= 50 {
		errs = append(errs, errors.New("model.winsorize must be in [0, 50)"))
	}
	if t := c.Model.ImportanceThreshold; t <= 0 || t > 1 {
		errs = append(errs, errors.New("model.importance_threshold must be in (0, 1]"))
	}
	if err := c.Model.Params.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model.params: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// RequireAPIKey returns ErrNoAPIKey when no key is configured.
func (c Config) RequireAPIKey() error {
	if strings.TrimSpace(c.FMP.APIKey) == "" {
		return ErrNoAPIKey
	}
	return nil
}

// Load merges defaults, the YAML file at path and the environment. An empty
// path or a missing file at the default location is not an error;
// mustExist makes a missing file fatal.
func Load(path string, mustExist bool) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	base, err := yaml.Marshal(Default())
	if err != nil {
		return Config{}, fmt.Errorf("config: encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if mustExist {
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("fmp.api_key", EnvPrefix+"_FMP_API_KEY", LegacyAPIKeyEnv); err != nil {
		return Config{}, fmt.Errorf("config: bind api key: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// WriteYAML writes c with the API key redacted.
func (c Config) WriteYAML(w io.Writer) error {
	if c.FMP.APIKey != "" {
		c.FMP.APIKey = "<redacted>"
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
