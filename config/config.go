package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market/data"
	"github.com/rustyeddy/backtester/strategies"
)

const DateLayout = "2006-01-02"

// Config is the complete run configuration. It is loaded once and then
// passed by value.
type Config struct {
	Symbol      string  `json:"symbol" yaml:"symbol"`
	Start       string  `json:"start" yaml:"start"`
	End         string  `json:"end,omitempty" yaml:"end,omitempty"`
	InitialCash float64 `json:"initial_cash" yaml:"initial_cash"`
	Commission  float64 `json:"commission" yaml:"commission"`

	ShowDetailed bool   `json:"show_detailed" yaml:"show_detailed"`
	FullStats    bool   `json:"full_stats" yaml:"full_stats"`
	SaveCSV      bool   `json:"save_csv" yaml:"save_csv"`
	CSVPath      string `json:"csv_path" yaml:"csv_path"`
	ParquetPath  string `json:"parquet_path,omitempty" yaml:"parquet_path,omitempty"`
	OutDir       string `json:"out_dir" yaml:"out_dir"`

	Data       DataConfig          `json:"data" yaml:"data"`
	Strategies []strategies.Policy `json:"strategies" yaml:"strategies"`
	Journal    JournalConfig       `json:"journal" yaml:"journal"`
	Metrics    MetricsConfig       `json:"metrics" yaml:"metrics"`
	Server     ServerConfig        `json:"server" yaml:"server"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// DataConfig selects where candles come from.
type DataConfig struct {
	Source string `json:"source" yaml:"source"` // yahoo, csv or parquet
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
}

type JournalConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DBPath  string `json:"db_path" yaml:"db_path"`
}

type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Default returns the standard comparison: SPY since 2000 with $10,000,
// 0.2% commission, EMA(50)/EMA(200) against Close/EMA(50).
func Default() *Config {
	return &Config{
		Symbol:       "SPY",
		Start:        "2000-01-01",
		InitialCash:  10_000,
		Commission:   0.002,
		ShowDetailed: true,
		SaveCSV:      false,
		CSVPath:      "equity_curves.csv",
		OutDir:       "out",
		Data:         DataConfig{Source: "yahoo"},
		Strategies:   strategies.Defaults(),
		Journal:      JournalConfig{DBPath: "backtester.db"},
		Server:       ServerConfig{Addr: ":8080"},
		LogLevel:     "info",
		LogFormat:    "console",
	}
}

// Load builds the effective configuration: defaults, then the file at
// path (if any), then .env and BACKTEST_* environment variables. A missing
// .env is fine; one that does not parse is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.merge(path); err != nil {
			return nil, err
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (YAML or JSON). Keys the
// file leaves out keep their default values.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.merge(path); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) merge(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(raw, c); err != nil {
		if err := json.Unmarshal(raw, c); err != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return nil
}

// LoadEnvFile reads KEY=value pairs from a dotenv file and applies the
// BACKTEST_* ones.
func (c *Config) LoadEnvFile(path string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("read env file: %w", err)
	}
	return c.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
}

// ApplyEnv overrides fields from BACKTEST_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *float64) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", key, err)
		}
		*dst = f
		return nil
	}
	flag := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %v", key, err)
		}
		*dst = b
		return nil
	}

	str("BACKTEST_SYMBOL", &c.Symbol)
	str("BACKTEST_START", &c.Start)
	str("BACKTEST_END", &c.End)
	str("BACKTEST_SOURCE", &c.Data.Source)
	str("BACKTEST_DATA_PATH", &c.Data.Path)
	str("BACKTEST_OUT_DIR", &c.OutDir)
	str("BACKTEST_LOG_LEVEL", &c.LogLevel)
	str("BACKTEST_JOURNAL_DB", &c.Journal.DBPath)
	if err := num("BACKTEST_CASH", &c.InitialCash); err != nil {
		return err
	}
	if err := num("BACKTEST_COMMISSION", &c.Commission); err != nil {
		return err
	}
	if err := flag("BACKTEST_SAVE_CSV", &c.SaveCSV); err != nil {
		return err
	}
	return flag("BACKTEST_JOURNAL", &c.Journal.Enabled)
}

func (c *Config) normalize() {
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	c.Data.Source = strings.ToLower(strings.TrimSpace(c.Data.Source))
	for i, p := range c.Strategies {
		if k, err := strategies.ParseKind(string(p.Kind)); err == nil {
			c.Strategies[i].Kind = k
		}
	}
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var raw []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		raw, err = yaml.Marshal(c)
	} else {
		raw, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	start, err := c.StartTime()
	if err != nil {
		return err
	}
	if c.End != "" {
		end, err := c.EndTime()
		if err != nil {
			return err
		}
		if !end.After(start) {
			return fmt.Errorf("end must be after start")
		}
	}
	if math.IsNaN(c.InitialCash) || c.InitialCash <= 0 {
		return fmt.Errorf("initial_cash must be positive")
	}
	if math.IsNaN(c.Commission) || c.Commission < 0 || c.Commission >= 1 {
		return fmt.Errorf("commission must be between 0 and 1")
	}
	switch c.Data.Source {
	case "", "yahoo":
	case "csv", "parquet":
		if c.Data.Path == "" {
			return fmt.Errorf("data.path required for %s source", c.Data.Source)
		}
	default:
		return fmt.Errorf("data.source must be one of yahoo, csv, parquet")
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	for i, p := range c.Strategies {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("strategies[%d]: %w", i, err)
		}
	}
	if c.SaveCSV && c.CSVPath == "" {
		return fmt.Errorf("csv_path required when save_csv is set")
	}
	if c.Journal.Enabled && c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path required when journal is enabled")
	}
	return nil
}

func (c Config) StartTime() (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(c.Start))
	if err != nil {
		return time.Time{}, fmt.Errorf("start must be YYYY-MM-DD: %q", c.Start)
	}
	return t, nil
}

// EndTime is the zero time when no end is configured.
func (c Config) EndTime() (time.Time, error) {
	if strings.TrimSpace(c.End) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(c.End))
	if err != nil {
		return time.Time{}, fmt.Errorf("end must be YYYY-MM-DD: %q", c.End)
	}
	return t, nil
}

// SourceOptions selects the data source for this configuration.
func (c Config) SourceOptions() data.Options {
	end, _ := c.EndTime()
	return data.Options{Kind: c.Data.Source, Path: c.Data.Path, End: end}
}

// CompareOptions is the engine input for this configuration.
func (c Config) CompareOptions(log zerolog.Logger) backtest.CompareOptions {
	policies := make([]strategies.Policy, len(c.Strategies))
	copy(policies, c.Strategies)
	return backtest.CompareOptions{
		InitialCash: c.InitialCash,
		Commission:  c.Commission,
		Strategies:  policies,
		Log:         log,
	}
}
