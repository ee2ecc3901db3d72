// Package config defines the top-level configuration for the backtester and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by RSSBT_* environment variables.
type Config struct {
	Data     DataConfig     `toml:"data"`
	Features FeatureConfig  `toml:"features"`
	Levels   LevelConfig    `toml:"levels"`
	Signal   SignalConfig   `toml:"signal"`
	Session  SessionConfig  `toml:"session"`
	Output   OutputConfig   `toml:"output"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`

	// Overrides maps an instrument identifier to a per-instrument signal
	// parameter set. Non-zero fields replace the defaults in Signal.
	Overrides map[string]SignalConfig `toml:"overrides"`

	LogLevel string `toml:"log_level"`
}

// DataConfig holds the on-disk market data layout and loader safety limits.
type DataConfig struct {
	Dir      string `toml:"dir"`
	Timezone string `toml:"timezone"`
	// Depth is the number of book levels per side in quote exports. It is
	// configuration, never inferred from the data.
	Depth int `toml:"depth"`
	// MaxBadRowFraction is the tolerated share of unparseable rows per
	// file before the loader gives up on it.
	MaxBadRowFraction float64 `toml:"max_bad_row_fraction"`
	// MinBars is the hard minimum bar count below which an instrument is
	// skipped for the run.
	MinBars      int `toml:"min_bars"`
	LookbackDays int `toml:"lookback_days"`
}

// FeatureConfig holds microstructure feature parameters.
type FeatureConfig struct {
	// OFIWindow is the trailing window length, in snapshots, for the
	// rolling order-flow imbalance sum.
	OFIWindow int `toml:"ofi_window"`
}

// LevelConfig holds support/resistance detection parameters.
type LevelConfig struct {
	MergeTolerance   float64 `toml:"merge_tolerance"`
	MinStrength      float64 `toml:"min_strength"`
	MaxPerInstrument int     `toml:"max_per_instrument"`

	PivotSeparation int     `toml:"pivot_separation"`
	PivotProminence float64 `toml:"pivot_prominence"`
	PivotTouchBand  float64 `toml:"pivot_touch_band"`

	ConsolidationWindow    int     `toml:"consolidation_window"`
	ConsolidationTolerance float64 `toml:"consolidation_tolerance"`

	PsychologicalSteps []float64 `toml:"psychological_steps"`
	PsychologicalBand  float64   `toml:"psychological_band"`

	MAPeriods []int `toml:"ma_periods"`

	VolumeBinWidth float64 `toml:"volume_bin_width"`
	VolumeTopN     int     `toml:"volume_top_n"`
}

// SignalConfig holds entry/exit parameters, all price distances in ticks.
// The profit-taking heuristic thresholds are empirically tuned constants;
// change them only together with the behavioural tests that pin them.
type SignalConfig struct {
	KTicks          float64 `toml:"k_ticks"`
	TakeProfitTicks float64 `toml:"take_profit_ticks"`
	StopLossTicks   float64 `toml:"stop_loss_ticks"`
	MaxHoldBars     int     `toml:"max_hold_bars"`
	MinHoldBars     int     `toml:"min_hold_bars"`

	ProfitFloorTicks float64 `toml:"profit_floor_ticks"`
	SharpMoveTicks   float64 `toml:"sharp_move_ticks"`
	SharpMoveWindow  int     `toml:"sharp_move_window"`
	NearLevelTicks   float64 `toml:"near_level_ticks"`
	OFIStrong        float64 `toml:"ofi_strong"`
}

// SessionConfig holds the trading session clock windows. Times are "HH:MM" in
// the data timezone.
type SessionConfig struct {
	MorningOpen    string `toml:"morning_open"`
	MorningClose   string `toml:"morning_close"`
	AfternoonOpen  string `toml:"afternoon_open"`
	AfternoonClose string `toml:"afternoon_close"`
	// CloseBufferMinutes blocks new entries and forces exits this many
	// minutes before a session close.
	CloseBufferMinutes int `toml:"close_buffer_minutes"`
}

// OutputConfig holds result-writing parameters.
type OutputConfig struct {
	Dir string `toml:"dir"`
}

// PostgresConfig holds ledger persistence parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds level-cache connection parameters.
type RedisConfig struct {
	Enabled         bool   `toml:"enabled"`
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// S3Config holds run-artifact archive parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// Defaults returns a Config populated with reasonable default values. The
// session windows are the Tokyo cash-equity sessions.
func Defaults() Config {
	return Config{
		Data: DataConfig{
			Dir:               "data",
			Timezone:          "Asia/Tokyo",
			Depth:             5,
			MaxBadRowFraction: 0.05,
			MinBars:           30,
			LookbackDays:      5,
		},
		Features: FeatureConfig{
			OFIWindow: 10,
		},
		Levels: LevelConfig{
			MergeTolerance:   0.005,
			MinStrength:      0.3,
			MaxPerInstrument: 20,

			PivotSeparation: 5,
			PivotProminence: 0.002,
			PivotTouchBand:  0.002,

			ConsolidationWindow:    12,
			ConsolidationTolerance: 0.004,

			PsychologicalSteps: []float64{100, 50, 10},
			PsychologicalBand:  0.10,

			MAPeriods: []int{5, 25},

			VolumeBinWidth: 5,
			VolumeTopN:     3,
		},
		Signal: SignalConfig{
			KTicks:          2,
			TakeProfitTicks: 8,
			StopLossTicks:   5,
			MaxHoldBars:     60,
			MinHoldBars:     3,

			ProfitFloorTicks: 2,
			SharpMoveTicks:   6,
			SharpMoveWindow:  5,
			NearLevelTicks:   2,
			OFIStrong:        500,
		},
		Session: SessionConfig{
			MorningOpen:        "09:00",
			MorningClose:       "11:30",
			AfternoonOpen:      "12:30",
			AfternoonClose:     "15:00",
			CloseBufferMinutes: 5,
		},
		Output: OutputConfig{
			Dir: "results",
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "backtest",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:         false,
			Addr:            "localhost:6379",
			PoolSize:        20,
			MaxRetries:      3,
			CacheTTLMinutes: 240,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "backtest-artifacts",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Overrides: map[string]SignalConfig{},
		LogLevel:  "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// clock matches "HH:MM".
func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

func validateSignal(prefix string, s SignalConfig, errs *[]string) {
	if s.KTicks <= 0 {
		*errs = append(*errs, prefix+": k_ticks must be > 0")
	}
	if s.TakeProfitTicks <= 0 {
		*errs = append(*errs, prefix+": take_profit_ticks must be > 0")
	}
	if s.StopLossTicks <= 0 {
		*errs = append(*errs, prefix+": stop_loss_ticks must be > 0")
	}
	if s.MaxHoldBars < 1 {
		*errs = append(*errs, prefix+": max_hold_bars must be >= 1")
	}
	if s.MinHoldBars < 0 || s.MinHoldBars > s.MaxHoldBars {
		*errs = append(*errs, prefix+": min_hold_bars must be in [0, max_hold_bars]")
	}
	if s.ProfitFloorTicks < 0 {
		*errs = append(*errs, prefix+": profit_floor_ticks must be >= 0")
	}
	if s.SharpMoveWindow < 1 {
		*errs = append(*errs, prefix+": sharp_move_window must be >= 1")
	}
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found. It runs before any data is
// loaded.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Data
	if c.Data.Dir == "" {
		errs = append(errs, "data: dir must not be empty")
	}
	if _, err := time.LoadLocation(c.Data.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("data: unknown timezone %q", c.Data.Timezone))
	}
	if c.Data.Depth < 1 {
		errs = append(errs, "data: depth must be >= 1")
	}
	if c.Data.MaxBadRowFraction < 0 || c.Data.MaxBadRowFraction > 1 {
		errs = append(errs, "data: max_bad_row_fraction must be in [0, 1]")
	}
	if c.Data.MinBars < 1 {
		errs = append(errs, "data: min_bars must be >= 1")
	}
	if c.Data.LookbackDays < 1 {
		errs = append(errs, "data: lookback_days must be >= 1")
	}

	// Features
	if c.Features.OFIWindow < 1 {
		errs = append(errs, "features: ofi_window must be >= 1")
	}

	// Levels
	if c.Levels.MergeTolerance <= 0 {
		errs = append(errs, "levels: merge_tolerance must be > 0")
	}
	if c.Levels.MinStrength < 0 || c.Levels.MinStrength > 1 {
		errs = append(errs, "levels: min_strength must be in [0, 1]")
	}
	if c.Levels.MaxPerInstrument < 1 {
		errs = append(errs, "levels: max_per_instrument must be >= 1")
	}
	if c.Levels.PivotSeparation < 1 {
		errs = append(errs, "levels: pivot_separation must be >= 1")
	}
	if c.Levels.ConsolidationWindow < 2 {
		errs = append(errs, "levels: consolidation_window must be >= 2")
	}
	if c.Levels.VolumeBinWidth <= 0 {
		errs = append(errs, "levels: volume_bin_width must be > 0")
	}
	if c.Levels.VolumeTopN < 1 {
		errs = append(errs, "levels: volume_top_n must be >= 1")
	}
	for _, p := range c.Levels.MAPeriods {
		if p < 1 {
			errs = append(errs, fmt.Sprintf("levels: ma_periods entry %d must be >= 1", p))
		}
	}

	// Signal defaults and per-instrument overrides
	validateSignal("signal", c.Signal, &errs)
	for id := range c.Overrides {
		validateSignal(fmt.Sprintf("overrides.%s", id), c.SignalFor(id), &errs)
	}

	// Session
	for name, v := range map[string]string{
		"morning_open":    c.Session.MorningOpen,
		"morning_close":   c.Session.MorningClose,
		"afternoon_open":  c.Session.AfternoonOpen,
		"afternoon_close": c.Session.AfternoonClose,
	} {
		if !validClock(v) {
			errs = append(errs, fmt.Sprintf("session: %s %q is not HH:MM", name, v))
		}
	}
	if c.Session.CloseBufferMinutes < 0 {
		errs = append(errs, "session: close_buffer_minutes must be >= 0")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" && c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be in [0, pool_max_conns]")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// SignalFor returns the signal parameter set for an instrument: the defaults
// with any non-zero fields of the instrument's override applied on top.
func (c *Config) SignalFor(instrument string) SignalConfig {
	out := c.Signal
	ov, ok := c.Overrides[instrument]
	if !ok {
		return out
	}
	if ov.KTicks > 0 {
		out.KTicks = ov.KTicks
	}
	if ov.TakeProfitTicks > 0 {
		out.TakeProfitTicks = ov.TakeProfitTicks
	}
	if ov.StopLossTicks > 0 {
		out.StopLossTicks = ov.StopLossTicks
	}
	if ov.MaxHoldBars > 0 {
		out.MaxHoldBars = ov.MaxHoldBars
	}
	if ov.MinHoldBars > 0 {
		out.MinHoldBars = ov.MinHoldBars
	}
	if ov.ProfitFloorTicks > 0 {
		out.ProfitFloorTicks = ov.ProfitFloorTicks
	}
	if ov.SharpMoveTicks > 0 {
		out.SharpMoveTicks = ov.SharpMoveTicks
	}
	if ov.SharpMoveWindow > 0 {
		out.SharpMoveWindow = ov.SharpMoveWindow
	}
	if ov.NearLevelTicks > 0 {
		out.NearLevelTicks = ov.NearLevelTicks
	}
	if ov.OFIStrong > 0 {
		out.OFIStrong = ov.OFIStrong
	}
	return out
}
