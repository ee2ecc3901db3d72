package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies RSSBT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known RSSBT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject connection secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Data ──
	setStr(&cfg.Data.Dir, "RSSBT_DATA_DIR")
	setStr(&cfg.Data.Timezone, "RSSBT_DATA_TIMEZONE")
	setInt(&cfg.Data.Depth, "RSSBT_DATA_DEPTH")
	setInt(&cfg.Data.MinBars, "RSSBT_DATA_MIN_BARS")
	setInt(&cfg.Data.LookbackDays, "RSSBT_DATA_LOOKBACK_DAYS")

	// ── Output ──
	setStr(&cfg.Output.Dir, "RSSBT_OUTPUT_DIR")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "RSSBT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "RSSBT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "RSSBT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "RSSBT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "RSSBT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "RSSBT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "RSSBT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "RSSBT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "RSSBT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "RSSBT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "RSSBT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "RSSBT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "RSSBT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RSSBT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RSSBT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RSSBT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "RSSBT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "RSSBT_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.CacheTTLMinutes, "RSSBT_REDIS_CACHE_TTL_MINUTES")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "RSSBT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "RSSBT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "RSSBT_S3_REGION")
	setStr(&cfg.S3.Bucket, "RSSBT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "RSSBT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "RSSBT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "RSSBT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "RSSBT_S3_FORCE_PATH_STYLE")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "RSSBT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
