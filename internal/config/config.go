// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"messagecore/internal/blob"
	"messagecore/internal/core"
	"messagecore/pkg/domain"
)

// DefaultEnvFile is read when Load is called without explicit files.
const DefaultEnvFile = ".env"

// Config is the full process configuration.
type Config struct {
	Addr     string `env:"MESSAGECORE_ADDR,default=:3030"`
	Storage  Storage
	Paginate Paginate
	Blob     Blob
	Redis    Redis
	Log      Log
	Rate     Rate
}

// Storage selects the record store.
type Storage struct {
	Driver      string `env:"MESSAGECORE_STORAGE_DRIVER,default=memory"`
	SQLitePath  string `env:"MESSAGECORE_SQLITE_PATH,default=messagecore.db"`
	PostgresDSN string `env:"MESSAGECORE_POSTGRES_DSN,default=postgres://localhost/messagecore?sslmode=disable"`
}

// Paginate bounds find on SQL-backed stores.
type Paginate struct {
	Default int `env:"MESSAGECORE_PAGINATE_DEFAULT,default=5"`
	Max     int `env:"MESSAGECORE_PAGINATE_MAX,default=10"`
}

// Blob configures the revision archive. An empty driver disables it.
type Blob struct {
	Driver      string `env:"MESSAGECORE_BLOB_DRIVER"`
	FSRoot      string `env:"MESSAGECORE_BLOB_FS_ROOT,default=./blobdata"`
	S3Bucket    string `env:"MESSAGECORE_BLOB_S3_BUCKET"`
	S3Region    string `env:"MESSAGECORE_BLOB_S3_REGION"`
	S3Endpoint  string `env:"MESSAGECORE_BLOB_S3_ENDPOINT"`
	S3PathStyle bool   `env:"MESSAGECORE_BLOB_S3_PATH_STYLE"`
}

// Redis configures the event relay. An empty address disables it.
type Redis struct {
	Addr    string `env:"MESSAGECORE_REDIS_ADDR"`
	Channel string `env:"MESSAGECORE_REDIS_CHANNEL,default=messagecore.events"`
}

// Log configures the logrus backend.
type Log struct {
	Level  string `env:"MESSAGECORE_LOG_LEVEL,default=info"`
	Format string `env:"MESSAGECORE_LOG_FORMAT,default=text"`
}

// Rate configures per-client HTTP rate limiting. Zero RPS disables it.
type Rate struct {
	RPS   float64 `env:"MESSAGECORE_RATE_LIMIT_RPS,default=0"`
	Burst int     `env:"MESSAGECORE_RATE_LIMIT_BURST,default=20"`
}

// Load reads the given .env files (DefaultEnvFile when none are named) and
// decodes the environment. Missing .env files are ignored; variables already
// present in the environment win over file values.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil && !errors.Is(err, envdecode.ErrInvalidTarget) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		return fmt.Errorf("MESSAGECORE_STORAGE_DRIVER: unknown driver %q", c.Storage.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case "", blob.DriverMemory, blob.DriverFilesystem:
	case blob.DriverS3:
		if c.Blob.S3Bucket == "" {
			return errors.New("MESSAGECORE_BLOB_S3_BUCKET is required for the s3 driver")
		}
	default:
		return fmt.Errorf("MESSAGECORE_BLOB_DRIVER: unknown driver %q", c.Blob.Driver)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("MESSAGECORE_LOG_FORMAT: unknown format %q", c.Log.Format)
	}
	if c.Paginate.Default < 0 || c.Paginate.Max < 0 {
		return errors.New("pagination bounds must not be negative")
	}
	if c.Rate.RPS < 0 {
		return errors.New("MESSAGECORE_RATE_LIMIT_RPS must not be negative")
	}
	return nil
}

// StorageOptions maps the storage settings onto core.StorageOptions.
func (c Config) StorageOptions() core.StorageOptions {
	return core.StorageOptions{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// PaginateOptions returns the find bounds.
func (c Config) PaginateOptions() domain.Paginate {
	return domain.Paginate{Default: c.Paginate.Default, Max: c.Paginate.Max}
}

// BlobConfig maps the archive settings onto blob.Config. The second result
// is false when archiving is disabled.
func (c Config) BlobConfig() (blob.Config, bool) {
	if c.Blob.Driver == "" {
		return blob.Config{}, false
	}
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    c.Blob.S3Bucket,
			Region:    c.Blob.S3Region,
			Endpoint:  c.Blob.S3Endpoint,
			PathStyle: c.Blob.S3PathStyle,
		},
	}, true
}
