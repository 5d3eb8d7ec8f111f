package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from a .env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv layers MANGAUP_* environment variables onto cfg. It runs after
// the TOML file and before CLI flags.
func ApplyEnv(cfg *Config) error {
	cerr := &ConfigError{}

	if v := os.Getenv("MANGAUP_HOME"); v != "" {
		cfg.Home = v
	}
	if v := os.Getenv("MANGAUP_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("MANGAUP_QUALITY"); v != "" {
		cfg.Quality = QualityPreset(v)
	}
	if v := os.Getenv("MANGAUP_GPU"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			cerr.Errors = append(cerr.Errors, fmt.Sprintf("MANGAUP_GPU must be a whole number (got %q)", v))
		} else {
			cfg.GPU = n
		}
	}
	if v := os.Getenv("MANGAUP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			cerr.Errors = append(cerr.Errors, fmt.Sprintf("MANGAUP_TIMEOUT: invalid duration %q", v))
		} else {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("MANGAUP_LOG"); v != "" {
		cfg.LogFile = v
	}

	setString(&cfg.S3.Bucket, os.Getenv("MANGAUP_S3_BUCKET"))
	setString(&cfg.S3.Prefix, os.Getenv("MANGAUP_S3_PREFIX"))
	setString(&cfg.S3.Region, os.Getenv("MANGAUP_S3_REGION"))
	setString(&cfg.S3.Endpoint, os.Getenv("MANGAUP_S3_ENDPOINT"))
	setString(&cfg.S3.AccessKey, os.Getenv("MANGAUP_S3_ACCESS_KEY"))
	setString(&cfg.S3.SecretKey, os.Getenv("MANGAUP_S3_SECRET_KEY"))

	if cerr.HasErrors() {
		return cerr
	}
	return nil
}
