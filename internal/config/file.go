package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors the TOML layout. Pointer fields distinguish "unset"
// from zero values so only keys present in the file override defaults.
type fileConfig struct {
	Home         string  `toml:"home"`
	Model        string  `toml:"model"`
	Quality      string  `toml:"quality"`
	Denoise      *int    `toml:"denoise"`
	TileSize     *int    `toml:"tile_size"`
	GPU          *int    `toml:"gpu"`
	TileFallback *bool   `toml:"tile_fallback"`
	Timeout      *string `toml:"timeout"`
	SkipExisting *bool   `toml:"skip_existing"`
	Verify       *bool   `toml:"verify"`
	Color        string  `toml:"color"`
	LogFile      string  `toml:"log_file"`

	History struct {
		Enabled *bool  `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"history"`

	S3 struct {
		Bucket    string `toml:"bucket"`
		Prefix    string `toml:"prefix"`
		Region    string `toml:"region"`
		Endpoint  string `toml:"endpoint"`
		AccessKey string `toml:"access_key"`
		SecretKey string `toml:"secret_key"`
		PathStyle *bool  `toml:"path_style"`
	} `toml:"s3"`
}

// LoadFile reads the TOML file at path, substitutes ${VAR} and
// ${VAR:-default} references from the environment, and applies every key
// present onto cfg. Unresolved variables and bad values are reported
// together as a *ConfigError.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))
	if len(missing) > 0 {
		return &ConfigError{Path: path, Missing: missing}
	}

	var fc fileConfig
	if _, err := toml.Decode(content, &fc); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	if errs := fc.apply(cfg); len(errs) > 0 {
		return &ConfigError{Path: path, Errors: errs}
	}
	return nil
}

func (fc *fileConfig) apply(cfg *Config) []string {
	var errs []string

	if fc.Home != "" {
		cfg.Home = fc.Home
	}
	if fc.Model != "" {
		cfg.Model = fc.Model
	}
	if fc.Quality != "" {
		cfg.Quality = QualityPreset(fc.Quality)
	}
	if fc.Denoise != nil {
		d := *fc.Denoise
		cfg.DenoiseOverride = &d
	}
	if fc.TileSize != nil {
		t := *fc.TileSize
		cfg.TileSizeOverride = &t
	}
	if fc.GPU != nil {
		cfg.GPU = *fc.GPU
	}
	if fc.TileFallback != nil {
		cfg.TileFallback = *fc.TileFallback
	}
	if fc.Timeout != nil {
		d, err := time.ParseDuration(*fc.Timeout)
		if err != nil {
			errs = append(errs, fmt.Sprintf("timeout: invalid duration %q", *fc.Timeout))
		} else {
			cfg.Timeout = d
		}
	}
	if fc.SkipExisting != nil {
		cfg.SkipExisting = *fc.SkipExisting
	}
	if fc.Verify != nil {
		cfg.Verify = *fc.Verify
	}
	if fc.Color != "" {
		cfg.ColorMode = ColorMode(fc.Color)
	}
	if fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}

	if fc.History.Enabled != nil {
		cfg.HistoryEnabled = *fc.History.Enabled
	}
	if fc.History.Path != "" {
		cfg.HistoryPath = fc.History.Path
	}

	s3 := &cfg.S3
	setString(&s3.Bucket, fc.S3.Bucket)
	setString(&s3.Prefix, fc.S3.Prefix)
	setString(&s3.Region, fc.S3.Region)
	setString(&s3.Endpoint, fc.S3.Endpoint)
	setString(&s3.AccessKey, fc.S3.AccessKey)
	setString(&s3.SecretKey, fc.S3.SecretKey)
	if fc.S3.PathStyle != nil {
		s3.PathStyle = *fc.S3.PathStyle
	}

	return errs
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR} with the environment value and
// ${VAR:-default} with the value or default. Unset variables without a
// default are returned in missing (sorted, deduplicated).
func substituteEnvVars(content string) (string, []string) {
	seen := make(map[string]bool)
	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		name, hasDefault, def := sub[1], sub[2] != "", sub[3]
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		seen[name] = true
		return match
	})

	missing := make([]string, 0, len(seen))
	for name := range seen {
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return out, missing
}
