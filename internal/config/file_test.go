package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadFile_AppliesKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mangaup.toml", `
model = "waifu2x-anime"
quality = "quality"
denoise = 1
gpu = 2
tile_fallback = true
timeout = "90s"
verify = false

[history]
enabled = false

[s3]
bucket = "scans"
prefix = "upscaled/"
path_style = true
`)
	cfg := DefaultConfig()
	require.NoError(t, LoadFile(path, &cfg))

	assert.Equal(t, "waifu2x-anime", cfg.Model)
	assert.Equal(t, QualityBest, cfg.Quality)
	require.NotNil(t, cfg.DenoiseOverride)
	assert.Equal(t, 1, *cfg.DenoiseOverride)
	assert.Nil(t, cfg.TileSizeOverride, "absent key keeps preset value")
	assert.Equal(t, 2, cfg.GPU)
	assert.True(t, cfg.TileFallback)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.False(t, cfg.Verify)
	assert.False(t, cfg.HistoryEnabled)
	assert.Equal(t, "scans", cfg.S3.Bucket)
	assert.Equal(t, "upscaled/", cfg.S3.Prefix)
	assert.Equal(t, "us-east-1", cfg.S3.Region, "default region kept")
	assert.True(t, cfg.S3.PathStyle)
}

func TestLoadFile_EnvSubstitution(t *testing.T) {
	t.Setenv("MANGAUP_TEST_SECRET", "s3cr3t")
	path := writeFile(t, t.TempDir(), "mangaup.toml", `
[s3]
bucket = "scans"
secret_key = "${MANGAUP_TEST_SECRET}"
region = "${MANGAUP_TEST_REGION:-eu-west-1}"
`)
	cfg := DefaultConfig()
	require.NoError(t, LoadFile(path, &cfg))
	assert.Equal(t, "s3cr3t", cfg.S3.SecretKey)
	assert.Equal(t, "eu-west-1", cfg.S3.Region)
}

func TestLoadFile_MissingEnvVar(t *testing.T) {
	require.NoError(t, os.Unsetenv("MANGAUP_TEST_MISSING"))
	path := writeFile(t, t.TempDir(), "mangaup.toml", `
[s3]
access_key = "${MANGAUP_TEST_MISSING}"
`)
	cfg := DefaultConfig()
	err := LoadFile(path, &cfg)

	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"MANGAUP_TEST_MISSING"}, cerr.Missing)
	assert.Contains(t, err.Error(), path)
}

func TestLoadFile_BadDuration(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mangaup.toml", `timeout = "soon"`)
	cfg := DefaultConfig()
	err := LoadFile(path, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestLoadFile_SyntaxError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mangaup.toml", `model = `)
	cfg := DefaultConfig()
	err := LoadFile(path, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestSubstituteEnvVars_Multiple(t *testing.T) {
	t.Setenv("MANGAUP_A", "one")
	t.Setenv("MANGAUP_B", "two")
	out, missing := substituteEnvVars("${MANGAUP_A}-${MANGAUP_B}-${MANGAUP_A}")
	assert.Equal(t, "one-two-one", out)
	assert.Empty(t, missing)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MANGAUP_MODEL", "waifu2x-photo")
	t.Setenv("MANGAUP_GPU", "1")
	t.Setenv("MANGAUP_S3_BUCKET", "env-bucket")

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(&cfg))
	assert.Equal(t, "waifu2x-photo", cfg.Model)
	assert.Equal(t, 1, cfg.GPU)
	assert.Equal(t, "env-bucket", cfg.S3.Bucket)
}

func TestApplyEnv_BadGPU(t *testing.T) {
	t.Setenv("MANGAUP_GPU", "first")
	cfg := DefaultConfig()
	assert.Error(t, ApplyEnv(&cfg))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")), "missing file is fine")

	require.NoError(t, os.Unsetenv("MANGAUP_DOTENV_PROBE"))
	t.Cleanup(func() { _ = os.Unsetenv("MANGAUP_DOTENV_PROBE") })
	p := writeFile(t, dir, ".env", "MANGAUP_DOTENV_PROBE=loaded\n")
	require.NoError(t, LoadDotEnv(p))
	assert.Equal(t, "loaded", os.Getenv("MANGAUP_DOTENV_PROBE"))
}

func parseFlags(t *testing.T, args ...string) (*pflag.FlagSet, *Flags) {
	t.Helper()
	fs := pflag.NewFlagSet("mangaup", pflag.ContinueOnError)
	var f Flags
	BindFlags(fs, &f)
	require.NoError(t, fs.Parse(args))
	return fs, &f
}

func TestApplyFlags_OnlyChangedFlagsOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GPU = 3 // e.g. from the config file
	cfg.Model = "waifu2x-anime"

	fs, f := parseFlags(t, "-i", "/manga/vol1/", "-q", "fast")
	ApplyFlags(fs, f, &cfg)

	assert.Equal(t, "/manga/vol1", cfg.InputDir)
	assert.Equal(t, QualityFast, cfg.Quality)
	assert.Equal(t, 3, cfg.GPU, "unset --gpu keeps file value")
	assert.Equal(t, "waifu2x-anime", cfg.Model, "unset --model keeps file value")
	assert.Nil(t, cfg.DenoiseOverride)
	assert.Nil(t, cfg.TileSizeOverride)
}

func TestApplyFlags_ExplicitZeroOverrides(t *testing.T) {
	cfg := DefaultConfig()
	fs, f := parseFlags(t, "-i", "in", "--denoise", "0", "--tile-size", "0")
	ApplyFlags(fs, f, &cfg)

	require.NotNil(t, cfg.DenoiseOverride)
	require.NotNil(t, cfg.TileSizeOverride)
	assert.Equal(t, 0, *cfg.DenoiseOverride)
	assert.Equal(t, 0, *cfg.TileSizeOverride)
}

func TestApplyFlags_NegativeDenoise(t *testing.T) {
	cfg := DefaultConfig()
	fs, f := parseFlags(t, "-i", "in", "--denoise=-1")
	ApplyFlags(fs, f, &cfg)
	require.NotNil(t, cfg.DenoiseOverride)
	assert.Equal(t, -1, *cfg.DenoiseOverride)
}

func TestApplyFlags_Negations(t *testing.T) {
	cfg := DefaultConfig()
	fs, f := parseFlags(t, "--list-models", "--no-verify", "--no-history", "--no-color", "--color")
	ApplyFlags(fs, f, &cfg)

	assert.True(t, cfg.ListModels)
	assert.False(t, cfg.Verify)
	assert.False(t, cfg.HistoryEnabled)
	assert.Equal(t, ColorNever, cfg.ColorMode, "--no-color wins over --color")
}

func TestApplyFlags_Archiving(t *testing.T) {
	cfg := DefaultConfig()
	fs, f := parseFlags(t, "-i", "series", "--nested", "--zip-chapters", "--subdir")
	ApplyFlags(fs, f, &cfg)

	assert.True(t, cfg.Nested)
	assert.True(t, cfg.ZipChapters)
	assert.True(t, cfg.UseSubdir)
	assert.False(t, cfg.ZipOutput)
}

func TestApplyFlags_TileFallback(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.TileFallback)

	fs, f := parseFlags(t, "-i", "in", "--tile-fallback")
	ApplyFlags(fs, f, &cfg)
	assert.True(t, cfg.TileFallback)
	assert.Contains(t, cfg.Summary("out"), [2]string{"Tile Fallback", "Yes"})

	cfg.TileFallback = true
	fs, f = parseFlags(t, "-i", "in")
	ApplyFlags(fs, f, &cfg)
	assert.True(t, cfg.TileFallback, "unset flag keeps file value")
}

func TestApplyFlags_PresetBeatsFileOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mangaup.toml", "denoise = 1\ntile_size = 400\n")
	cfg := DefaultConfig()
	require.NoError(t, LoadFile(path, &cfg))

	fs, f := parseFlags(t, "-i", "in", "-q", "fast")
	ApplyFlags(fs, f, &cfg)
	assert.Nil(t, cfg.DenoiseOverride, "-q fast yields the preset's denoise")
	assert.Nil(t, cfg.TileSizeOverride)

	cfg = DefaultConfig()
	require.NoError(t, LoadFile(path, &cfg))
	fs, f = parseFlags(t, "-i", "in", "-q", "fast", "--tile-size", "64")
	ApplyFlags(fs, f, &cfg)
	assert.Nil(t, cfg.DenoiseOverride)
	require.NotNil(t, cfg.TileSizeOverride)
	assert.Equal(t, 64, *cfg.TileSizeOverride, "explicit flag still overrides the preset")

	cfg = DefaultConfig()
	require.NoError(t, LoadFile(path, &cfg))
	fs, f = parseFlags(t, "-i", "in")
	ApplyFlags(fs, f, &cfg)
	require.NotNil(t, cfg.DenoiseOverride)
	assert.Equal(t, 1, *cfg.DenoiseOverride, "file override kept without -q")
}
