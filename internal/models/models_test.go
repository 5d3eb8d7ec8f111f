package models

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/mangaup/internal/upscaler"
)

func TestLookup(t *testing.T) {
	m, err := Lookup("waifu2x")
	require.NoError(t, err)
	assert.Equal(t, "models-cunet", m.Subdir)
	assert.Equal(t, 2, m.Scale)

	m, err = Lookup("  WAIFU2X-Photo ")
	require.NoError(t, err)
	assert.Equal(t, "models-upconv_7_photo", m.Subdir)
}

func TestLookup_Suggestion(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"waifu2x-anim", "waifu2x-anime"},
		{"waifu2x-fotos", "waifu2x-photo"},
		{"xyz", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lookup(tt.name)
			var uerr *UnknownModelError
			require.ErrorAs(t, err, &uerr)
			assert.Equal(t, tt.want, uerr.Suggestion)
			assert.Contains(t, err.Error(), "available: waifu2x, waifu2x-anime, waifu2x-photo")
			if tt.want != "" {
				assert.Contains(t, err.Error(), `did you mean "`+tt.want+`"`)
			}
		})
	}
}

func TestAll_Sorted(t *testing.T) {
	assert.Equal(t, []string{"waifu2x", "waifu2x-anime", "waifu2x-photo"}, Names())
	_, err := Lookup(DefaultModel)
	assert.NoError(t, err)
}

func TestPaths(t *testing.T) {
	p := Paths{Home: "/opt/mangaup", GOOS: "linux"}
	assert.Equal(t, filepath.Join("/opt/mangaup", "bin", "waifu2x-ncnn-vulkan"), p.Binary())
	assert.Equal(t, filepath.Join("/opt/mangaup", "models", "waifu2x", "models-cunet"), p.ModelDir(registry["waifu2x"]))

	win := Paths{Home: "/opt/mangaup", GOOS: "windows"}
	assert.Equal(t, "waifu2x-ncnn-vulkan.exe", win.BinaryName())
}

func TestReleaseURL(t *testing.T) {
	u, err := ReleaseURL("linux")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/nihui/waifu2x-ncnn-vulkan/releases/download/20220728/waifu2x-ncnn-vulkan-20220728-ubuntu.zip", u)

	u, err = ReleaseURL("darwin")
	require.NoError(t, err)
	assert.Contains(t, u, "-macos.zip")

	_, err = ReleaseURL("plan9")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestStatus(t *testing.T) {
	p := Paths{Home: t.TempDir(), GOOS: "linux"}
	m := registry["waifu2x"]

	var missing *upscaler.MissingDependencyError
	err := Status(p, m)
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, upscaler.BinaryName, missing.Name)

	require.NoError(t, os.MkdirAll(p.BinDir(), 0o755))
	require.NoError(t, os.WriteFile(p.Binary(), []byte("#!/bin/sh\n"), 0o755))
	err = Status(p, m)
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "models-cunet", missing.Name)
	assert.Contains(t, err.Error(), "not installed")

	require.NoError(t, os.MkdirAll(p.ModelDir(m), 0o755))
	err = Status(p, m)
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, err.Error(), "empty")

	require.NoError(t, os.WriteFile(filepath.Join(p.ModelDir(m), "noise0_scale2.0x_model.param"), []byte("x"), 0o644))
	assert.NoError(t, Status(p, m))
}

// releaseZip builds an archive shaped like the upstream release.
func releaseZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func serve(t *testing.T, body []byte, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type countingProgress struct {
	bytes   int64
	total   int64
	cleared bool
}

func (c *countingProgress) Add(n int64, _ string) { c.bytes += n }
func (c *countingProgress) Clear()                { c.cleared = true }

func TestInstall(t *testing.T) {
	const root = "waifu2x-ncnn-vulkan-20220728-ubuntu/"
	body := releaseZip(t, map[string]string{
		root + "waifu2x-ncnn-vulkan":                               "ELF",
		root + "README.md":                                         "readme",
		root + "models-cunet/noise0_scale2.0x_model.param":         "p",
		root + "models-cunet/noise0_scale2.0x_model.bin":           "b",
		root + "models-upconv_7_photo/scale2.0x_model.param":       "p",
		root + "models-upconv_7_anime_style_art_rgb/scale2.0x.bin": "b",
	})
	srv := serve(t, body, http.StatusOK)

	p := Paths{Home: t.TempDir(), GOOS: "linux"}
	bar := &countingProgress{}
	in := &Installer{
		Client: srv.Client(),
		URL:    srv.URL + "/release.zip",
		NewProgress: func(_ string, total int64) Progress {
			bar.total = total
			return bar
		},
	}

	res, err := in.Install(context.Background(), p, "waifu2x")
	require.NoError(t, err)

	assert.Equal(t, p.Binary(), res.Binary)
	assert.Len(t, res.ModelDirs, 3)
	assert.Equal(t, int64(len(body)), res.Bytes)
	assert.Equal(t, int64(len(body)), bar.bytes)
	assert.True(t, bar.cleared)

	info, err := os.Stat(p.Binary())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.FileExists(t, filepath.Join(p.ModelsRoot(), "models-cunet", "noise0_scale2.0x_model.bin"))
	assert.NoError(t, Status(p, registry["waifu2x"]))
	assert.NoError(t, Status(p, registry["waifu2x-photo"]))

	entries, err := os.ReadDir(p.BinDir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "download and extraction temporaries are removed")
	assert.Equal(t, "waifu2x-ncnn-vulkan", entries[0].Name())
}

func TestInstall_Failures(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		status  int
		wantErr string
	}{
		{
			name:    "http error",
			body:    []byte("not found"),
			status:  http.StatusNotFound,
			wantErr: "status 404",
		},
		{
			name:    "not a zip",
			body:    []byte("<html>"),
			status:  http.StatusOK,
			wantErr: "open archive",
		},
		{
			name: "no executable",
			body: releaseZip(t, map[string]string{
				"rel/models-cunet/a.param": "p",
			}),
			status:  http.StatusOK,
			wantErr: "executable waifu2x-ncnn-vulkan not found",
		},
		{
			name: "no models",
			body: releaseZip(t, map[string]string{
				"rel/waifu2x-ncnn-vulkan": "ELF",
			}),
			status:  http.StatusOK,
			wantErr: "no model directories found",
		},
		{
			name: "entry escapes",
			body: releaseZip(t, map[string]string{
				"../evil": "x",
			}),
			status:  http.StatusOK,
			wantErr: "escapes extraction directory",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.body, tt.status)
			p := Paths{Home: t.TempDir(), GOOS: "linux"}
			in := &Installer{Client: srv.Client(), URL: srv.URL}

			_, err := in.Install(context.Background(), p, "waifu2x")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			entries, err := os.ReadDir(p.BinDir())
			require.NoError(t, err)
			for _, e := range entries {
				assert.NotEqual(t, "waifu2x.zip", e.Name())
				assert.False(t, e.IsDir(), "temp dir %s left behind", e.Name())
			}
			assert.NoFileExists(t, filepath.Join(filepath.Dir(p.Home), "evil"))
		})
	}
}

func TestInstall_UnknownModel(t *testing.T) {
	in := &Installer{URL: "http://127.0.0.1:0"}
	_, err := in.Install(context.Background(), Paths{Home: t.TempDir()}, "esrgan")
	var uerr *UnknownModelError
	assert.True(t, errors.As(err, &uerr))
}

func TestInstall_Cancelled(t *testing.T) {
	srv := serve(t, releaseZip(t, nil), http.StatusOK)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := &Installer{Client: srv.Client(), URL: srv.URL}
	_, err := in.Install(ctx, Paths{Home: t.TempDir(), GOOS: "linux"}, "waifu2x")
	assert.ErrorIs(t, err, context.Canceled)
}
