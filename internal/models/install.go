package models

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ReleaseVersion is the waifu2x-ncnn-vulkan release that gets installed.
const ReleaseVersion = "20220728"

const releaseBase = "https://github.com/nihui/waifu2x-ncnn-vulkan/releases/download/"

// ErrUnsupportedPlatform is returned when no prebuilt release exists for
// the running OS.
var ErrUnsupportedPlatform = errors.New("no prebuilt waifu2x-ncnn-vulkan release for this platform")

// ReleaseURL returns the download URL of the prebuilt release for goos.
func ReleaseURL(goos string) (string, error) {
	var suffix string
	switch goos {
	case "windows":
		suffix = "windows"
	case "linux":
		suffix = "ubuntu"
	case "darwin":
		suffix = "macos"
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
	return fmt.Sprintf("%s%s/waifu2x-ncnn-vulkan-%s-%s.zip", releaseBase, ReleaseVersion, ReleaseVersion, suffix), nil
}

// Progress is advanced with downloaded byte counts.
type Progress interface {
	Add(n int64, item string)
	Clear()
}

// Installer downloads a release archive and unpacks the executable and
// weights into the tool home.
type Installer struct {
	Client *http.Client
	// URL overrides the release URL; empty selects [ReleaseURL] for the
	// target platform.
	URL string
	// NewProgress is optional. total is -1 when the server sends no length.
	NewProgress func(label string, total int64) Progress
}

// InstallResult lists what was installed.
type InstallResult struct {
	Binary    string
	ModelDirs []string
	Bytes     int64
}

// Install fetches the release that serves model name and unpacks it under
// p. Temporary files are removed whether or not it succeeds; a failed
// install leaves previously installed files alone except for pieces that
// were already replaced.
func (in *Installer) Install(ctx context.Context, p Paths, name string) (InstallResult, error) {
	var res InstallResult
	m, err := Lookup(name)
	if err != nil {
		return res, err
	}

	url := in.URL
	if url == "" {
		if url, err = ReleaseURL(p.goos()); err != nil {
			return res, err
		}
	}

	if err := os.MkdirAll(p.BinDir(), 0o755); err != nil {
		return res, fmt.Errorf("create bin directory: %w", err)
	}
	if err := os.MkdirAll(p.ModelsRoot(), 0o755); err != nil {
		return res, fmt.Errorf("create models directory: %w", err)
	}

	zipPath := filepath.Join(p.BinDir(), "waifu2x.zip")
	defer os.Remove(zipPath)
	if res.Bytes, err = in.download(ctx, url, zipPath); err != nil {
		return res, err
	}

	tmp, err := os.MkdirTemp(p.BinDir(), "extract-")
	if err != nil {
		return res, err
	}
	defer os.RemoveAll(tmp)
	if err := extract(zipPath, tmp); err != nil {
		return res, err
	}

	exe, err := findFile(tmp, p.BinaryName())
	if err != nil {
		return res, err
	}
	if err := copyFile(exe, p.Binary(), 0o755); err != nil {
		return res, fmt.Errorf("install executable: %w", err)
	}
	res.Binary = p.Binary()

	dirs, err := findModelDirs(tmp)
	if err != nil {
		return res, err
	}
	for _, src := range dirs {
		dst := filepath.Join(p.ModelsRoot(), filepath.Base(src))
		if err := os.RemoveAll(dst); err != nil {
			return res, err
		}
		if err := copyTree(src, dst); err != nil {
			return res, fmt.Errorf("install %s: %w", filepath.Base(src), err)
		}
		res.ModelDirs = append(res.ModelDirs, dst)
	}

	if err := Status(p, m); err != nil {
		return res, fmt.Errorf("release does not provide %s: %w", m.Name, err)
	}
	return res, nil
}

func (in *Installer) download(ctx context.Context, url, dst string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	client := in.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download failed: status %d from %s", resp.StatusCode, url)
	}

	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	var body io.Reader = resp.Body
	if in.NewProgress != nil {
		bar := in.NewProgress("Downloading", resp.ContentLength)
		defer bar.Clear()
		body = &progressReader{r: resp.Body, bar: bar, name: filepath.Base(url)}
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("download failed: %w", err)
	}
	return n, nil
}

type progressReader struct {
	r    io.Reader
	bar  Progress
	name string
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.bar.Add(int64(n), p.name)
	}
	return n, err
}

// extract unpacks zipPath into dir. Entries that would land outside dir
// are rejected.
func extract(zipPath, dir string) error {
	zr, err := zip.OpenReader(zipPath)
	if errors.Is(err, zip.ErrInsecurePath) {
		_ = zr.Close()
		return fmt.Errorf("archive entry escapes extraction directory: %w", err)
	}
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	root := filepath.Clean(dir) + string(os.PathSeparator)
	for _, f := range zr.File {
		target := filepath.Join(dir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("archive entry %q escapes extraction directory", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func findFile(root, name string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == name {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("executable %s not found in archive", name)
	}
	return found, nil
}

// findModelDirs returns every models-* directory in the extracted tree,
// sorted by name.
func findModelDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), "models-") {
			dirs = append(dirs, path)
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, errors.New("no model directories found in archive")
	}
	sort.Slice(dirs, func(i, j int) bool { return filepath.Base(dirs[i]) < filepath.Base(dirs[j]) })
	return dirs, nil
}

// copyFile writes src to dst with perm, removing dst on a partial copy.
func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Chmod(dst, perm)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target, 0o644)
	})
}
