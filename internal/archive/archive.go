// Package archive zips a finished output folder and removes the folder,
// all or nothing: the folder is only deleted once a complete, readable zip
// exists, and a failed zip never survives next to its intact source. The
// zip is built under a temporary name, so an archive left by an earlier run
// is only replaced by a verified one.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrProtectedPath is returned for the input directory or any of its
	// ancestors. Those are never zipped away.
	ErrProtectedPath = errors.New("refusing to archive protected path")

	// ErrNothingToArchive is returned when the folder has no files.
	ErrNothingToArchive = errors.New("nothing to archive")
)

// Progress receives byte-proportional updates while entries are written.
type Progress interface {
	Add(n int64, item string)
	Clear()
}

// Result describes a finished archive.
type Result struct {
	ZipPath   string
	Files     int
	Bytes     int64 // Total size of archived files.
	Removed   bool  // Source folder deleted.
	RemoveErr error // Non-nil when the zip is complete but cleanup failed.
}

// Archiver writes store-only zips. Image formats are already compressed, so
// deflate would cost time for no gain.
type Archiver struct {
	// Protected lists directories that must never be archived or removed
	// (the run's input directory). Their ancestors are protected too.
	Protected []string

	// NewProgress, when set, is called once per archive with the total
	// byte count.
	NewProgress func(label string, total int64) Progress

	create func(dir, pattern string) (io.WriteCloser, string, error)
}

type file struct {
	path string
	name string // Slash-separated entry name relative to the folder's parent.
	info fs.FileInfo
}

// Archive zips every file under dir into zipPath, entry names relative to
// dir's parent (so "ch1/001.png"), then removes dir. On any failure the
// partial zip is removed, dir is left untouched and whatever already sat at
// zipPath is kept.
func (a *Archiver) Archive(ctx context.Context, dir, zipPath string) (Result, error) {
	res := Result{ZipPath: zipPath}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return res, err
	}
	if err := a.checkProtected(absDir); err != nil {
		return res, err
	}
	absZip, err := filepath.Abs(zipPath)
	if err != nil {
		return res, err
	}
	if within(absZip, absDir) {
		return res, fmt.Errorf("zip %s would be written inside %s", zipPath, dir)
	}

	files, total, err := collect(absDir)
	if err != nil {
		return res, err
	}
	if len(files) == 0 {
		return res, ErrNothingToArchive
	}
	res.Files, res.Bytes = len(files), total

	tmp, err := a.write(ctx, absZip, files, total)
	if err != nil {
		if tmp != "" {
			_ = os.Remove(tmp)
		}
		return res, err
	}
	if err := verify(tmp, len(files)); err != nil {
		_ = os.Remove(tmp)
		return res, err
	}
	_ = os.Chmod(tmp, 0o644)
	if err := os.Rename(tmp, absZip); err != nil {
		_ = os.Remove(tmp)
		return res, fmt.Errorf("move archive into place: %w", err)
	}

	if err := os.RemoveAll(absDir); err != nil {
		res.RemoveErr = err
		return res, nil
	}
	res.Removed = true
	return res, nil
}

func (a *Archiver) checkProtected(absDir string) error {
	realDir := resolve(absDir)
	for _, p := range a.Protected {
		absP, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		realP := resolve(absP)
		if absDir == absP || within(absP, absDir) || realDir == realP || within(realP, realDir) {
			return fmt.Errorf("%w: %s", ErrProtectedPath, absDir)
		}
	}
	return nil
}

// resolve follows symlinks in path, or returns it unchanged when it does
// not exist.
func resolve(path string) string {
	if r, err := filepath.EvalSymlinks(path); err == nil {
		return r
	}
	return path
}

// within reports whether path lies strictly inside dir.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func collect(absDir string) ([]file, int64, error) {
	fi, err := os.Stat(absDir)
	if err != nil {
		return nil, 0, err
	}
	if !fi.IsDir() {
		return nil, 0, fmt.Errorf("%s is not a directory", absDir)
	}

	parent := filepath.Dir(absDir)
	var files []file
	var total int64
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		files = append(files, file{path: path, name: filepath.ToSlash(rel), info: info})
		total += info.Size()
		return nil
	})
	return files, total, err
}

// write streams files into a temporary zip next to zipPath and returns its
// name. The name is set whenever the temporary file was created, even on
// error, so the caller can remove it.
func (a *Archiver) write(ctx context.Context, zipPath string, files []file, total int64) (tmp string, err error) {
	create := a.create
	if create == nil {
		create = func(dir, pattern string) (io.WriteCloser, string, error) {
			f, err := os.CreateTemp(dir, pattern)
			if err != nil {
				return nil, "", err
			}
			return f, f.Name(), nil
		}
	}
	out, tmp, err := create(filepath.Dir(zipPath), "."+filepath.Base(zipPath)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create %s: %w", zipPath, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", zipPath, cerr)
		}
	}()

	var bar Progress
	if a.NewProgress != nil {
		bar = a.NewProgress("Zipping", total)
		defer bar.Clear()
	}

	zw := zip.NewWriter(out)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return tmp, err
		}
		if err := addFile(zw, f, bar); err != nil {
			return tmp, err
		}
	}
	if err := zw.Close(); err != nil {
		return tmp, fmt.Errorf("finish %s: %w", zipPath, err)
	}
	return tmp, nil
}

func addFile(zw *zip.Writer, f file, bar Progress) error {
	hdr, err := zip.FileInfoHeader(f.info)
	if err != nil {
		return err
	}
	hdr.Name = f.name
	hdr.Method = zip.Store

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", f.name, err)
	}
	src, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer src.Close()

	var r io.Reader = src
	if bar != nil {
		r = &progressReader{r: src, bar: bar, name: filepath.Base(f.path)}
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("write %s: %w", f.name, err)
	}
	return nil
}

// verify re-opens the finished zip and checks the entry count before the
// source folder is allowed to go.
func verify(zipPath string, want int) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("verify %s: %w", zipPath, err)
	}
	defer zr.Close()
	if len(zr.File) != want {
		return fmt.Errorf("verify %s: %d entries, expected %d", zipPath, len(zr.File), want)
	}
	return nil
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
