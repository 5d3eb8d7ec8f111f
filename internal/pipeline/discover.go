package pipeline

import (
	"errors"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/backmassage/mangaup/internal/job"
	"github.com/backmassage/mangaup/internal/naming"
)

// ErrEmptyInput is reported when a directory holds no supported images. It
// is soft: logged, and the directory contributes zero work.
var ErrEmptyInput = errors.New("no supported images found")

// Supported image extensions (lowercase, with leading dot).
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// IsSupported reports whether name has a supported image extension,
// compared case-insensitively.
func IsSupported(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// Flat yields every supported image directly inside inputDir, ordered by
// NFC-normalized file name. The sequence reads the directory when iterated,
// so it can be ranged over more than once.
func Flat(inputDir, outputDir string) iter.Seq2[job.FileEntry, error] {
	return chapterFiles(inputDir, outputDir, "")
}

// Nested yields the images of every chapter of inputDir in chapter order,
// then file order. Destinations mirror the chapter under outputDir.
func Nested(inputDir, outputDir string) iter.Seq2[job.FileEntry, error] {
	return func(yield func(job.FileEntry, error) bool) {
		chapters, err := Chapters(inputDir, outputDir)
		if err != nil {
			yield(job.FileEntry{}, err)
			return
		}
		for _, ch := range chapters {
			for e, err := range chapterFiles(filepath.Join(inputDir, ch), outputDir, ch) {
				if !yield(e, err) {
					return
				}
			}
		}
	}
}

// Chapters returns the names of inputDir's immediate subdirectories in
// order. Hidden directories and the output directory (when it lives inside
// the input, as with --subdir) are not chapters.
func Chapters(inputDir, outputDir string) ([]string, error) {
	ents, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, err
	}
	outAbs, _ := filepath.Abs(outputDir)

	var names []string
	for _, e := range ents {
		if !isDir(inputDir, e) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if abs, err := filepath.Abs(filepath.Join(inputDir, e.Name())); err == nil && abs == outAbs {
			continue
		}
		names = append(names, e.Name())
	}
	sortNames(names)
	return names, nil
}

// Collect materializes seq. An empty result yields ErrEmptyInput.
func Collect(seq iter.Seq2[job.FileEntry, error]) ([]job.FileEntry, error) {
	var out []job.FileEntry
	for e, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, ErrEmptyInput
	}
	return out, nil
}

func chapterFiles(dir, outputDir, chapter string) iter.Seq2[job.FileEntry, error] {
	return func(yield func(job.FileEntry, error) bool) {
		ents, err := os.ReadDir(dir)
		if err != nil {
			yield(job.FileEntry{}, err)
			return
		}
		var names []string
		for _, e := range ents {
			// Dotfiles are skipped: AppleDouble "._001.png" companions are
			// not images despite their extension.
			if strings.HasPrefix(e.Name(), ".") || !IsSupported(e.Name()) || isDir(dir, e) {
				continue
			}
			names = append(names, e.Name())
		}
		sortNames(names)

		for _, n := range names {
			src := filepath.Join(dir, n)
			entry := job.FileEntry{
				Source:      src,
				Chapter:     chapter,
				Destination: naming.Destination(outputDir, chapter, src),
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

// isDir follows symlinks so linked chapter folders count.
func isDir(parent string, e os.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	fi, err := os.Stat(filepath.Join(parent, e.Name()))
	return err == nil && fi.IsDir()
}

// sortNames orders names by their NFC form so precomposed and decomposed
// spellings (common on macOS volumes) sort the same way.
func sortNames(names []string) {
	slices.SortFunc(names, func(a, b string) int {
		if c := strings.Compare(norm.NFC.String(a), norm.NFC.String(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}
