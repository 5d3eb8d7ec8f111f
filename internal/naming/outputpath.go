package naming

import (
	"fmt"
	"os"
	"path/filepath"
)

// SubdirName is the output folder created inside the input with --subdir.
const SubdirName = "upscaled"

// Suffix is appended to the input folder name for the default sibling
// output directory.
const Suffix = "_upscaled"

// ConfigurationError reports a bad input path. It is fatal and raised
// before any processing starts.
type ConfigurationError struct {
	Path   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// ResolveOutputDir returns the output directory for inputDir.
//
//	explicit:  outputDir verbatim
//	--subdir:  <inputDir>/upscaled
//	default:   <parent>/<name>_upscaled
//
// The default sibling is computed from the absolute input path, so "." and
// "../vol1" name a real folder.
//
// inputDir must exist and be a directory. The result is not created here;
// callers MkdirAll it once they know the run will write.
func ResolveOutputDir(inputDir, outputDir string, useSubdir bool) (string, error) {
	fi, err := os.Stat(inputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &ConfigurationError{Path: inputDir, Reason: "input directory does not exist"}
		}
		return "", &ConfigurationError{Path: inputDir, Reason: err.Error()}
	}
	if !fi.IsDir() {
		return "", &ConfigurationError{Path: inputDir, Reason: "input path is not a directory"}
	}

	switch {
	case outputDir != "":
		return outputDir, nil
	case useSubdir:
		return filepath.Join(inputDir, SubdirName), nil
	default:
		abs, err := filepath.Abs(inputDir)
		if err != nil {
			return "", &ConfigurationError{Path: inputDir, Reason: err.Error()}
		}
		return filepath.Join(filepath.Dir(abs), filepath.Base(abs)+Suffix), nil
	}
}

// Destination mirrors source into outputDir, under chapter when set.
func Destination(outputDir, chapter, source string) string {
	if chapter == "" {
		return filepath.Join(outputDir, filepath.Base(source))
	}
	return filepath.Join(outputDir, chapter, filepath.Base(source))
}

// ArchivePath is the zip written for dir: a sibling named <dir>.zip.
func ArchivePath(dir string) string {
	return filepath.Clean(dir) + ".zip"
}

// ArchiveKey is the object key for a published archive: prefix joined with
// the archive's base name, using forward slashes.
func ArchiveKey(prefix, zipPath string) string {
	base := filepath.Base(zipPath)
	if prefix == "" {
		return base
	}
	if prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	return prefix + base
}
