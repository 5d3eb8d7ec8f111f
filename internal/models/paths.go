package models

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/backmassage/mangaup/internal/upscaler"
)

// Paths locates the installed tool and weights under the tool home:
//
//	<home>/bin/waifu2x-ncnn-vulkan[.exe]
//	<home>/models/waifu2x/models-*/
type Paths struct {
	Home string
	GOOS string // Defaults to runtime.GOOS.
}

// NewPaths returns Paths for home on the running platform.
func NewPaths(home string) Paths {
	return Paths{Home: home, GOOS: runtime.GOOS}
}

func (p Paths) goos() string {
	if p.GOOS == "" {
		return runtime.GOOS
	}
	return p.GOOS
}

// BinDir is the directory holding the upscaler executable.
func (p Paths) BinDir() string { return filepath.Join(p.Home, "bin") }

// BinaryName is the executable's file name on this platform.
func (p Paths) BinaryName() string {
	if p.goos() == "windows" {
		return upscaler.BinaryName + ".exe"
	}
	return upscaler.BinaryName
}

// Binary is the full path to the upscaler executable.
func (p Paths) Binary() string { return filepath.Join(p.BinDir(), p.BinaryName()) }

// ModelsRoot holds one directory per installed weights set.
func (p Paths) ModelsRoot() string { return filepath.Join(p.Home, "models", "waifu2x") }

// ModelDir is the weights directory passed to the upscaler's -m flag.
func (p Paths) ModelDir(m Model) string { return filepath.Join(p.ModelsRoot(), m.Subdir) }

// Status reports whether m is ready to use. A nil error means installed;
// otherwise the error is a *upscaler.MissingDependencyError naming the
// first missing piece.
func Status(p Paths, m Model) error {
	bin := p.Binary()
	if _, err := os.Stat(bin); err != nil {
		return &upscaler.MissingDependencyError{Name: upscaler.BinaryName, Path: bin, Err: errNotInstalled(err)}
	}

	dir := p.ModelDir(m)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &upscaler.MissingDependencyError{Name: m.Subdir, Path: dir, Err: errNotInstalled(err)}
	}
	if len(entries) == 0 {
		return &upscaler.MissingDependencyError{Name: m.Subdir, Path: dir, Err: fmt.Errorf("models directory is empty")}
	}
	return nil
}

func errNotInstalled(err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("not installed")
	}
	return err
}
