package probe

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ErrEmptyOutput is returned by [Verify] when the output file has no bytes.
var ErrEmptyOutput = errors.New("output file is empty")

// Probe reads the image header at path without decoding pixel data.
func Probe(path string) (ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return ImageInfo{}, err
	}

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("read image header %s: %w", path, err)
	}
	return ImageInfo{
		Path:   path,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Size:   fi.Size(),
	}, nil
}

// Exists reports whether path is a non-empty regular file.
func Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}

// Verify checks an upscaler output. The file must exist and be non-empty.
// When full is set it is also decoded completely (catching truncated
// writes) and, if want has dimensions, its size must equal want scaled by
// factor.
func Verify(path string, want ImageInfo, factor int, full bool) (ImageInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return ImageInfo{}, err
	}
	if fi.Size() == 0 {
		return ImageInfo{}, ErrEmptyOutput
	}
	got := ImageInfo{Path: path, Size: fi.Size()}
	if !full {
		return got, nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return got, fmt.Errorf("decode output: %w", err)
	}
	b := img.Bounds()
	got.Width, got.Height = b.Dx(), b.Dy()

	if want.Width > 0 && want.Height > 0 && factor > 0 {
		w, h := want.Scaled(factor)
		if got.Width != w || got.Height != h {
			return got, fmt.Errorf("output is %s, expected %dx%d", got.Resolution(), w, h)
		}
	}
	return got, nil
}
