package probe

import "strconv"

// ImageInfo is the header-level description of one image.
type ImageInfo struct {
	Path   string
	Format string // "png", "jpeg" or "webp"
	Width  int
	Height int
	Size   int64 // Bytes on disk.
}

// Resolution returns "WxH", or "unknown" when dimensions are missing.
func (i ImageInfo) Resolution() string {
	if i.Width <= 0 || i.Height <= 0 {
		return "unknown"
	}
	return strconv.Itoa(i.Width) + "x" + strconv.Itoa(i.Height)
}

// Scaled returns the dimensions expected after upscaling by factor.
func (i ImageInfo) Scaled(factor int) (int, int) {
	return i.Width * factor, i.Height * factor
}
