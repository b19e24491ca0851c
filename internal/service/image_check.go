package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/h2non/bimg"
)

// ImageCheck validates uploaded images before they go anywhere near an
// upstream API. It uses bimg (Go bindings for libvips) — a C library that's
// extremely fast at image inspection and resizing. The trade-off: requires
// libvips as a system dependency.
type ImageCheck struct {
	maxBytes     int64
	maxDimension int
}

// NewImageCheck creates a validator. maxBytes caps the accepted upload size;
// maxDimension bounds the image sent upstream (larger ones get downscaled).
// Zero disables either limit.
func NewImageCheck(maxBytes int64, maxDimension int) *ImageCheck {
	return &ImageCheck{
		maxBytes:     maxBytes,
		maxDimension: maxDimension,
	}
}

// Validate checks the declared content type and verifies the bytes decode
// as a well-formed raster image. On success it returns the effective MIME
// type (sniffed from the bytes, falling back to the declared type); the
// image bytes themselves are not modified. All failures wrap ErrInvalidImage.
func (ic *ImageCheck) Validate(data []byte, declaredType string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(declaredType), "image/") {
		return "", fmt.Errorf("%w: content type %q is not an image", ErrInvalidImage, declaredType)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrInvalidImage)
	}
	if ic.maxBytes > 0 && int64(len(data)) > ic.maxBytes {
		return "", fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidImage, ic.maxBytes)
	}

	// bimg refuses corrupt or truncated data here — that's our decode check.
	size, err := bimg.NewImage(data).Size()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if size.Width == 0 || size.Height == 0 {
		return "", fmt.Errorf("%w: image has no pixels", ErrInvalidImage)
	}

	return sniffMIME(data, declaredType), nil
}

// BoundDimensions downscales an image whose longest side exceeds the
// configured maximum, re-encoding it as JPEG. Images within bounds pass
// through untouched. The second return value is the (possibly new) MIME type.
func (ic *ImageCheck) BoundDimensions(data []byte, mimeType string) ([]byte, string, error) {
	if ic.maxDimension <= 0 {
		return data, mimeType, nil
	}

	img := bimg.NewImage(data)
	size, err := img.Size()
	if err != nil {
		return nil, "", fmt.Errorf("reading image size: %w", err)
	}
	if size.Width <= ic.maxDimension && size.Height <= ic.maxDimension {
		return data, mimeType, nil
	}

	opts := bimg.Options{
		Type:    bimg.JPEG,
		Quality: 85,
	}
	// Scale the longest side down to the bound; bimg keeps the aspect ratio
	// when only one dimension is set.
	if size.Width >= size.Height {
		opts.Width = ic.maxDimension
	} else {
		opts.Height = ic.maxDimension
	}

	resized, err := img.Process(opts)
	if err != nil {
		return nil, "", fmt.Errorf("downscaling image: %w", err)
	}
	return resized, "image/jpeg", nil
}

// Magic-byte prefixes for the image formats we expect from browsers.
var (
	jpegMagic = []byte{0xFF, 0xD8}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	gifMagic  = []byte("GIF8")
	riffMagic = []byte("RIFF")
)

// sniffMIME detects the image type from magic bytes, falling back to the
// declared content type. Browsers occasionally declare a generic type for
// files whose bytes are perfectly identifiable.
func sniffMIME(data []byte, declared string) string {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return "image/jpeg"
	case bytes.HasPrefix(data, pngMagic):
		return "image/png"
	case bytes.HasPrefix(data, gifMagic):
		return "image/gif"
	case bytes.HasPrefix(data, riffMagic) && len(data) >= 12 && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	}
	return declared
}
