// Package imageio turns sketch files into the PNG texture the pipeline uploads.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"sketchforge/internal/services"
)

// Texture is an encoded sketch plus its pixel dimensions.
type Texture struct {
	Name   string
	Width  int
	Height int
	PNG    []byte
}

// Load decodes the image at path (PNG, JPEG, GIF, BMP, TIFF, or WebP) and
// re-encodes it as PNG.
func Load(path string) (Texture, error) {
	file, err := os.Open(path)
	if err != nil {
		return Texture{}, services.Wrap(services.ErrInvalidArgument, "imageio", "open", path, err)
	}
	defer file.Close()
	tex, err := Decode(file)
	if err != nil {
		return Texture{}, err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	tex.Name = base + ".png"
	return tex, nil
}

// Decode reads any registered image format from r.
func Decode(r io.Reader) (Texture, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return Texture{}, services.Wrap(services.ErrInvalidArgument, "imageio", "decode", "unsupported or corrupt image", err)
	}
	tex, err := FromImage(img)
	if err != nil {
		return Texture{}, fmt.Errorf("re-encode %s: %w", format, err)
	}
	return tex, nil
}

// FromImage encodes an in-memory image as PNG.
func FromImage(img image.Image) (Texture, error) {
	if img == nil {
		return Texture{}, services.Wrap(services.ErrInvalidArgument, "imageio", "encode", "image required", nil)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return Texture{}, services.Wrap(services.ErrInvalidArgument, "imageio", "encode",
			fmt.Sprintf("image has no pixels (%dx%d)", bounds.Dx(), bounds.Dy()), nil)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Texture{}, fmt.Errorf("encode png: %w", err)
	}
	return Texture{
		Name:   "sketch.png",
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		PNG:    buf.Bytes(),
	}, nil
}
