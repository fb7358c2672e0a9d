package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// SketchPNG renders a w×h sketch with a diagonal stroke and returns it encoded as PNG.
func SketchPNG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	for i := 0; i < w && i < h; i++ {
		img.Set(i, i, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode sketch: %v", err)
	}
	return buf.Bytes()
}

// WriteSketch writes a w×h PNG sketch to path and returns the path.
func WriteSketch(t testing.TB, path string, w, h int) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, SketchPNG(t, w, h), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
