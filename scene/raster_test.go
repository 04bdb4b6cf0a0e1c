package scene

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fogleman/gg"
)

func TestToRasterImage_PNG(t *testing.T) {
	s := NewStore(WithSize(120, 80))
	s.Add(samplePath())

	data, err := s.ToRasterImage(FormatPNG, 1)
	if err != nil {
		t.Fatalf("ToRasterImage() failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 120 || b.Dy() != 80 {
		t.Errorf("image size: got %dx%d, want 120x80", b.Dx(), b.Dy())
	}
}

func TestToRasterImage_JPEG(t *testing.T) {
	s := NewStore(WithSize(64, 64))
	s.Add(sampleText())

	for _, q := range []float64{0, 0.5, 1} {
		data, err := s.ToRasterImage(FormatJPEG, q)
		if err != nil {
			t.Fatalf("ToRasterImage(jpeg, %v) failed: %v", q, err)
		}
		if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
			t.Errorf("quality %v: output is not a JPEG: %v", q, err)
		}
	}
}

func TestToRasterImage_UnknownFormat(t *testing.T) {
	s := NewStore()
	if _, err := s.ToRasterImage(Format("gif"), 1); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestRender_BackgroundAndStroke(t *testing.T) {
	s := NewStore(WithSize(50, 50))
	s.SetBackground(Background{Color: "#0000ff"})
	s.Add(Object{
		Kind:      KindPath,
		Transform: IdentityTransform(0, 0),
		Style:     Style{Stroke: "red", StrokeWidth: 6, Opacity: 1},
		Points:    []Point{{5, 25}, {25, 25}, {45, 25}},
	})

	img := s.Render()
	if r, g, b, _ := img.At(25, 5).RGBA(); r != 0 || g != 0 || b != 0xffff {
		t.Errorf("background pixel: got (%d,%d,%d), want blue", r, g, b)
	}
	if r, _, b, _ := img.At(25, 25).RGBA(); r < 0xf000 || b > 0x1000 {
		t.Errorf("stroke pixel: got r=%d b=%d, want red", r, b)
	}
}

func TestRender_MissingAssetUsesPlaceholder(t *testing.T) {
	s := NewStore(WithSize(200, 200))
	s.Add(sampleStamp())

	img := s.Render()
	// Placeholder tile, scaled by 0.5 and centered on (100, 100).
	if c := color.NRGBAModel.Convert(img.At(100, 100)).(color.NRGBA); c == (color.NRGBA{255, 255, 255, 255}) {
		t.Error("expected placeholder drawn at stamp position")
	}
}

func TestDirAssets(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "diagnosis"), 0o755); err != nil {
		t.Fatal(err)
	}
	dc := gg.NewContext(40, 20)
	dc.SetRGB(0, 1, 0)
	dc.Clear()
	if err := dc.SavePNG(filepath.Join(dir, "diagnosis", "caries.png")); err != nil {
		t.Fatalf("failed to write asset: %v", err)
	}

	assets := NewDirAssets(dir)
	for _, src := range []string{"diagnosis/caries.png", "assets/diagnosis/caries.png"} {
		img, err := assets.Resolve(src)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", src, err)
		}
		if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
			t.Errorf("Resolve(%q) size: got %v", src, b)
		}
	}
	if _, err := assets.Resolve("../../etc/passwd"); err == nil {
		t.Error("Resolve() escaped the asset root")
	}

	s := NewStore(WithAssets(assets))
	id := s.Add(sampleStamp())
	minX, minY, maxX, maxY, ok := s.Bounds(id)
	if !ok {
		t.Fatal("Bounds() did not find stamp")
	}
	if minX != 90 || maxX != 110 || minY != 95 || maxY != 105 {
		t.Errorf("Bounds(): got (%v,%v)-(%v,%v), want (90,95)-(110,105)", minX, minY, maxX, maxY)
	}
}

func TestDataURL(t *testing.T) {
	s := NewStore(WithSize(10, 10))
	url, err := s.DataURL(FormatPNG, 1)
	if err != nil {
		t.Fatalf("DataURL() failed: %v", err)
	}
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("DataURL() prefix: got %.30s", url)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}
	if _, _, err := image.Decode(bytes.NewReader(raw)); err != nil {
		t.Errorf("payload is not an image: %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatPNG, "png": FormatPNG, "JPG": FormatJPEG, "jpeg": FormatJPEG} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q): got %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseFormat("webp"); err == nil {
		t.Error("ParseFormat(webp) expected error")
	}
}
