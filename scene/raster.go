package scene

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"strings"

	"github.com/fogleman/gg"
	"github.com/sirupsen/logrus"
)

// Format is a raster encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat accepts "png", "jpeg" and "jpg". An empty string means PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("unsupported image format %q", s)
}

func (f Format) MIMEType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Render draws the current scene at 1x.
func (s *Store) Render() image.Image {
	return renderSnapshot(s.Serialize(), s.width, s.height, s.assets).Image()
}

// ToRasterImage encodes the current scene. quality in [0,1] applies to
// JPEG only.
func (s *Store) ToRasterImage(format Format, quality float64) ([]byte, error) {
	dc := renderSnapshot(s.Serialize(), s.width, s.height, s.assets)

	var buf bytes.Buffer
	switch format {
	case FormatPNG, "":
		if err := dc.EncodePNG(&buf); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case FormatJPEG:
		q := int(clamp(quality, 0, 1)*100 + 0.5)
		if q < 1 {
			q = 1
		}
		if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: q}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	return buf.Bytes(), nil
}

// DataURL is ToRasterImage wrapped as a base64 data URL.
func (s *Store) DataURL(format Format, quality float64) (string, error) {
	data, err := s.ToRasterImage(format, quality)
	if err != nil {
		return "", err
	}
	if format == "" {
		format = FormatPNG
	}
	return "data:" + format.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func renderSnapshot(snap Snapshot, width, height int, assets AssetResolver) *gg.Context {
	dc := gg.NewContext(width, height)

	bg, err := ParseColor(snap.Background.Color)
	if err != nil {
		logrus.WithError(err).Warn("Unknown background color, using white")
		bg, _ = ParseColor("white")
	}
	dc.SetColor(bg)
	dc.Clear()

	if snap.Background.Image != "" {
		img := resolveOrPlaceholder(assets, snap.Background.Image)
		dc.DrawImage(img, 0, 0)
	}

	for _, obj := range snap.Objects {
		dc.Push()
		dc.Translate(obj.Left, obj.Top)
		if obj.Angle != 0 {
			dc.Rotate(gg.Radians(obj.Angle))
		}
		sx, sy := scaleOf(obj.Transform)
		dc.Scale(sx, sy)

		switch obj.Kind {
		case KindPath:
			drawPath(dc, obj)
		case KindText:
			drawText(dc, obj)
		case KindImage:
			drawImage(dc, obj, assets)
		}
		dc.Pop()
	}
	return dc
}

func drawPath(dc *gg.Context, obj Object) {
	if len(obj.Points) == 0 {
		return
	}
	c, err := ParseColor(obj.Stroke)
	if err != nil {
		logrus.WithError(err).WithField("object_id", obj.ID).Warn("Skipping path with bad stroke")
		return
	}
	dc.SetColor(withOpacity(c, obj.Opacity))
	dc.SetLineWidth(obj.StrokeWidth)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	dc.MoveTo(obj.Points[0].X, obj.Points[0].Y)
	if len(obj.Points) == 1 {
		dc.LineTo(obj.Points[0].X, obj.Points[0].Y)
	}
	for _, p := range obj.Points[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.Stroke()
}

func drawText(dc *gg.Context, obj Object) {
	c, err := ParseColor(obj.Fill)
	if err != nil {
		logrus.WithError(err).WithField("object_id", obj.ID).Warn("Skipping text with bad fill")
		return
	}
	face, err := newFace(obj.FontSize)
	if err != nil {
		logrus.WithError(err).Error("Failed to load text face")
		return
	}
	defer face.Close()
	dc.SetFontFace(face)
	dc.SetColor(withOpacity(c, obj.Opacity))

	w, h := measureText(obj.Text, obj.FontSize)
	box := placed(Transform{OriginX: obj.OriginX, OriginY: obj.OriginY}, w, h)
	size := obj.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	for i, line := range strings.Split(obj.Text, "\n") {
		y := box.minY + float64(i)*size*lineSpacing
		dc.DrawStringAnchored(line, box.minX, y, 0, 1)
	}
}

func drawImage(dc *gg.Context, obj Object, assets AssetResolver) {
	img := resolveOrPlaceholder(assets, obj.Src)
	ax, ay := 0.0, 0.0
	if obj.OriginX == OriginCenter {
		ax = 0.5
	}
	if obj.OriginY == OriginCenter {
		ay = 0.5
	}
	if obj.Opacity < 1 {
		b := img.Bounds()
		faded := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		alpha := image.NewUniform(color.Alpha{A: uint8(clamp(obj.Opacity, 0, 1)*255 + 0.5)})
		draw.DrawMask(faded, faded.Bounds(), img, b.Min, alpha, image.Point{}, draw.Over)
		img = faded
	}
	dc.DrawImageAnchored(img, 0, 0, ax, ay)
}
