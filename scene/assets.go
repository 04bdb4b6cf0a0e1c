package scene

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/sirupsen/logrus"
)

// AssetResolver loads the bitmap behind an image object's src.
type AssetResolver interface {
	Resolve(src string) (image.Image, error)
}

// DirAssets resolves srcs relative to a root directory and caches the
// decoded images.
type DirAssets struct {
	Root string

	mu    sync.Mutex
	cache map[string]image.Image
}

func NewDirAssets(root string) *DirAssets {
	return &DirAssets{Root: root, cache: make(map[string]image.Image)}
}

func (d *DirAssets) Resolve(src string) (image.Image, error) {
	clean := filepath.Clean("/" + strings.TrimPrefix(src, "assets/"))
	path := filepath.Join(d.Root, clean)

	d.mu.Lock()
	defer d.mu.Unlock()
	if img, ok := d.cache[path]; ok {
		return img, nil
	}
	img, err := gg.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", src, err)
	}
	if d.cache == nil {
		d.cache = make(map[string]image.Image)
	}
	d.cache[path] = img
	return img, nil
}

type placeholderAssets struct{}

func (placeholderAssets) Resolve(src string) (image.Image, error) {
	return nil, fmt.Errorf("no asset resolver for %s", src)
}

const placeholderSize = 64

// Placeholder is drawn in place of an asset that failed to load.
func Placeholder() image.Image {
	dc := gg.NewContext(placeholderSize, placeholderSize)
	dc.SetColor(color.NRGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0x80})
	dc.DrawRectangle(0, 0, placeholderSize, placeholderSize)
	dc.Fill()
	dc.SetColor(color.NRGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff})
	dc.SetLineWidth(2)
	dc.DrawRectangle(1, 1, placeholderSize-2, placeholderSize-2)
	dc.MoveTo(8, 8)
	dc.LineTo(placeholderSize-8, placeholderSize-8)
	dc.MoveTo(placeholderSize-8, 8)
	dc.LineTo(8, placeholderSize-8)
	dc.Stroke()
	return dc.Image()
}

// resolveOrPlaceholder never fails: missing assets become a placeholder.
func resolveOrPlaceholder(r AssetResolver, src string) image.Image {
	img, err := r.Resolve(src)
	if err != nil || img == nil {
		logrus.WithError(err).WithField("src", src).Warn("Using placeholder for asset")
		return Placeholder()
	}
	return img
}
