package scene

import (
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	defaultFontSize = 16
	lineSpacing     = 1.16
)

var (
	fontOnce   sync.Once
	parsedFont *truetype.Font
	fontErr    error
)

func textFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		parsedFont, fontErr = truetype.Parse(goregular.TTF)
	})
	return parsedFont, fontErr
}

// newFace returns a face at size points. Faces are not safe for concurrent
// use, so every caller gets its own.
func newFace(size float64) (font.Face, error) {
	f, err := textFont()
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = defaultFontSize
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}

// measureText returns the unscaled width and height of a text block.
func measureText(text string, size float64) (float64, float64) {
	if size <= 0 {
		size = defaultFontSize
	}
	lines := strings.Split(text, "\n")
	height := float64(len(lines)) * size * lineSpacing

	face, err := newFace(size)
	if err != nil {
		longest := 0
		for _, line := range lines {
			if n := len([]rune(line)); n > longest {
				longest = n
			}
		}
		return float64(longest) * size * 0.6, height
	}
	defer face.Close()

	width := 0.0
	for _, line := range lines {
		if w := float64(font.MeasureString(face, line)) / 64; w > width {
			width = w
		}
	}
	return width, height
}
