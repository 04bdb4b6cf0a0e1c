// Package icons loads the stamp icon catalog.
package icons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Category string

const (
	CategoryDiagnosis     Category = "diagnosis"
	CategoryTreatmentPlan Category = "treatment_plan"
	CategoryRestoration   Category = "restoration"
)

// Categories lists the fixed buckets in display order.
var Categories = []Category{CategoryDiagnosis, CategoryTreatmentPlan, CategoryRestoration}

// Descriptor is one entry of icons.json.
type Descriptor struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
	NameJa   string   `json:"name_ja"`
	NameEn   string   `json:"name_en"`
	File     string   `json:"file"`
	Style    string   `json:"style,omitempty"`
	BgColor  string   `json:"bg_color,omitempty"`
}

// AssetPath is the bitmap drawn for the icon. Vector sources are served
// as their .png rendition.
func (d Descriptor) AssetPath() string {
	if strings.HasSuffix(d.File, ".svg") {
		return strings.TrimSuffix(d.File, ".svg") + ".png"
	}
	return d.File
}

var fallback = []Descriptor{
	{
		ID:       "diagnosis_healthtooth",
		Category: CategoryDiagnosis,
		NameJa:   "健全歯",
		NameEn:   "HealthTooth",
		File:     "diagnosis/healthtooth.png",
		Style:    "standard",
		BgColor:  "#FFFFFF",
	},
	{
		ID:       "diagnosis_caries",
		Category: CategoryDiagnosis,
		NameJa:   "虫歯",
		NameEn:   "Caries",
		File:     "diagnosis/caries.png",
		Style:    "standard",
		BgColor:  "#FFFFFF",
	},
}

// Catalog is read-only once loaded.
type Catalog struct {
	icons      []Descriptor
	byCategory map[Category][]Descriptor
	usingFall  bool
	client     *http.Client
}

func NewCatalog() *Catalog {
	c := &Catalog{client: &http.Client{Timeout: 10 * time.Second}}
	c.set(nil, false)
	return c
}

// Load reads the catalog from a file path or an http(s) URL. On any
// failure the built-in icons are used and the error is returned so the
// caller can log it; the catalog is usable either way.
func (c *Catalog) Load(ctx context.Context, source string) error {
	icons, err := c.fetch(ctx, source)
	if err != nil {
		logrus.WithError(err).WithField("source", source).Warn("Failed to load icons, using built-in set")
		c.set(fallback, true)
		return err
	}
	c.set(icons, false)
	logrus.WithFields(logrus.Fields{
		"source":         source,
		"icons":          len(icons),
		"diagnosis":      len(c.byCategory[CategoryDiagnosis]),
		"treatment_plan": len(c.byCategory[CategoryTreatmentPlan]),
		"restoration":    len(c.byCategory[CategoryRestoration]),
	}).Info("Icons loaded")
	return nil
}

// LoadFallback installs the built-in icons.
func (c *Catalog) LoadFallback() {
	c.set(fallback, true)
}

func (c *Catalog) fetch(ctx context.Context, source string) ([]Descriptor, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = c.get(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, err
	}

	var icons []Descriptor
	if err := json.Unmarshal(data, &icons); err != nil {
		return nil, fmt.Errorf("decode icons: %w", err)
	}
	if !hasKnownCategory(icons) {
		return nil, errEmptyCatalog
	}
	return icons, nil
}

var errEmptyCatalog = errors.New("decode icons: empty catalog")

func hasKnownCategory(icons []Descriptor) bool {
	for _, icon := range icons {
		for _, cat := range Categories {
			if icon.Category == cat {
				return true
			}
		}
	}
	return false
}

func (c *Catalog) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch icons: HTTP status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Catalog) set(icons []Descriptor, usingFallback bool) {
	c.icons = icons
	c.usingFall = usingFallback
	c.byCategory = make(map[Category][]Descriptor, len(Categories))
	for _, cat := range Categories {
		c.byCategory[cat] = []Descriptor{}
	}
	for _, icon := range icons {
		if bucket, ok := c.byCategory[icon.Category]; ok {
			c.byCategory[icon.Category] = append(bucket, icon)
		}
	}
}

// ByCategory returns the icons of one category. Unknown categories are
// empty.
func (c *Catalog) ByCategory(cat Category) []Descriptor {
	bucket := c.byCategory[cat]
	out := make([]Descriptor, len(bucket))
	copy(out, bucket)
	return out
}

func (c *Catalog) ByID(id string) (Descriptor, bool) {
	for _, icon := range c.icons {
		if icon.ID == id {
			return icon, true
		}
	}
	return Descriptor{}, false
}

func (c *Catalog) All() []Descriptor {
	out := make([]Descriptor, len(c.icons))
	copy(out, c.icons)
	return out
}

// UsingFallback reports whether the built-in icons are in use.
func (c *Catalog) UsingFallback() bool {
	return c.usingFall
}
