package modes

import (
	"github.com/sirupsen/logrus"

	"shikagraph/icons"
	"shikagraph/scene"
)

const (
	StampScale     = 0.5
	PreviewOpacity = 0.6
)

// Preview is the translucent icon that follows the pointer in stamp mode.
// It is UI state and never part of the scene.
type Preview struct {
	Src     string  `json:"src"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Scale   float64 `json:"scale"`
	Opacity float64 `json:"opacity"`
}

// Stamp places the selected catalog icon at each tap.
type Stamp struct {
	store    *scene.Store
	selected *icons.Descriptor

	surface *Surface
	saved   Surface
	preview *Preview
}

func NewStamp(store *scene.Store) *Stamp {
	return &Stamp{store: store}
}

func (s *Stamp) Name() string { return "stamp" }

// SelectIcon sets the icon placed by later taps.
func (s *Stamp) SelectIcon(icon icons.Descriptor) {
	s.selected = &icon
	if s.surface != nil {
		s.showPreview(0, 0)
	}
}

func (s *Stamp) Selected() (icons.Descriptor, bool) {
	if s.selected == nil {
		return icons.Descriptor{}, false
	}
	return *s.selected, true
}

// Preview returns the live preview while the mode is active and an icon
// is selected.
func (s *Stamp) Preview() (Preview, bool) {
	if s.preview == nil {
		return Preview{}, false
	}
	return *s.preview, true
}

func (s *Stamp) Activate(sf *Surface) {
	s.surface = sf
	s.saved = *sf
	sf.Cursor = "crosshair"
	sf.SelectionEnabled = false
	sf.Active = ""
	sf.Hit = Nothing
	if s.selected != nil {
		s.showPreview(0, 0)
	}
}

func (s *Stamp) Deactivate() {
	s.preview = nil
	if s.surface != nil {
		*s.surface = s.saved
		s.surface.Active = ""
		s.surface = nil
	}
}

func (s *Stamp) showPreview(x, y float64) {
	s.preview = &Preview{
		Src:     s.selected.AssetPath(),
		X:       x,
		Y:       y,
		Scale:   StampScale,
		Opacity: PreviewOpacity,
	}
}

func (s *Stamp) PointerDown(p Pointer) {
	if s.selected == nil {
		logrus.Debug("Stamp tap with no icon selected")
		return
	}
	if p.Button == ButtonRight {
		return
	}
	icon := s.selected
	t := scene.IdentityTransform(p.X, p.Y)
	t.ScaleX, t.ScaleY = StampScale, StampScale
	t.OriginX, t.OriginY = scene.OriginCenter, scene.OriginCenter

	id := s.store.Add(scene.Object{
		Kind:       scene.KindImage,
		Transform:  t,
		Style:      scene.Style{Opacity: 1},
		Selectable: true,
		Src:        icon.AssetPath(),
		Tag: &scene.Tag{
			IconID:   icon.ID,
			Category: string(icon.Category),
			NameJa:   icon.NameJa,
			NameEn:   icon.NameEn,
		},
	})
	logrus.WithFields(logrus.Fields{
		"object_id": id,
		"icon_id":   icon.ID,
	}).Debug("Stamp placed")
}

func (s *Stamp) PointerMove(p Pointer) {
	if s.preview != nil {
		s.preview.X, s.preview.Y = p.X, p.Y
	}
}

func (s *Stamp) PointerUp(Pointer) {}
