package modes

import (
	"github.com/sirupsen/logrus"

	"shikagraph/scene"
)

// MinStrokePoints is the smallest stroke kept on pointer-up.
const MinStrokePoints = 3

// Draw is freehand drawing. A stroke is one gesture: it is recorded once,
// on pointer-up.
type Draw struct {
	store *scene.Store
	color string
	width float64

	surface *Surface
	saved   Surface
	stroke  string
}

func NewDraw(store *scene.Store) *Draw {
	return &Draw{store: store, color: "black", width: 2}
}

func (d *Draw) Name() string { return "freedraw" }

func (d *Draw) Color() string { return d.color }

func (d *Draw) Width() float64 { return d.width }

func (d *Draw) SetColor(c string) { d.color = c }

// SetWidth ignores non-positive widths.
func (d *Draw) SetWidth(w float64) {
	if w > 0 {
		d.width = w
	}
}

func (d *Draw) Activate(s *Surface) {
	d.surface = s
	d.saved = *s
	s.Cursor = "crosshair"
	s.SelectionEnabled = false
	s.Active = ""
	s.Hit = Nothing
}

func (d *Draw) Deactivate() {
	d.commit()
	if d.surface != nil {
		*d.surface = d.saved
		d.surface.Active = ""
		d.surface = nil
	}
}

func (d *Draw) PointerDown(p Pointer) {
	if p.Button == ButtonRight || p.Touches > 1 || d.stroke != "" {
		return
	}
	d.store.BeginGesture()
	d.stroke = d.store.Add(scene.Object{
		Kind:       scene.KindPath,
		Transform:  scene.IdentityTransform(0, 0),
		Style:      scene.Style{Stroke: d.color, StrokeWidth: d.width, Opacity: 1},
		Selectable: true,
		Points:     []scene.Point{{X: p.X, Y: p.Y}},
	})
}

func (d *Draw) PointerMove(p Pointer) {
	if d.stroke == "" || p.Touches > 1 {
		return
	}
	d.store.Mutate(d.stroke, scene.Patch{AppendPoints: []scene.Point{{X: p.X, Y: p.Y}}})
}

func (d *Draw) PointerUp(Pointer) {
	d.commit()
}

// commit ends the in-flight stroke, dropping it when it is too short.
func (d *Draw) commit() {
	if d.stroke == "" {
		return
	}
	id := d.stroke
	d.stroke = ""
	if obj, ok := d.store.Get(id); ok && len(obj.Points) < MinStrokePoints {
		d.store.Remove(id)
		logrus.WithField("points", len(obj.Points)).Debug("Discarded short stroke")
	}
	d.store.EndGesture()
}
