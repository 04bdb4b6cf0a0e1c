package scene

import "math"

type rect struct {
	minX, minY, maxX, maxY float64
}

func (r rect) contains(x, y float64) bool {
	return x >= r.minX && x <= r.maxX && y >= r.minY && y <= r.maxY
}

// Bounds returns the axis-aligned box an object covers on the canvas,
// ignoring rotation.
func (s *Store) Bounds(id string) (minX, minY, maxX, maxY float64, ok bool) {
	i := s.index(id)
	if i < 0 {
		return 0, 0, 0, 0, false
	}
	r := s.bounds(*s.objects[i])
	return r.minX, r.minY, r.maxX, r.maxY, true
}

func (s *Store) bounds(o Object) rect {
	sx, sy := scaleOf(o.Transform)
	switch o.Kind {
	case KindPath:
		r := rect{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
		for _, p := range o.Points {
			r.minX = math.Min(r.minX, p.X)
			r.minY = math.Min(r.minY, p.Y)
			r.maxX = math.Max(r.maxX, p.X)
			r.maxY = math.Max(r.maxY, p.Y)
		}
		pad := o.StrokeWidth / 2
		return rect{
			minX: o.Left + r.minX*sx - pad,
			minY: o.Top + r.minY*sy - pad,
			maxX: o.Left + r.maxX*sx + pad,
			maxY: o.Top + r.maxY*sy + pad,
		}
	case KindText:
		w, h := measureText(o.Text, o.FontSize)
		return placed(o.Transform, w*sx, h*sy)
	case KindImage:
		w, h := float64(placeholderSize), float64(placeholderSize)
		if img, err := s.assets.Resolve(o.Src); err == nil && img != nil {
			b := img.Bounds()
			w, h = float64(b.Dx()), float64(b.Dy())
		}
		return placed(o.Transform, w*sx, h*sy)
	}
	return rect{}
}

// placed positions a w×h box according to the transform's origin.
func placed(t Transform, w, h float64) rect {
	x, y := t.Left, t.Top
	if t.OriginX == OriginCenter {
		x -= w / 2
	}
	if t.OriginY == OriginCenter {
		y -= h / 2
	}
	return rect{minX: x, minY: y, maxX: x + w, maxY: y + h}
}

func scaleOf(t Transform) (float64, float64) {
	sx, sy := t.ScaleX, t.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	return sx, sy
}
