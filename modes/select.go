package modes

import "shikagraph/scene"

// Select picks the topmost selectable object and drags it. A drag is one
// gesture.
type Select struct {
	store   *scene.Store
	surface *Surface

	dragging   string
	offX, offY float64
}

func NewSelect(store *scene.Store) *Select {
	return &Select{store: store}
}

func (s *Select) Name() string { return "select" }

func (s *Select) Activate(sf *Surface) {
	s.surface = sf
	sf.Cursor = "default"
	sf.SelectionEnabled = true
	sf.Hit = Selectable
}

func (s *Select) Deactivate() {
	s.endDrag()
	s.surface = nil
}

func (s *Select) PointerDown(p Pointer) {
	if s.surface == nil || !s.surface.SelectionEnabled || p.Button == ButtonRight {
		return
	}
	obj, ok := s.store.ObjectAt(p.X, p.Y, s.surface.Hit)
	if !ok {
		s.surface.Active = ""
		return
	}
	s.surface.Active = obj.ID
	s.dragging = obj.ID
	s.offX, s.offY = p.X-obj.Left, p.Y-obj.Top
	s.store.BeginGesture()
}

func (s *Select) PointerMove(p Pointer) {
	if s.dragging == "" {
		return
	}
	s.store.Mutate(s.dragging, scene.Patch{
		Left: scene.Float(p.X - s.offX),
		Top:  scene.Float(p.Y - s.offY),
	})
}

func (s *Select) PointerUp(Pointer) {
	s.endDrag()
}

func (s *Select) endDrag() {
	if s.dragging == "" {
		return
	}
	s.dragging = ""
	s.store.EndGesture()
}
