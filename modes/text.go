package modes

import (
	"strings"

	"github.com/sirupsen/logrus"

	"shikagraph/scene"
)

// TextRequest asks the UI for text content. ObjectID is set when an
// existing text object is being edited; Initial holds its current text.
type TextRequest struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ObjectID string  `json:"objectId,omitempty"`
	Initial  string  `json:"initial,omitempty"`
}

// Text places and edits text objects. Entry is two-phase: a tap opens a
// TextRequest, then the UI calls Commit or Cancel.
type Text struct {
	store  *scene.Store
	color  string
	size   float64
	family string

	surface *Surface
	saved   Surface
	pending *TextRequest
}

func NewText(store *scene.Store) *Text {
	return &Text{store: store, color: "black", size: 24, family: "Arial"}
}

func (t *Text) Name() string { return "text" }

func (t *Text) Color() string { return t.color }

func (t *Text) Size() float64 { return t.size }

func (t *Text) FontFamily() string { return t.family }

// SetColor changes the colour of new text and of the active text object.
func (t *Text) SetColor(c string) {
	t.color = c
	t.restyle(scene.Patch{Fill: scene.String(c)})
}

// SetSize changes the size of new text and of the active text object.
// Non-positive sizes are ignored.
func (t *Text) SetSize(size float64) {
	if size <= 0 {
		return
	}
	t.size = size
	t.restyle(scene.Patch{FontSize: scene.Float(size)})
}

func (t *Text) restyle(p scene.Patch) {
	if t.surface == nil || t.surface.Active == "" {
		return
	}
	if obj, ok := t.store.Get(t.surface.Active); ok && obj.Kind == scene.KindText {
		t.store.Mutate(obj.ID, p)
	}
}

func (t *Text) Activate(s *Surface) {
	t.surface = s
	t.saved = *s
	s.Cursor = "text"
	s.SelectionEnabled = true
	s.Active = ""
	s.Hit = TextOnly
}

func (t *Text) Deactivate() {
	t.pending = nil
	if t.surface != nil {
		*t.surface = t.saved
		t.surface.Active = ""
		t.surface = nil
	}
}

// Pending returns the open text request, if any.
func (t *Text) Pending() (TextRequest, bool) {
	if t.pending == nil {
		return TextRequest{}, false
	}
	return *t.pending, true
}

// PointerDown opens a request. A tap replaces a request the UI has not
// answered yet.
func (t *Text) PointerDown(p Pointer) {
	if t.surface == nil || p.Button == ButtonRight {
		return
	}
	req := &TextRequest{X: p.X, Y: p.Y}
	if obj, ok := t.store.ObjectAt(p.X, p.Y, TextOnly); ok {
		req.ObjectID = obj.ID
		req.Initial = obj.Text
		t.surface.Active = obj.ID
	} else {
		t.surface.Active = ""
	}
	t.pending = req
	logrus.WithFields(logrus.Fields{
		"x":         p.X,
		"y":         p.Y,
		"object_id": req.ObjectID,
	}).Debug("Text input requested")
}

func (t *Text) PointerMove(Pointer) {}

func (t *Text) PointerUp(Pointer) {}

// Commit answers the pending request. Blank text creates nothing and
// leaves an edited object unchanged. It returns the id of the created or
// edited object and whether the scene changed.
func (t *Text) Commit(text string) (string, bool) {
	req := t.pending
	t.pending = nil
	if req == nil || strings.TrimSpace(text) == "" {
		return "", false
	}

	if req.ObjectID != "" {
		obj, ok := t.store.Get(req.ObjectID)
		if !ok || obj.Text == text {
			return req.ObjectID, false
		}
		t.store.Mutate(req.ObjectID, scene.Patch{Text: scene.String(text)})
		return req.ObjectID, true
	}

	tr := scene.IdentityTransform(req.X, req.Y)
	tr.OriginX, tr.OriginY = scene.OriginCenter, scene.OriginCenter
	id := t.store.Add(scene.Object{
		Kind:      scene.KindText,
		Transform: tr,
		Style: scene.Style{
			Fill:       t.color,
			FontFamily: t.family,
			FontSize:   t.size,
			Opacity:    1,
		},
		Selectable: true,
		Text:       text,
	})
	if t.surface != nil {
		t.surface.Active = id
	}
	return id, true
}

// Cancel drops the pending request.
func (t *Text) Cancel() {
	t.pending = nil
}
