package scene

import "encoding/json"

type (
	// Kind identifies what an Object draws.
	Kind string

	Point struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// Transform places an object on the canvas. Angle is in degrees and
	// rotates around (Left, Top). OriginX/OriginY say which part of the
	// object sits at (Left, Top): "left"/"top" or "center".
	Transform struct {
		Left    float64 `json:"left"`
		Top     float64 `json:"top"`
		ScaleX  float64 `json:"scaleX"`
		ScaleY  float64 `json:"scaleY"`
		Angle   float64 `json:"angle"`
		OriginX string  `json:"originX"`
		OriginY string  `json:"originY"`
	}

	Style struct {
		Stroke      string  `json:"stroke,omitempty"`
		StrokeWidth float64 `json:"strokeWidth,omitempty"`
		Fill        string  `json:"fill,omitempty"`
		FontFamily  string  `json:"fontFamily,omitempty"`
		FontSize    float64 `json:"fontSize,omitempty"`
		Opacity     float64 `json:"opacity"`
	}

	// Tag carries the catalog metadata of a stamped icon.
	Tag struct {
		IconID   string `json:"iconId"`
		Category string `json:"category"`
		NameJa   string `json:"name_ja,omitempty"`
		NameEn   string `json:"name_en,omitempty"`
	}

	Object struct {
		ID         string `json:"id"`
		Kind       Kind   `json:"type"`
		Transform
		Style
		Selectable bool    `json:"selectable"`
		Points     []Point `json:"points,omitempty"`
		Text       string  `json:"text,omitempty"`
		Src        string  `json:"src,omitempty"`
		Tag        *Tag    `json:"data,omitempty"`
	}

	Background struct {
		Color string `json:"color"`
		Image string `json:"image,omitempty"`
	}
)

const (
	KindPath  Kind = "path"
	KindText  Kind = "text"
	KindImage Kind = "image"
)

const (
	OriginLeft   = "left"
	OriginTop    = "top"
	OriginCenter = "center"
)

// UnmarshalJSON decodes omitted fields as their canvas defaults rather
// than zero values. An object without "opacity" is opaque.
func (o *Object) UnmarshalJSON(data []byte) error {
	type plain Object
	v := plain{
		Transform:  Transform{ScaleX: 1, ScaleY: 1},
		Style:      Style{Opacity: 1},
		Selectable: true,
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Object(v)
	return nil
}

// DefaultBackground is the background of a fresh or cleared canvas.
var DefaultBackground = Background{Color: "white"}

func (k Kind) valid() bool {
	switch k {
	case KindPath, KindText, KindImage:
		return true
	}
	return false
}

// IdentityTransform is an unscaled, unrotated transform anchored at the
// top-left corner.
func IdentityTransform(left, top float64) Transform {
	return Transform{
		Left:    left,
		Top:     top,
		ScaleX:  1,
		ScaleY:  1,
		OriginX: OriginLeft,
		OriginY: OriginTop,
	}
}

// Clone returns a deep copy of o.
func (o Object) Clone() Object {
	c := o
	if o.Points != nil {
		c.Points = make([]Point, len(o.Points))
		copy(c.Points, o.Points)
	}
	if o.Tag != nil {
		tag := *o.Tag
		c.Tag = &tag
	}
	return c
}

// Equal reports whether o and other hold the same values. A nil and an
// empty point list compare equal.
func (o Object) Equal(other Object) bool {
	if o.ID != other.ID || o.Kind != other.Kind ||
		o.Transform != other.Transform || o.Style != other.Style ||
		o.Selectable != other.Selectable || o.Text != other.Text || o.Src != other.Src {
		return false
	}
	if len(o.Points) != len(other.Points) {
		return false
	}
	for i := range o.Points {
		if o.Points[i] != other.Points[i] {
			return false
		}
	}
	switch {
	case o.Tag == nil && other.Tag == nil:
		return true
	case o.Tag == nil || other.Tag == nil:
		return false
	}
	return *o.Tag == *other.Tag
}

// Patch describes an in-place change to an object. Nil fields are left
// untouched.
type Patch struct {
	Left         *float64 `json:"left,omitempty"`
	Top          *float64 `json:"top,omitempty"`
	ScaleX       *float64 `json:"scaleX,omitempty"`
	ScaleY       *float64 `json:"scaleY,omitempty"`
	Angle        *float64 `json:"angle,omitempty"`
	Stroke       *string  `json:"stroke,omitempty"`
	StrokeWidth  *float64 `json:"strokeWidth,omitempty"`
	Fill         *string  `json:"fill,omitempty"`
	FontFamily   *string  `json:"fontFamily,omitempty"`
	FontSize     *float64 `json:"fontSize,omitempty"`
	Opacity      *float64 `json:"opacity,omitempty"`
	Selectable   *bool    `json:"selectable,omitempty"`
	Text         *string  `json:"text,omitempty"`
	AppendPoints []Point  `json:"appendPoints,omitempty"`
}

func (p Patch) apply(o *Object) {
	if p.Left != nil {
		o.Left = *p.Left
	}
	if p.Top != nil {
		o.Top = *p.Top
	}
	if p.ScaleX != nil {
		o.ScaleX = *p.ScaleX
	}
	if p.ScaleY != nil {
		o.ScaleY = *p.ScaleY
	}
	if p.Angle != nil {
		o.Angle = *p.Angle
	}
	if p.Stroke != nil {
		o.Stroke = *p.Stroke
	}
	if p.StrokeWidth != nil {
		o.StrokeWidth = *p.StrokeWidth
	}
	if p.Fill != nil {
		o.Fill = *p.Fill
	}
	if p.FontFamily != nil {
		o.FontFamily = *p.FontFamily
	}
	if p.FontSize != nil {
		o.FontSize = *p.FontSize
	}
	if p.Opacity != nil {
		o.Opacity = *p.Opacity
	}
	if p.Selectable != nil {
		o.Selectable = *p.Selectable
	}
	if p.Text != nil {
		o.Text = *p.Text
	}
	if len(p.AppendPoints) > 0 {
		o.Points = append(o.Points, p.AppendPoints...)
	}
}

// Float returns a pointer to v, for building patches.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v, for building patches.
func String(v string) *string { return &v }

// Bool returns a pointer to v, for building patches.
func Bool(v bool) *bool { return &v }
