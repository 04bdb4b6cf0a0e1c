// Package modes routes pointer input to exactly one active interaction mode.
package modes

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"shikagraph/scene"
)

var (
	ErrModeNotFound  = errors.New("mode not found")
	ErrDuplicateMode = errors.New("mode already registered")
)

// Mouse buttons, numbered as browsers report them.
const (
	ButtonPrimary = 0
	ButtonMiddle  = 1
	ButtonRight   = 2
)

// Pointer is one pointer or touch event in canvas coordinates. Touches is
// the number of simultaneous touch points, 0 for a mouse.
type Pointer struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Button  int     `json:"button"`
	Touches int     `json:"touches"`
}

// Surface is the UI state shared by the modes. A mode that changes it
// while active puts it back when deactivated.
type Surface struct {
	Cursor           string          `json:"cursor"`
	SelectionEnabled bool            `json:"selectionEnabled"`
	Active           string          `json:"activeObject,omitempty"`
	Hit              scene.HitFilter `json:"-"`
}

// DefaultSurface is the state before any mode is activated.
func DefaultSurface() Surface {
	return Surface{Cursor: "default", SelectionEnabled: true, Hit: Selectable}
}

// Hit filters.
var (
	Selectable scene.HitFilter = func(o scene.Object) bool { return o.Selectable }
	TextOnly   scene.HitFilter = func(o scene.Object) bool { return o.Kind == scene.KindText }
	Nothing    scene.HitFilter = func(scene.Object) bool { return false }
)

// Mode handles pointer input while it is the active mode. Activate hands
// the mode the shared surface; the mode must release it and leave the
// scene fully committed before Deactivate returns.
type Mode interface {
	Name() string
	Activate(s *Surface)
	Deactivate()
	PointerDown(p Pointer)
	PointerMove(p Pointer)
	PointerUp(p Pointer)
}

// Controller keeps the registry of modes and the single active one.
type Controller struct {
	modes   map[string]Mode
	order   []string
	current Mode
	surface Surface
}

func NewController() *Controller {
	return &Controller{
		modes:   make(map[string]Mode),
		surface: DefaultSurface(),
	}
}

func (c *Controller) Register(m Mode) error {
	name := m.Name()
	if _, ok := c.modes[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMode, name)
	}
	c.modes[name] = m
	c.order = append(c.order, name)
	return nil
}

// SetMode switches to the named mode. An unknown name is rejected and the
// current mode stays active.
func (c *Controller) SetMode(name string) error {
	next, ok := c.modes[name]
	if !ok {
		logrus.WithFields(logrus.Fields{
			"mode":    name,
			"current": c.CurrentName(),
		}).Warn("Mode not found")
		return fmt.Errorf("%w: %s", ErrModeNotFound, name)
	}
	if next == c.current {
		return nil
	}

	prev := c.CurrentName()
	if c.current != nil {
		c.current.Deactivate()
	}
	c.current = next
	next.Activate(&c.surface)
	logrus.WithFields(logrus.Fields{
		"from": prev,
		"to":   name,
	}).Info("Mode changed")
	return nil
}

// Current returns the active mode, or nil before the first SetMode.
func (c *Controller) Current() Mode {
	return c.current
}

func (c *Controller) CurrentName() string {
	if c.current == nil {
		return ""
	}
	return c.current.Name()
}

// Mode returns a registered mode by name.
func (c *Controller) Mode(name string) (Mode, bool) {
	m, ok := c.modes[name]
	return m, ok
}

// Names lists registered modes in registration order.
func (c *Controller) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Controller) Surface() Surface {
	return c.surface
}

// ClearActive deselects the active object.
func (c *Controller) ClearActive() {
	c.surface.Active = ""
}

func (c *Controller) PointerDown(p Pointer) {
	if c.current != nil {
		c.current.PointerDown(p)
	}
}

func (c *Controller) PointerMove(p Pointer) {
	if c.current != nil {
		c.current.PointerMove(p)
	}
}

func (c *Controller) PointerUp(p Pointer) {
	if c.current != nil {
		c.current.PointerUp(p)
	}
}
