package scene

import (
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// HitFilter decides whether an object takes part in hit testing.
type HitFilter func(obj Object) bool

// Store owns the ordered objects of one canvas. Insertion order is paint
// order. A Store is not safe for concurrent use; callers serialize access.
type Store struct {
	objects    []*Object
	background Background
	width      int
	height     int
	assets     AssetResolver
	observers  []func()
	gesture    bool
	generation uint64
}

type Option func(*Store)

// WithSize sets the canvas size in pixels used for raster export.
func WithSize(width, height int) Option {
	return func(s *Store) {
		if width > 0 && height > 0 {
			s.width, s.height = width, height
		}
	}
}

// WithAssets sets the resolver used to load image objects.
func WithAssets(r AssetResolver) Option {
	return func(s *Store) { s.assets = r }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		background: DefaultBackground,
		width:      800,
		height:     600,
		assets:     placeholderAssets{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn to be called after every committed change.
func (s *Store) Subscribe(fn func()) {
	s.observers = append(s.observers, fn)
}

func (s *Store) notify() {
	if s.gesture {
		return
	}
	for _, fn := range s.observers {
		fn()
	}
}

// BeginGesture suppresses change notifications until EndGesture.
func (s *Store) BeginGesture() {
	s.gesture = true
}

// EndGesture closes a gesture and notifies observers once.
func (s *Store) EndGesture() {
	if !s.gesture {
		return
	}
	s.gesture = false
	s.notify()
}

func (s *Store) GestureActive() bool {
	return s.gesture
}

// Generation changes whenever the whole scene is replaced.
func (s *Store) Generation() uint64 {
	return s.generation
}

func (s *Store) Size() (int, int) {
	return s.width, s.height
}

func (s *Store) Assets() AssetResolver {
	return s.assets
}

// Add appends obj on top of the scene and returns its id. An id is
// generated when obj has none.
func (s *Store) Add(obj Object) string {
	o := obj.Clone()
	if o.ID == "" {
		o.ID = ulid.Make().String()
	}
	s.objects = append(s.objects, &o)
	logrus.WithFields(logrus.Fields{
		"object_id": o.ID,
		"kind":      o.Kind,
	}).Debug("Object added")
	s.notify()
	return o.ID
}

// AddIfGeneration adds obj only if the scene has not been replaced since
// gen was read. It reports whether the object was added.
func (s *Store) AddIfGeneration(gen uint64, obj Object) (string, bool) {
	if gen != s.generation {
		logrus.WithField("generation", gen).Debug("Dropping object for a replaced scene")
		return "", false
	}
	return s.Add(obj), true
}

func (s *Store) index(id string) int {
	for i, o := range s.objects {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// Remove deletes the object with the given id. Unknown ids are ignored.
func (s *Store) Remove(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.objects = append(s.objects[:i], s.objects[i+1:]...)
	logrus.WithField("object_id", id).Debug("Object removed")
	s.notify()
	return true
}

// Mutate applies p to the object with the given id. Unknown ids are ignored.
func (s *Store) Mutate(id string, p Patch) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	p.apply(s.objects[i])
	s.notify()
	return true
}

// Get returns a copy of the object with the given id.
func (s *Store) Get(id string) (Object, bool) {
	i := s.index(id)
	if i < 0 {
		return Object{}, false
	}
	return s.objects[i].Clone(), true
}

// Objects returns copies of all objects in paint order.
func (s *Store) Objects() []Object {
	out := make([]Object, len(s.objects))
	for i, o := range s.objects {
		out[i] = o.Clone()
	}
	return out
}

func (s *Store) Len() int {
	return len(s.objects)
}

func (s *Store) Background() Background {
	return s.background
}

func (s *Store) SetBackground(bg Background) {
	if bg == s.background {
		return
	}
	s.background = bg
	s.notify()
}

// Clear removes every object and resets the background.
func (s *Store) Clear() {
	s.objects = nil
	s.background = DefaultBackground
	s.generation++
	s.notify()
}

// Serialize captures the current scene.
func (s *Store) Serialize() Snapshot {
	return Snapshot{Background: s.background, Objects: s.Objects()}
}

// Deserialize replaces the whole scene with snap. Observers are not
// notified; restoring a snapshot is not an edit.
func (s *Store) Deserialize(snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	objects := make([]*Object, len(snap.Objects))
	for i, obj := range snap.Objects {
		o := obj.Clone()
		objects[i] = &o
	}
	s.objects = objects
	s.background = snap.Background
	s.generation++
	return nil
}

// ObjectAt returns the topmost object under (x, y) accepted by filter.
// A nil filter accepts every object.
func (s *Store) ObjectAt(x, y float64, filter HitFilter) (Object, bool) {
	for i := len(s.objects) - 1; i >= 0; i-- {
		o := *s.objects[i]
		if filter != nil && !filter(o) {
			continue
		}
		if s.bounds(o).contains(x, y) {
			return o.Clone(), true
		}
	}
	return Object{}, false
}
