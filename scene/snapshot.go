package scene

import (
	"errors"
	"fmt"
)

// ErrInvalidSnapshot is returned when a snapshot cannot be loaded into a
// Store. The scene is left as it was.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is a self-contained copy of a scene at one instant. Values
// returned by this package are never shared with a live Store; callers
// must not modify the Objects slice in place.
type Snapshot struct {
	Background Background `json:"background"`
	Objects    []Object   `json:"objects"`
}

// EmptySnapshot is the scene of a blank canvas.
func EmptySnapshot() Snapshot {
	return Snapshot{Background: DefaultBackground, Objects: []Object{}}
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{Background: s.Background, Objects: make([]Object, len(s.Objects))}
	for i, obj := range s.Objects {
		c.Objects[i] = obj.Clone()
	}
	return c
}

// Equal compares two snapshots by value, including object order.
func (s Snapshot) Equal(other Snapshot) bool {
	if s.Background != other.Background || len(s.Objects) != len(other.Objects) {
		return false
	}
	for i := range s.Objects {
		if !s.Objects[i].Equal(other.Objects[i]) {
			return false
		}
	}
	return true
}

// Validate checks that every object can be rebuilt from the snapshot.
func (s Snapshot) Validate() error {
	seen := make(map[string]struct{}, len(s.Objects))
	for i, obj := range s.Objects {
		if obj.ID == "" {
			return fmt.Errorf("%w: object %d has no id", ErrInvalidSnapshot, i)
		}
		if _, dup := seen[obj.ID]; dup {
			return fmt.Errorf("%w: duplicate object id %s", ErrInvalidSnapshot, obj.ID)
		}
		seen[obj.ID] = struct{}{}

		if !obj.Kind.valid() {
			return fmt.Errorf("%w: object %s has unknown type %q", ErrInvalidSnapshot, obj.ID, obj.Kind)
		}
		switch obj.Kind {
		case KindPath:
			if len(obj.Points) == 0 {
				return fmt.Errorf("%w: path %s has no points", ErrInvalidSnapshot, obj.ID)
			}
		case KindImage:
			if obj.Src == "" {
				return fmt.Errorf("%w: image %s has no src", ErrInvalidSnapshot, obj.ID)
			}
		}
	}
	return nil
}
