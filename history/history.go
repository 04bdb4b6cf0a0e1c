// Package history keeps bounded undo and redo stacks of scene snapshots.
package history

import (
	"github.com/sirupsen/logrus"

	"shikagraph/scene"
)

// DefaultLimit is the maximum depth of each stack.
const DefaultLimit = 30

// Status is what a UI needs to enable its undo and redo controls.
type Status struct {
	CanUndo   bool `json:"canUndo"`
	CanRedo   bool `json:"canRedo"`
	UndoDepth int  `json:"undoDepth"`
	RedoDepth int  `json:"redoDepth"`
}

// Manager records a snapshot after every committed change of a Store.
// The top of the undo stack is always the current scene. A Manager is not
// safe for concurrent use.
type Manager struct {
	store     *scene.Store
	limit     int
	undo      []scene.Snapshot
	redo      []scene.Snapshot
	listeners []func(Status)
}

type Option func(*Manager)

// WithLimit caps both stacks at n entries. Values below 1 are ignored.
func WithLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.limit = n
		}
	}
}

// New seeds the undo stack with the current scene and subscribes to the
// store's change notifications.
func New(store *scene.Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		limit: DefaultLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.undo = []scene.Snapshot{store.Serialize()}
	store.Subscribe(m.RecordMutation)
	return m
}

// RecordMutation pushes the current scene unless it equals the undo top.
// A new record clears the redo stack.
func (m *Manager) RecordMutation() {
	snap := m.store.Serialize()
	if len(m.undo) > 0 && m.undo[len(m.undo)-1].Equal(snap) {
		return
	}
	m.redo = nil
	m.push(snap)
	logrus.WithFields(logrus.Fields{
		"undo_depth": len(m.undo),
		"objects":    len(snap.Objects),
	}).Debug("History recorded")
	m.changed()
}

func (m *Manager) push(snap scene.Snapshot) {
	m.undo = append(m.undo, snap)
	for len(m.undo) > m.limit {
		m.undo[0] = scene.Snapshot{}
		m.undo = m.undo[1:]
	}
}

// Undo restores the previous snapshot. The first snapshot is never undone.
func (m *Manager) Undo() bool {
	if len(m.undo) <= 1 {
		return false
	}
	top := m.undo[len(m.undo)-1]
	prev := m.undo[len(m.undo)-2]
	if err := m.store.Deserialize(prev); err != nil {
		logrus.WithError(err).Error("Failed to restore snapshot on undo")
		return false
	}
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, top)
	m.changed()
	return true
}

// Redo re-applies the most recently undone snapshot.
func (m *Manager) Redo() bool {
	if len(m.redo) == 0 {
		return false
	}
	next := m.redo[len(m.redo)-1]
	if err := m.store.Deserialize(next); err != nil {
		logrus.WithError(err).Error("Failed to restore snapshot on redo")
		return false
	}
	m.redo = m.redo[:len(m.redo)-1]
	m.push(next)
	m.changed()
	return true
}

func (m *Manager) CanUndo() bool {
	return len(m.undo) > 1
}

func (m *Manager) CanRedo() bool {
	return len(m.redo) > 0
}

func (m *Manager) Status() Status {
	return Status{
		CanUndo:   m.CanUndo(),
		CanRedo:   m.CanRedo(),
		UndoDepth: len(m.undo),
		RedoDepth: len(m.redo),
	}
}

// OnChange registers fn to receive the status after every stack change.
func (m *Manager) OnChange(fn func(Status)) {
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) changed() {
	st := m.Status()
	for _, fn := range m.listeners {
		fn(st)
	}
}

// Reset loads snap into the store and makes it the only history entry.
// On error neither the scene nor the stacks change.
func (m *Manager) Reset(snap scene.Snapshot) error {
	if err := m.store.Deserialize(snap); err != nil {
		return err
	}
	m.undo = []scene.Snapshot{m.store.Serialize()}
	m.redo = nil
	logrus.WithField("objects", len(snap.Objects)).Info("History reset")
	m.changed()
	return nil
}
