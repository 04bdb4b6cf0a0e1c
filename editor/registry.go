package editor

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"shikagraph/icons"
)

// Info summarises a live session.
type Info struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Objects    int       `json:"objects"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}

// Registry holds the live sessions of a server.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	catalog   *icons.Catalog
	opts      Options
	listeners []func(Update)
}

func NewRegistry(catalog *icons.Catalog, opts Options) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		catalog:  catalog,
		opts:     opts,
	}
}

// Catalog is the icon catalog shared by all sessions.
func (r *Registry) Catalog() *icons.Catalog {
	return r.catalog
}

// OnUpdate registers fn for updates of every session created afterwards.
func (r *Registry) OnUpdate(fn func(Update)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Registry) Create() (*Session, error) {
	s, err := New(r.catalog, r.opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fn := range r.listeners {
		s.Subscribe(fn)
	}
	r.sessions[s.ID()] = s
	logrus.WithField("canvas_id", s.ID()).Info("Canvas session created")
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(r.sessions, id)
	logrus.WithField("canvas_id", id).Info("Canvas session deleted")
	return nil
}

// List returns the live sessions, most recently active first.
func (r *Registry) List() []Info {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.info())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActive.After(out[j].LastActive)
	})
	return out
}

// Expire drops sessions idle for longer than ttl and returns how many were
// removed.
func (r *Registry) Expire(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		logrus.WithField("count", removed).Info("Expired idle canvas sessions")
	}
	return removed
}
