// Package editor binds a scene, its history and the interaction modes into
// one session that a host drives from any goroutine.
package editor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"shikagraph/history"
	"shikagraph/icons"
	"shikagraph/modes"
	"shikagraph/scene"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrIconNotFound    = errors.New("icon not found")
	ErrNoPendingText   = errors.New("no text input pending")
)

// DefaultMode is active in a new session.
const DefaultMode = "freedraw"

type Options struct {
	Width        int
	Height       int
	Assets       scene.AssetResolver
	HistoryLimit int
}

// Settings are the drawing and text defaults of a session.
type Settings struct {
	DrawColor  string  `json:"drawColor"`
	DrawWidth  float64 `json:"drawWidth"`
	TextColor  string  `json:"textColor"`
	TextSize   float64 `json:"textSize"`
	FontFamily string  `json:"fontFamily"`
}

// State is the UI-facing view of a session.
type State struct {
	ID       string             `json:"id"`
	Mode     string             `json:"mode"`
	Modes    []string           `json:"modes"`
	Surface  modes.Surface      `json:"surface"`
	History  history.Status     `json:"history"`
	Settings Settings           `json:"settings"`
	Icon     *icons.Descriptor  `json:"selectedIcon,omitempty"`
	Pending  *modes.TextRequest `json:"pendingText,omitempty"`
	Preview  *modes.Preview     `json:"preview,omitempty"`
	Objects  int                `json:"objects"`
}

// Update is published after every recorded change, undo, redo and load.
type Update struct {
	CanvasID string         `json:"canvasId"`
	Snapshot scene.Snapshot `json:"snapshot"`
	History  history.Status `json:"history"`
}

// Session is safe for concurrent use. Every call holds the session lock,
// so listeners must not call back into the session.
type Session struct {
	mu sync.Mutex

	id         string
	createdAt  time.Time
	lastActive time.Time

	store   *scene.Store
	history *history.Manager
	ctrl    *modes.Controller
	catalog *icons.Catalog

	draw  *modes.Draw
	stamp *modes.Stamp
	text  *modes.Text
	sel   *modes.Select

	listeners []func(Update)
}

// New builds a session with the four modes registered and freedraw active.
func New(catalog *icons.Catalog, opts Options) (*Session, error) {
	storeOpts := []scene.Option{scene.WithSize(opts.Width, opts.Height)}
	if opts.Assets != nil {
		storeOpts = append(storeOpts, scene.WithAssets(opts.Assets))
	}
	store := scene.NewStore(storeOpts...)

	var histOpts []history.Option
	if opts.HistoryLimit > 0 {
		histOpts = append(histOpts, history.WithLimit(opts.HistoryLimit))
	}
	if catalog == nil {
		catalog = icons.NewCatalog()
		catalog.LoadFallback()
	}

	now := time.Now()
	s := &Session{
		id:         ulid.Make().String(),
		createdAt:  now,
		lastActive: now,
		store:      store,
		history:    history.New(store, histOpts...),
		ctrl:       modes.NewController(),
		catalog:    catalog,
		draw:       modes.NewDraw(store),
		stamp:      modes.NewStamp(store),
		text:       modes.NewText(store),
		sel:        modes.NewSelect(store),
	}
	for _, m := range []modes.Mode{s.draw, s.stamp, s.text, s.sel} {
		if err := s.ctrl.Register(m); err != nil {
			return nil, err
		}
	}
	if err := s.ctrl.SetMode(DefaultMode); err != nil {
		return nil, err
	}
	s.history.OnChange(s.publish)
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Subscribe registers fn to receive every Update. fn runs with the session
// locked.
func (s *Session) Subscribe(fn func(Update)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) publish(st history.Status) {
	if len(s.listeners) == 0 {
		return
	}
	u := Update{CanvasID: s.id, Snapshot: s.store.Serialize(), History: st}
	for _, fn := range s.listeners {
		fn(u)
	}
}

func (s *Session) lock() func() {
	s.mu.Lock()
	s.lastActive = time.Now()
	return s.mu.Unlock
}

// pruneActive drops a selection whose object no longer exists.
func (s *Session) pruneActive() {
	if id := s.ctrl.Surface().Active; id != "" {
		if _, ok := s.store.Get(id); !ok {
			s.ctrl.ClearActive()
		}
	}
}

// Snapshot returns the current scene.
func (s *Session) Snapshot() scene.Snapshot {
	defer s.lock()()
	return s.store.Serialize()
}

func (s *Session) SnapshotJSON() ([]byte, error) {
	defer s.lock()()
	return scene.Marshal(s.store.Serialize())
}

// LoadSnapshot replaces the scene and resets history to it. A bad snapshot
// changes nothing.
func (s *Session) LoadSnapshot(snap scene.Snapshot) error {
	defer s.lock()()
	return s.load(snap)
}

func (s *Session) load(snap scene.Snapshot) error {
	if err := s.history.Reset(snap); err != nil {
		logrus.WithError(err).WithField("canvas_id", s.id).Warn("Rejected snapshot")
		return err
	}
	s.text.Cancel()
	s.ctrl.ClearActive()
	return nil
}

// LoadJSON decodes a document produced by SnapshotJSON and loads it.
func (s *Session) LoadJSON(data []byte) error {
	snap, err := scene.Unmarshal(data)
	if err != nil {
		logrus.WithError(err).Warn("Failed to decode snapshot")
		return err
	}
	defer s.lock()()
	return s.load(snap)
}

func (s *Session) Image(format scene.Format, quality float64) ([]byte, error) {
	defer s.lock()()
	return s.store.ToRasterImage(format, quality)
}

func (s *Session) DataURL(format scene.Format, quality float64) (string, error) {
	defer s.lock()()
	return s.store.DataURL(format, quality)
}

func (s *Session) SetMode(name string) error {
	defer s.lock()()
	return s.ctrl.SetMode(name)
}

func (s *Session) Mode() string {
	defer s.lock()()
	return s.ctrl.CurrentName()
}

func (s *Session) PointerDown(p modes.Pointer) {
	defer s.lock()()
	s.ctrl.PointerDown(p)
}

func (s *Session) PointerMove(p modes.Pointer) {
	defer s.lock()()
	s.ctrl.PointerMove(p)
}

func (s *Session) PointerUp(p modes.Pointer) {
	defer s.lock()()
	s.ctrl.PointerUp(p)
}

// SelectIcon picks the stamp icon and switches to stamp mode.
func (s *Session) SelectIcon(id string) error {
	defer s.lock()()
	icon, ok := s.catalog.ByID(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrIconNotFound, id)
	}
	s.stamp.SelectIcon(icon)
	return s.ctrl.SetMode(s.stamp.Name())
}

func (s *Session) SetDrawColor(c string) {
	defer s.lock()()
	s.draw.SetColor(c)
}

func (s *Session) SetDrawWidth(w float64) {
	defer s.lock()()
	s.draw.SetWidth(w)
}

// SetTextColor also restyles the active text object in text mode.
func (s *Session) SetTextColor(c string) {
	defer s.lock()()
	s.text.SetColor(c)
}

// SetTextSize also resizes the active text object in text mode.
func (s *Session) SetTextSize(size float64) {
	defer s.lock()()
	s.text.SetSize(size)
}

func (s *Session) PendingText() (modes.TextRequest, bool) {
	defer s.lock()()
	return s.text.Pending()
}

// CommitText answers the pending text request. It fails with
// ErrNoPendingText when there is nothing to answer.
func (s *Session) CommitText(text string) (string, bool, error) {
	defer s.lock()()
	if _, ok := s.text.Pending(); !ok {
		return "", false, ErrNoPendingText
	}
	id, changed := s.text.Commit(text)
	return id, changed, nil
}

func (s *Session) CancelText() {
	defer s.lock()()
	s.text.Cancel()
}

// Undo is refused while a gesture is in progress.
func (s *Session) Undo() bool {
	defer s.lock()()
	if s.store.GestureActive() {
		return false
	}
	ok := s.history.Undo()
	s.pruneActive()
	return ok
}

// Redo is refused while a gesture is in progress.
func (s *Session) Redo() bool {
	defer s.lock()()
	if s.store.GestureActive() {
		return false
	}
	ok := s.history.Redo()
	s.pruneActive()
	return ok
}

func (s *Session) History() history.Status {
	defer s.lock()()
	return s.history.Status()
}

// Clear empties the canvas as one undoable change.
func (s *Session) Clear() {
	defer s.lock()()
	s.store.Clear()
	s.ctrl.ClearActive()
	logrus.WithField("canvas_id", s.id).Info("Canvas cleared")
}

// DeleteSelected removes the active object. It reports whether anything
// was removed.
func (s *Session) DeleteSelected() bool {
	defer s.lock()()
	id := s.ctrl.Surface().Active
	if id == "" {
		return false
	}
	s.ctrl.ClearActive()
	return s.store.Remove(id)
}

// AddStamp places a catalog icon without going through stamp mode.
func (s *Session) AddStamp(iconID string, x, y float64) (string, error) {
	defer s.lock()()
	icon, ok := s.catalog.ByID(iconID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrIconNotFound, iconID)
	}
	t := scene.IdentityTransform(x, y)
	t.ScaleX, t.ScaleY = modes.StampScale, modes.StampScale
	t.OriginX, t.OriginY = scene.OriginCenter, scene.OriginCenter
	return s.store.Add(scene.Object{
		Kind:       scene.KindImage,
		Transform:  t,
		Style:      scene.Style{Opacity: 1},
		Selectable: true,
		Src:        icon.AssetPath(),
		Tag: &scene.Tag{
			IconID:   icon.ID,
			Category: string(icon.Category),
			NameJa:   icon.NameJa,
			NameEn:   icon.NameEn,
		},
	}), nil
}

func (s *Session) Settings() Settings {
	defer s.lock()()
	return s.settings()
}

func (s *Session) settings() Settings {
	return Settings{
		DrawColor:  s.draw.Color(),
		DrawWidth:  s.draw.Width(),
		TextColor:  s.text.Color(),
		TextSize:   s.text.Size(),
		FontFamily: s.text.FontFamily(),
	}
}

func (s *Session) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:         s.id,
		Mode:       s.ctrl.CurrentName(),
		Objects:    s.store.Len(),
		CreatedAt:  s.createdAt,
		LastActive: s.lastActive,
	}
}

func (s *Session) State() State {
	defer s.lock()()
	st := State{
		ID:       s.id,
		Mode:     s.ctrl.CurrentName(),
		Modes:    s.ctrl.Names(),
		Surface:  s.ctrl.Surface(),
		History:  s.history.Status(),
		Settings: s.settings(),
		Objects:  s.store.Len(),
	}
	if icon, ok := s.stamp.Selected(); ok {
		st.Icon = &icon
	}
	if req, ok := s.text.Pending(); ok {
		st.Pending = &req
	}
	if p, ok := s.stamp.Preview(); ok {
		st.Preview = &p
	}
	return st
}
