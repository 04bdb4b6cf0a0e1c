package websocket

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/engine.io/v2/utils"
	socketio "github.com/zishang520/socket.io/v2/socket"

	"shikagraph/editor"
	"shikagraph/modes"
)

type ackInvoker func(err error, payload map[string]any)

var (
	errCanvasRequired = errors.New("canvas id is required")

	viewers      = make(map[string]int)
	viewersMutex sync.RWMutex
)

// GetActiveCanvases returns the number of connected sockets per canvas.
func GetActiveCanvases() map[string]int {
	viewersMutex.RLock()
	defer viewersMutex.RUnlock()

	out := make(map[string]int, len(viewers))
	for k, v := range viewers {
		out[k] = v
	}
	return out
}

func setViewers(canvasID string, n int) {
	viewersMutex.Lock()
	defer viewersMutex.Unlock()
	if n <= 0 {
		delete(viewers, canvasID)
		return
	}
	viewers[canvasID] = n
}

// canvasEvents applies socket events to editor sessions.
type canvasEvents struct {
	reg *editor.Registry
}

func (c canvasEvents) session(args []any) (*editor.Session, []any, error) {
	if len(args) == 0 {
		return nil, nil, errCanvasRequired
	}
	id, ok := args[0].(string)
	if !ok || id == "" {
		return nil, nil, errCanvasRequired
	}
	s, err := c.reg.Get(id)
	if err != nil {
		return nil, nil, err
	}
	return s, args[1:], nil
}

func (c canvasEvents) join(args []any) (*editor.Session, map[string]any, error) {
	s, _, err := c.session(args)
	if err != nil {
		return nil, nil, err
	}
	return s, map[string]any{
		"status":   "ok",
		"state":    s.State(),
		"snapshot": s.Snapshot(),
	}, nil
}

func (c canvasEvents) pointer(args []any) (map[string]any, error) {
	s, rest, err := c.session(args)
	if err != nil {
		return nil, err
	}
	if len(rest) == 0 {
		return nil, fmt.Errorf("pointer payload is required")
	}
	typ, p, err := parsePointer(rest[0])
	if err != nil {
		return nil, err
	}
	switch typ {
	case "down":
		s.PointerDown(p)
	case "move":
		s.PointerMove(p)
	case "up":
		s.PointerUp(p)
	}
	return map[string]any{"status": "ok", "mode": s.Mode()}, nil
}

func (c canvasEvents) step(args []any, redo bool) (map[string]any, error) {
	s, _, err := c.session(args)
	if err != nil {
		return nil, err
	}
	var applied bool
	if redo {
		applied = s.Redo()
	} else {
		applied = s.Undo()
	}
	return map[string]any{"status": "ok", "applied": applied, "history": s.History()}, nil
}

func (c canvasEvents) setMode(args []any) (map[string]any, error) {
	s, rest, err := c.session(args)
	if err != nil {
		return nil, err
	}
	name := ""
	if len(rest) > 0 {
		name, _ = rest[0].(string)
	}
	if err := s.SetMode(name); err != nil {
		return nil, err
	}
	return map[string]any{"status": "ok", "mode": s.Mode()}, nil
}

// parsePointer reads {"type":"down|move|up","x":..,"y":..,"button":..,"touches":..}.
type eventHandler func(args []any) (map[string]any, error)

// handlers are the canvas events besides join-canvas, which also joins a
// room.
func (c canvasEvents) handlers() map[string]eventHandler {
	return map[string]eventHandler{
		"pointer":  c.pointer,
		"undo":     func(args []any) (map[string]any, error) { return c.step(args, false) },
		"redo":     func(args []any) (map[string]any, error) { return c.step(args, true) },
		"set-mode": c.setMode,
	}
}

// ackEvent is the event emitted back to the sender after event.
func ackEvent(event string) string {
	return event + "-ack"
}

func parsePointer(v any) (string, modes.Pointer, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", modes.Pointer{}, fmt.Errorf("pointer payload must be an object")
	}
	typ, _ := m["type"].(string)
	switch typ {
	case "down", "move", "up":
	default:
		return "", modes.Pointer{}, fmt.Errorf("invalid pointer type %q", typ)
	}
	x, okX := number(m["x"])
	y, okY := number(m["y"])
	if !okX || !okY {
		return "", modes.Pointer{}, fmt.Errorf("pointer x and y are required")
	}
	button, _ := number(m["button"])
	touches, _ := number(m["touches"])
	return typ, modes.Pointer{X: x, Y: y, Button: int(button), Touches: int(touches)}, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func errorPayload(err error) map[string]any {
	return map[string]any{"status": "error", "error": err.Error()}
}

// SetupSocketIO serves canvas sessions from reg. Every scene change of a
// session is pushed to its room as "scene-update".
func SetupSocketIO(reg *editor.Registry) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	localhostOrigin := regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)
	opts.SetCors(&types.Cors{
		Origin: []any{
			"tauri://localhost",
			localhostOrigin,
		},
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)
	events := canvasEvents{reg: reg}

	reg.OnUpdate(func(u editor.Update) {
		if err := srv.To(socketio.Room(u.CanvasID)).Emit("scene-update", u); err != nil {
			logrus.WithError(err).WithField("canvas_id", u.CanvasID).Warn("Failed to push scene update")
		}
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		me := socket.Id()
		utils.Log().Printf("socket %v connected\n", me)

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("join-canvas", func(datas ...any) {
			ack, args := extractAck(datas)
			s, payload, err := events.join(args)
			if err != nil {
				respondWithAck(socket, ack, ackEvent("join-canvas"), errorPayload(err), err)
				return
			}

			room := socketio.Room(s.ID())
			socket.Join(room)
			utils.Log().Printf("socket %v has joined canvas %v\n", me, room)

			srv.In(room).FetchSockets()(func(users []*socketio.RemoteSocket, fetchErr error) {
				if fetchErr != nil {
					respondWithAck(socket, ack, ackEvent("join-canvas"), errorPayload(fetchErr), fetchErr)
					return
				}
				setViewers(s.ID(), len(users))
				payload["viewers"] = len(users)
				_ = socket.Broadcast().To(room).Emit("viewer-change", len(users))
				respondWithAck(socket, ack, ackEvent("join-canvas"), payload, nil)
			})
		})

		for event, handle := range events.handlers() {
			//nolint:errcheck // Socket.IO event handlers do not return useful errors
			socket.On(event, func(datas ...any) {
				ack, args := extractAck(datas)
				payload, err := handle(args)
				if err != nil {
					respondWithAck(socket, ack, ackEvent(event), errorPayload(err), err)
					return
				}
				respondWithAck(socket, ack, ackEvent(event), payload, nil)
			})
		}

		socket.On("disconnecting", func(datas ...any) {
			for _, currentRoom := range socket.Rooms().Keys() {
				if string(currentRoom) == string(me) {
					continue
				}
				canvasID := string(currentRoom)
				srv.In(currentRoom).FetchSockets()(func(users []*socketio.RemoteSocket, _ error) {
					others := 0
					for _, user := range users {
						if user.Id() != me {
							others++
						}
					}
					setViewers(canvasID, others)
					if others > 0 {
						srv.In(currentRoom).Emit("viewer-change", others)
					}
				})
			}
		})

		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})

	return srv
}

// extractAck splits a trailing acknowledgement callback off the event
// arguments.
func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	ack = wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}
	value := reflect.ValueOf(candidate)
	if value.Kind() != reflect.Func {
		return nil
	}
	typ := value.Type()
	return func(err error, payload map[string]any) {
		value.Call(ackArgs(typ, err, payload))
	}
}

// ackArgs fits (err, payload) to the callback signature. A one-argument
// callback gets the error if there is one and the payload otherwise.
func ackArgs(typ reflect.Type, err error, payload map[string]any) []reflect.Value {
	args := make([]reflect.Value, typ.NumIn())
	for i := range args {
		var v any
		switch {
		case len(args) == 1 && err != nil:
			v = err
		case len(args) == 1:
			v = payload
		case i == 0 && err != nil:
			v = err
		case i == 1:
			v = payload
		}
		args[i] = coerce(v, typ.In(i))
	}
	return args
}

func coerce(value any, target reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(target)
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(target):
		return rv
	case rv.Type().ConvertibleTo(target):
		return rv.Convert(target)
	case target.Kind() == reflect.Interface && target.NumMethod() == 0:
		return rv
	case target.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(target)
	}
	return reflect.Zero(target)
}

func respondWithAck(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
	}
	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}
