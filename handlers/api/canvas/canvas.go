// Package canvas exposes live editor sessions over HTTP.
package canvas

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"shikagraph/core"
	"shikagraph/editor"
	"shikagraph/history"
	"shikagraph/modes"
	"shikagraph/scene"
)

const defaultQuality = 0.8

// MaxBodyBytes caps request bodies at the socket.io message limit.
const MaxBodyBytes = 5000000

type (
	ModeRequest struct {
		Mode string `json:"mode"`
	}

	PointerRequest struct {
		Type string `json:"type"`
		modes.Pointer
	}

	TextRequest struct {
		Text string `json:"text"`
	}

	TextResponse struct {
		ID      string `json:"id,omitempty"`
		Changed bool   `json:"changed"`
	}

	IconRequest struct {
		ID string `json:"id"`
	}

	StampRequest struct {
		IconID string  `json:"iconId"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
	}

	IDResponse struct {
		ID string `json:"id"`
	}

	// SettingsRequest changes only the fields that are present.
	SettingsRequest struct {
		DrawColor *string  `json:"drawColor"`
		DrawWidth *float64 `json:"drawWidth"`
		TextColor *string  `json:"textColor"`
		TextSize  *float64 `json:"textSize"`
	}

	StepResponse struct {
		Applied bool           `json:"applied"`
		History history.Status `json:"history"`
	}

	DeleteResponse struct {
		Deleted bool `json:"deleted"`
	}

	SaveRequest struct {
		Name       string `json:"name"`
		DocumentID string `json:"documentId"`
	}
)

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// session looks up the {id} canvas and answers 404 when it is gone.
func session(reg *editor.Registry, w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	id := chi.URLParam(r, "id")
	s, err := reg.Get(id)
	if err != nil {
		logrus.WithField("canvas_id", id).Debug("Canvas session not found")
		renderError(w, r, http.StatusNotFound, "Canvas not found")
		return nil, false
	}
	return s, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, MaxBodyBytes), v); err != nil {
		logrus.WithError(err).Warn("Failed to decode request")
		renderBodyError(w, r, err)
		return false
	}
	return true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		logrus.WithError(err).Warn("Failed to read request body")
		renderBodyError(w, r, err)
		return nil, false
	}
	return data, true
}

func renderBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		renderError(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	renderError(w, r, http.StatusBadRequest, "Invalid request body")
}

func HandleCreate(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := reg.Create()
		if err != nil {
			logrus.WithError(err).Error("Failed to create canvas session")
			renderError(w, r, http.StatusInternalServerError, "Failed to create canvas")
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, s.State())
	}
}

func HandleList(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, reg.List())
	}
}

func HandleGet(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		render.JSON(w, r, s.State())
	}
}

func HandleDelete(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Delete(chi.URLParam(r, "id")); err != nil {
			renderError(w, r, http.StatusNotFound, "Canvas not found")
			return
		}
		render.NoContent(w, r)
	}
}

func HandleGetSnapshot(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		data, err := s.SnapshotJSON()
		if err != nil {
			logrus.WithError(err).Error("Failed to encode snapshot")
			renderError(w, r, http.StatusInternalServerError, "Failed to encode snapshot")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

// HandleLoadSnapshot replaces the scene with the request body. A malformed
// snapshot is rejected with 400 and leaves the canvas as it was.
func HandleLoadSnapshot(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		data, ok := readBody(w, r)
		if !ok {
			return
		}
		if err := s.LoadJSON(data); err != nil {
			renderError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		render.JSON(w, r, s.State())
	}
}

// HandleImage renders the canvas. Query: format=png|jpeg, quality in [0,1].
func HandleImage(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		format, err := scene.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			renderError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		quality := defaultQuality
		if q := r.URL.Query().Get("quality"); q != "" {
			quality, err = strconv.ParseFloat(q, 64)
			if err != nil || quality < 0 || quality > 1 {
				renderError(w, r, http.StatusBadRequest, "quality must be a number between 0 and 1")
				return
			}
		}

		data, err := s.Image(format, quality)
		if err != nil {
			logrus.WithError(err).WithField("canvas_id", s.ID()).Error("Failed to render canvas")
			renderError(w, r, http.StatusInternalServerError, "Failed to render canvas")
			return
		}
		w.Header().Set("Content-Type", format.MIMEType())
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}
}

func HandleUndo(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		applied := s.Undo()
		render.JSON(w, r, StepResponse{Applied: applied, History: s.History()})
	}
}

func HandleRedo(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		applied := s.Redo()
		render.JSON(w, r, StepResponse{Applied: applied, History: s.History()})
	}
}

func HandleHistory(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		render.JSON(w, r, s.History())
	}
}

// HandleSetMode answers 404 for an unknown mode; the previous mode stays
// active.
func HandleSetMode(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		var req ModeRequest
		if !decode(w, r, &req) {
			return
		}
		if err := s.SetMode(req.Mode); err != nil {
			if errors.Is(err, modes.ErrModeNotFound) {
				renderError(w, r, http.StatusNotFound, err.Error())
				return
			}
			renderError(w, r, http.StatusInternalServerError, err.Error())
			return
		}
		render.JSON(w, r, s.State())
	}
}

func HandlePointer(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		var req PointerRequest
		if !decode(w, r, &req) {
			return
		}
		switch req.Type {
		case "down":
			s.PointerDown(req.Pointer)
		case "move":
			s.PointerMove(req.Pointer)
		case "up":
			s.PointerUp(req.Pointer)
		default:
			renderError(w, r, http.StatusBadRequest, "type must be one of down, move, up")
			return
		}
		render.JSON(w, r, s.State())
	}
}

func HandleCommitText(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		var req TextRequest
		if !decode(w, r, &req) {
			return
		}
		id, changed, err := s.CommitText(req.Text)
		if errors.Is(err, editor.ErrNoPendingText) {
			renderError(w, r, http.StatusConflict, "No text input is pending")
			return
		}
		render.JSON(w, r, TextResponse{ID: id, Changed: changed})
	}
}

func HandleCancelText(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		s.CancelText()
		render.NoContent(w, r)
	}
}

func HandleSelectIcon(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		var req IconRequest
		if !decode(w, r, &req) {
			return
		}
		if err := s.SelectIcon(req.ID); err != nil {
			if errors.Is(err, editor.ErrIconNotFound) {
				renderError(w, r, http.StatusNotFound, err.Error())
				return
			}
			renderError(w, r, http.StatusInternalServerError, err.Error())
			return
		}
		render.JSON(w, r, s.State())
	}
}

func HandleAddStamp(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		var req StampRequest
		if !decode(w, r, &req) {
			return
		}
		id, err := s.AddStamp(req.IconID, req.X, req.Y)
		if err != nil {
			renderError(w, r, http.StatusNotFound, err.Error())
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, IDResponse{ID: id})
	}
}

func HandleSettings(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		var req SettingsRequest
		if !decode(w, r, &req) {
			return
		}
		if req.DrawColor != nil {
			s.SetDrawColor(*req.DrawColor)
		}
		if req.DrawWidth != nil {
			s.SetDrawWidth(*req.DrawWidth)
		}
		if req.TextColor != nil {
			s.SetTextColor(*req.TextColor)
		}
		if req.TextSize != nil {
			s.SetTextSize(*req.TextSize)
		}
		render.JSON(w, r, s.Settings())
	}
}

func HandleClear(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		s.Clear()
		render.JSON(w, r, s.State())
	}
}

func HandleDeleteSelection(reg *editor.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		render.JSON(w, r, DeleteResponse{Deleted: s.DeleteSelected()})
	}
}

// HandleSave stores the canvas as a document with a PNG thumbnail. With a
// documentId the existing document is overwritten.
func HandleSave(reg *editor.Registry, store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		var req SaveRequest
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		if len(bytes.TrimSpace(body)) > 0 {
			if err := render.DecodeJSON(bytes.NewReader(body), &req); err != nil {
				renderError(w, r, http.StatusBadRequest, "Invalid request body")
				return
			}
		}
		log := logrus.WithField("canvas_id", s.ID())

		data, err := s.SnapshotJSON()
		if err != nil {
			log.WithError(err).Error("Failed to encode snapshot")
			renderError(w, r, http.StatusInternalServerError, "Failed to encode snapshot")
			return
		}
		thumbnail, err := s.DataURL(scene.FormatPNG, 0)
		if err != nil {
			log.WithError(err).Warn("Failed to render thumbnail")
		}
		doc := &core.Document{
			ID:        req.DocumentID,
			Name:      req.Name,
			Data:      *bytes.NewBuffer(data),
			Thumbnail: thumbnail,
		}

		if req.DocumentID != "" {
			if err := store.Update(r.Context(), doc); err != nil {
				if errors.Is(err, core.ErrDocumentNotFound) {
					renderError(w, r, http.StatusNotFound, "Document not found")
					return
				}
				log.WithError(err).Error("Failed to update document")
				renderError(w, r, http.StatusInternalServerError, "Failed to save document")
				return
			}
			render.JSON(w, r, IDResponse{ID: req.DocumentID})
			return
		}

		id, err := store.Create(r.Context(), doc)
		if err != nil {
			log.WithError(err).Error("Failed to create document")
			renderError(w, r, http.StatusInternalServerError, "Failed to save document")
			return
		}
		log.WithField("document_id", id).Info("Canvas saved")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, IDResponse{ID: id})
	}
}

// HandleLoad replaces the canvas with a stored document.
func HandleLoad(reg *editor.Registry, store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := session(reg, w, r)
		if !ok {
			return
		}
		documentID := chi.URLParam(r, "documentId")
		doc, err := store.FindID(r.Context(), documentID)
		if err != nil {
			if errors.Is(err, core.ErrDocumentNotFound) {
				renderError(w, r, http.StatusNotFound, "Document not found")
				return
			}
			logrus.WithError(err).WithField("document_id", documentID).Error("Failed to load document")
			renderError(w, r, http.StatusInternalServerError, "Failed to load document")
			return
		}
		if err := s.LoadJSON(doc.Data.Bytes()); err != nil {
			renderError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		render.JSON(w, r, s.State())
	}
}

// Routes mounts the canvas API on r.
func Routes(r chi.Router, reg *editor.Registry, store core.DocumentStore) {
	r.Post("/", HandleCreate(reg))
	r.Get("/", HandleList(reg))
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", HandleGet(reg))
		r.Delete("/", HandleDelete(reg))
		r.Get("/snapshot", HandleGetSnapshot(reg))
		r.Put("/snapshot", HandleLoadSnapshot(reg))
		r.Get("/image", HandleImage(reg))
		r.Post("/undo", HandleUndo(reg))
		r.Post("/redo", HandleRedo(reg))
		r.Get("/history", HandleHistory(reg))
		r.Put("/mode", HandleSetMode(reg))
		r.Post("/pointer", HandlePointer(reg))
		r.Post("/text", HandleCommitText(reg))
		r.Delete("/text", HandleCancelText(reg))
		r.Put("/icon", HandleSelectIcon(reg))
		r.Post("/stamps", HandleAddStamp(reg))
		r.Put("/settings", HandleSettings(reg))
		r.Post("/clear", HandleClear(reg))
		r.Delete("/selection", HandleDeleteSelection(reg))
		r.Post("/save", HandleSave(reg, store))
		r.Post("/load/{documentId}", HandleLoad(reg, store))
	})
}
