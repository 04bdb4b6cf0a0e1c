package documents

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"shikagraph/core"
	"shikagraph/scene"
)

type (
	DocumentCreateResponse struct {
		ID string `json:"id"`
	}

	RenameRequest struct {
		Name string `json:"name"`
	}

	Summary struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Thumbnail string `json:"thumbnail,omitempty"`
		CreatedAt int64  `json:"createdAt"`
		UpdatedAt int64  `json:"updatedAt"`
	}

	DocumentResponse struct {
		Summary
		Snapshot json.RawMessage `json:"snapshot"`
	}
)

func summarize(doc core.Document) Summary {
	return Summary{
		ID:        doc.ID,
		Name:      doc.Name,
		Thumbnail: doc.Thumbnail,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// maxBodyBytes caps request bodies at the socket.io message limit.
const maxBodyBytes = 5000000

func renderBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		renderError(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	renderError(w, r, http.StatusBadRequest, "Invalid request body")
}

func renderStoreError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if errors.Is(err, core.ErrDocumentNotFound) {
		renderError(w, r, http.StatusNotFound, "Document not found")
		return
	}
	logrus.WithError(err).Error(msg)
	renderError(w, r, http.StatusInternalServerError, msg)
}

// HandleCreate stores the request body, a scene snapshot, as a new document.
// The name comes from the ?name= query parameter.
func HandleCreate(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			logrus.WithError(err).Error("Failed to read request body")
			renderBodyError(w, r, err)
			return
		}
		if _, err := scene.Unmarshal(data); err != nil {
			renderError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		id, err := store.Create(r.Context(), &core.Document{
			Name: r.URL.Query().Get("name"),
			Data: *bytes.NewBuffer(data),
		})
		if err != nil {
			renderStoreError(w, r, err, "Failed to create document")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, DocumentCreateResponse{ID: id})
	}
}

func HandleList(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := store.List(r.Context())
		if err != nil {
			renderStoreError(w, r, err, "Failed to list documents")
			return
		}

		out := make([]Summary, 0, len(docs))
		for _, doc := range docs {
			out = append(out, summarize(doc))
		}
		render.JSON(w, r, out)
	}
}

func HandleGet(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := store.FindID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			renderStoreError(w, r, err, "Failed to get document")
			return
		}

		resp := DocumentResponse{Summary: summarize(*doc)}
		if data := doc.Data.Bytes(); json.Valid(data) {
			resp.Snapshot = data
		}
		render.JSON(w, r, resp)
	}
}

// HandleRename changes the document name and keeps its data.
func HandleRename(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RenameRequest
		if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
			logrus.WithError(err).Warn("Failed to decode request")
			renderBodyError(w, r, err)
			return
		}

		doc, err := store.FindID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			renderStoreError(w, r, err, "Failed to get document")
			return
		}
		doc.Name = req.Name
		if err := store.Update(r.Context(), doc); err != nil {
			renderStoreError(w, r, err, "Failed to update document")
			return
		}
		render.NoContent(w, r)
	}
}

func HandleDelete(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			renderStoreError(w, r, err, "Failed to delete document")
			return
		}
		render.NoContent(w, r)
	}
}

// Routes mounts the document API on r.
func Routes(r chi.Router, store core.DocumentStore) {
	r.Post("/", HandleCreate(store))
	r.Get("/", HandleList(store))
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", HandleGet(store))
		r.Patch("/", HandleRename(store))
		r.Delete("/", HandleDelete(store))
	})
}
