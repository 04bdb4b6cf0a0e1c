package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"shikagraph/core"
	"shikagraph/editor"
	"shikagraph/stores/memory"
)

func newTestRouter(t *testing.T) (*editor.Registry, core.DocumentStore, http.Handler) {
	t.Helper()
	reg := editor.NewRegistry(nil, editor.Options{})
	store := memory.NewDocumentStore()
	r := chi.NewRouter()
	r.Route("/canvases", func(r chi.Router) {
		Routes(r, reg, store)
	})
	return reg, store, r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) editor.State {
	t.Helper()
	var st editor.State
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}
	return st
}

func createCanvas(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/canvases/", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create canvas: got %d, want %d", rec.Code, http.StatusCreated)
	}
	return decodeState(t, rec).ID
}

func pointer(t *testing.T, h http.Handler, id, typ string, x, y float64) {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"type": typ, "x": x, "y": y})
	rec := do(t, h, http.MethodPost, "/canvases/"+id+"/pointer", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("pointer %s: got %d: %s", typ, rec.Code, rec.Body.String())
	}
}

func TestHandleCreate(t *testing.T) {
	_, _, h := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/canvases/", "")

	if rec.Code != http.StatusCreated {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusCreated)
	}
	st := decodeState(t, rec)
	if st.ID == "" {
		t.Error("Response ID is empty")
	}
	if st.Mode != editor.DefaultMode {
		t.Errorf("initial mode: got %s, want %s", st.Mode, editor.DefaultMode)
	}
	if len(st.Modes) != 4 {
		t.Errorf("modes: got %v, want 4 entries", st.Modes)
	}
}

func TestHandleGet_NotFound(t *testing.T) {
	reg := editor.NewRegistry(nil, editor.Options{})
	handler := HandleGet(reg)

	req := httptest.NewRequest(http.MethodGet, "/canvases/missing", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "missing")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	if !strings.Contains(rec.Body.String(), "Canvas not found") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandleList(t *testing.T) {
	_, _, h := newTestRouter(t)
	createCanvas(t, h)
	createCanvas(t, h)

	rec := do(t, h, http.MethodGet, "/canvases/", "")
	var infos []editor.Info
	if err := json.NewDecoder(rec.Body).Decode(&infos); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(infos) != 2 {
		t.Errorf("canvases listed: got %d, want 2", len(infos))
	}
}

func TestHandleDelete(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)

	if rec := do(t, h, http.MethodDelete, "/canvases/"+id, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete: got %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec := do(t, h, http.MethodGet, "/canvases/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	if rec := do(t, h, http.MethodDelete, "/canvases/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleSetMode_UnknownKeepsPrevious(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)

	rec := do(t, h, http.MethodPut, "/canvases/"+id+"/mode", `{"mode":"lasso"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown mode: got %d, want %d", rec.Code, http.StatusNotFound)
	}

	st := decodeState(t, do(t, h, http.MethodGet, "/canvases/"+id, ""))
	if st.Mode != "freedraw" {
		t.Errorf("mode after rejected switch: got %s, want freedraw", st.Mode)
	}

	rec = do(t, h, http.MethodPut, "/canvases/"+id+"/mode", `{"mode":"select"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("select mode: got %d", rec.Code)
	}
	if st := decodeState(t, rec); st.Mode != "select" || !st.Surface.SelectionEnabled {
		t.Errorf("select mode state: %+v", st)
	}
}

func TestHandleSetMode_InvalidBody(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)

	if rec := do(t, h, http.MethodPut, "/canvases/"+id+"/mode", `{mode`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid body: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestPointerStroke_UndoRedo(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)

	pointer(t, h, id, "down", 10, 10)
	for i := 1; i <= 4; i++ {
		pointer(t, h, id, "move", 10+float64(i)*10, 10+float64(i)*5)
	}
	pointer(t, h, id, "up", 50, 30)

	st := decodeState(t, do(t, h, http.MethodGet, "/canvases/"+id, ""))
	if st.Objects != 1 {
		t.Fatalf("objects after stroke: got %d, want 1", st.Objects)
	}
	if !st.History.CanUndo {
		t.Error("stroke should be undoable")
	}

	var step StepResponse
	rec := do(t, h, http.MethodPost, "/canvases/"+id+"/undo", "")
	if err := json.NewDecoder(rec.Body).Decode(&step); err != nil {
		t.Fatalf("Failed to decode undo response: %v", err)
	}
	if !step.Applied || step.History.CanUndo || !step.History.CanRedo {
		t.Errorf("undo response: %+v", step)
	}

	rec = do(t, h, http.MethodPost, "/canvases/"+id+"/redo", "")
	if err := json.NewDecoder(rec.Body).Decode(&step); err != nil {
		t.Fatalf("Failed to decode redo response: %v", err)
	}
	if !step.Applied || step.History.CanRedo {
		t.Errorf("redo response: %+v", step)
	}
	if st := decodeState(t, do(t, h, http.MethodGet, "/canvases/"+id, "")); st.Objects != 1 {
		t.Errorf("objects after redo: got %d, want 1", st.Objects)
	}
}

func TestHandleUndo_NothingToUndo(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)

	var step StepResponse
	rec := do(t, h, http.MethodPost, "/canvases/"+id+"/undo", "")
	if err := json.NewDecoder(rec.Body).Decode(&step); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if step.Applied {
		t.Error("undo applied on a fresh canvas")
	}
	if step.History.UndoDepth != 1 {
		t.Errorf("undo depth: got %d, want 1", step.History.UndoDepth)
	}
}

func TestHandlePointer_InvalidType(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)

	rec := do(t, h, http.MethodPost, "/canvases/"+id+"/pointer", `{"type":"hover","x":1,"y":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid pointer type: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSelectIconAndStamp(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)

	rec := do(t, h, http.MethodPut, "/canvases/"+id+"/icon", `{"id":"diagnosis_caries"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("select icon: got %d: %s", rec.Code, rec.Body.String())
	}
	st := decodeState(t, rec)
	if st.Mode != "stamp" {
		t.Errorf("mode after icon selection: got %s, want stamp", st.Mode)
	}
	if st.Icon == nil || st.Icon.ID != "diagnosis_caries" {
		t.Errorf("selected icon: %+v", st.Icon)
	}

	pointer(t, h, id, "down", 100, 100)

	rec = do(t, h, http.MethodGet, "/canvases/"+id+"/snapshot", "")
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("snapshot content type: %s", ct)
	}
	var snap struct {
		Objects []struct {
			Type string `json:"type"`
			Data struct {
				IconID string `json:"iconId"`
			} `json:"data"`
		} `json:"objects"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if len(snap.Objects) != 1 || snap.Objects[0].Type != "image" || snap.Objects[0].Data.IconID != "diagnosis_caries" {
		t.Errorf("stamped snapshot: %+v", snap)
	}
}

func TestHandleSelectIcon_Unknown(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)

	if rec := do(t, h, http.MethodPut, "/canvases/"+id+"/icon", `{"id":"nope"}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown icon: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	if st := decodeState(t, do(t, h, http.MethodGet, "/canvases/"+id, "")); st.Mode != "freedraw" {
		t.Errorf("mode after unknown icon: %s", st.Mode)
	}
}

func TestTextFlow(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)

	do(t, h, http.MethodPut, "/canvases/"+id+"/mode", `{"mode":"text"}`)
	if rec := do(t, h, http.MethodPost, "/canvases/"+id+"/text", `{"text":"early"}`); rec.Code != http.StatusConflict {
		t.Errorf("commit without request: got %d, want %d", rec.Code, http.StatusConflict)
	}

	pointer(t, h, id, "down", 50, 50)
	st := decodeState(t, do(t, h, http.MethodGet, "/canvases/"+id, ""))
	if st.Pending == nil || st.Pending.X != 50 {
		t.Fatalf("pending text request: %+v", st.Pending)
	}

	var resp TextResponse
	rec := do(t, h, http.MethodPost, "/canvases/"+id+"/text", `{"text":"C2"}`)
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Changed || resp.ID == "" {
		t.Errorf("commit response: %+v", resp)
	}

	pointer(t, h, id, "down", 300, 300)
	if rec := do(t, h, http.MethodDelete, "/canvases/"+id+"/text", ""); rec.Code != http.StatusNoContent {
		t.Errorf("cancel: got %d, want %d", rec.Code, http.StatusNoContent)
	}
	st = decodeState(t, do(t, h, http.MethodGet, "/canvases/"+id, ""))
	if st.Pending != nil {
		t.Error("request still pending after cancel")
	}
	if st.Objects != 1 {
		t.Errorf("objects: got %d, want 1", st.Objects)
	}
}

func TestHandleLoadSnapshot(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)

	snapshot := `{"version":1,"background":{"color":"#ffffff"},"objects":[` +
		`{"id":"t1","type":"text","left":10,"top":10,"scaleX":1,"scaleY":1,"angle":0,"originX":"left","originY":"top","fill":"black","fontSize":24,"opacity":1,"selectable":true,"text":"C2"}]}`
	rec := do(t, h, http.MethodPut, "/canvases/"+id+"/snapshot", snapshot)
	if rec.Code != http.StatusOK {
		t.Fatalf("load snapshot: got %d: %s", rec.Code, rec.Body.String())
	}
	st := decodeState(t, rec)
	if st.Objects != 1 {
		t.Errorf("objects after load: got %d, want 1", st.Objects)
	}
	if st.History.CanUndo {
		t.Error("loaded snapshot should reset history")
	}
}

func TestHandleLoadSnapshot_Malformed(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)
	pointer(t, h, id, "down", 10, 10)
	pointer(t, h, id, "move", 20, 20)
	pointer(t, h, id, "move", 30, 30)
	pointer(t, h, id, "up", 30, 30)

	for _, body := range []string{"not json", `{"version":1,"objects":[{"id":"x","type":"blob"}]}`} {
		if rec := do(t, h, http.MethodPut, "/canvases/"+id+"/snapshot", body); rec.Code != http.StatusBadRequest {
			t.Errorf("malformed snapshot %q: got %d, want %d", body, rec.Code, http.StatusBadRequest)
		}
	}
	if st := decodeState(t, do(t, h, http.MethodGet, "/canvases/"+id, "")); st.Objects != 1 {
		t.Errorf("objects after rejected load: got %d, want 1", st.Objects)
	}
}

func TestHandleImage(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)

	rec := do(t, h, http.MethodGet, "/canvases/"+id+"/image", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("image: got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type: got %s, want image/png", ct)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("response is not a png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 800 || b.Dy() != 600 {
		t.Errorf("image size: got %dx%d, want 800x600", b.Dx(), b.Dy())
	}

	rec = do(t, h, http.MethodGet, "/canvases/"+id+"/image?format=jpeg&quality=0.5", "")
	if ct := rec.Header().Get("Content-Type"); rec.Code != http.StatusOK || ct != "image/jpeg" {
		t.Errorf("jpeg: got %d %s", rec.Code, ct)
	}

	for _, q := range []string{"format=gif", "quality=2", "quality=high"} {
		if rec := do(t, h, http.MethodGet, "/canvases/"+id+"/image?"+q, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("image?%s: got %d, want %d", q, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestHandleSettings(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)

	rec := do(t, h, http.MethodPut, "/canvases/"+id+"/settings", `{"drawColor":"red","textSize":32}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("settings: got %d", rec.Code)
	}
	var settings editor.Settings
	if err := json.NewDecoder(rec.Body).Decode(&settings); err != nil {
		t.Fatalf("Failed to decode settings: %v", err)
	}
	if settings.DrawColor != "red" || settings.TextSize != 32 {
		t.Errorf("settings not applied: %+v", settings)
	}
	if settings.DrawWidth != 2 || settings.TextColor != "black" {
		t.Errorf("untouched settings changed: %+v", settings)
	}
}

func TestStampSelectDelete(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)

	rec := do(t, h, http.MethodPost, "/canvases/"+id+"/stamps", `{"iconId":"diagnosis_healthtooth","x":100,"y":100}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add stamp: got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, "/canvases/"+id+"/stamps", `{"iconId":"nope","x":1,"y":1}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown stamp icon: got %d, want %d", rec.Code, http.StatusNotFound)
	}

	do(t, h, http.MethodPut, "/canvases/"+id+"/mode", `{"mode":"select"}`)
	pointer(t, h, id, "down", 100, 100)
	pointer(t, h, id, "up", 100, 100)

	var del DeleteResponse
	rec = do(t, h, http.MethodDelete, "/canvases/"+id+"/selection", "")
	if err := json.NewDecoder(rec.Body).Decode(&del); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !del.Deleted {
		t.Error("selected stamp was not deleted")
	}

	rec = do(t, h, http.MethodDelete, "/canvases/"+id+"/selection", "")
	if err := json.NewDecoder(rec.Body).Decode(&del); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if del.Deleted {
		t.Error("delete with no selection reported success")
	}
}

func TestHandleClear(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)
	do(t, h, http.MethodPost, "/canvases/"+id+"/stamps", `{"iconId":"diagnosis_caries","x":100,"y":100}`)

	st := decodeState(t, do(t, h, http.MethodPost, "/canvases/"+id+"/clear", ""))
	if st.Objects != 0 {
		t.Errorf("objects after clear: got %d, want 0", st.Objects)
	}
	if !st.History.CanUndo {
		t.Error("clear should be undoable")
	}
}

func TestSaveAndLoad(t *testing.T) {
	_, store, h := newTestRouter(t)
	id := createCanvas(t, h)
	do(t, h, http.MethodPost, "/canvases/"+id+"/stamps", `{"iconId":"diagnosis_caries","x":100,"y":100}`)

	rec := do(t, h, http.MethodPost, "/canvases/"+id+"/save", `{"name":"patient-42"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("save: got %d: %s", rec.Code, rec.Body.String())
	}
	var saved IDResponse
	if err := json.NewDecoder(rec.Body).Decode(&saved); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	doc, err := store.FindID(context.Background(), saved.ID)
	if err != nil {
		t.Fatalf("saved document missing: %v", err)
	}
	if doc.Name != "patient-42" {
		t.Errorf("document name: got %s", doc.Name)
	}
	if !strings.HasPrefix(doc.Thumbnail, "data:image/png;base64,") {
		t.Errorf("thumbnail is not a png data url: %.40s", doc.Thumbnail)
	}

	other := createCanvas(t, h)
	rec = do(t, h, http.MethodPost, "/canvases/"+other+"/load/"+saved.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("load: got %d: %s", rec.Code, rec.Body.String())
	}
	if st := decodeState(t, rec); st.Objects != 1 {
		t.Errorf("objects after load: got %d, want 1", st.Objects)
	}

	rec = do(t, h, http.MethodPost, "/canvases/"+id+"/save", `{"name":"renamed","documentId":"`+saved.ID+`"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("overwrite: got %d", rec.Code)
	}
	if doc, _ := store.FindID(context.Background(), saved.ID); doc.Name != "renamed" {
		t.Errorf("overwritten name: got %s", doc.Name)
	}
}

func TestSave_EmptyBody(t *testing.T) {
	_, store, h := newTestRouter(t)
	id := createCanvas(t, h)

	if rec := do(t, h, http.MethodPost, "/canvases/"+id+"/save", ""); rec.Code != http.StatusCreated {
		t.Fatalf("save without body: got %d", rec.Code)
	}
	docs, _ := store.List(context.Background())
	if len(docs) != 1 {
		t.Errorf("documents: got %d, want 1", len(docs))
	}
}

func TestLoadAndSave_NotFound(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)

	if rec := do(t, h, http.MethodPost, "/canvases/"+id+"/load/01HZZZZZZZZZZZZZZZZZZZZZZZ", ""); rec.Code != http.StatusNotFound {
		t.Errorf("load missing document: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	rec := do(t, h, http.MethodPost, "/canvases/"+id+"/save", `{"documentId":"01HZZZZZZZZZZZZZZZZZZZZZZZ"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("overwrite missing document: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestLoad_CorruptDocument(t *testing.T) {
	_, store, h := newTestRouter(t)
	id := createCanvas(t, h)
	docID, err := store.Create(context.Background(), &core.Document{Data: *bytes.NewBufferString("garbage")})
	if err != nil {
		t.Fatal(err)
	}

	if rec := do(t, h, http.MethodPost, "/canvases/"+id+"/load/"+docID, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("corrupt document: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRequestBodyTooLarge(t *testing.T) {
	_, _, h := newTestRouter(t)
	id := createCanvas(t, h)
	padding := strings.Repeat(" ", MaxBodyBytes)

	tests := []struct {
		name, method, path, body string
	}{
		{"snapshot", http.MethodPut, "/canvases/" + id + "/snapshot", `{"version":1,"objects":[]}` + padding},
		{"save", http.MethodPost, "/canvases/" + id + "/save", `{"name":"x"}` + padding},
		{"mode", http.MethodPut, "/canvases/" + id + "/mode", padding + `{"mode":"stamp"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusRequestEntityTooLarge {
				t.Errorf("got %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
			}
		})
	}

	st := decodeState(t, do(t, h, http.MethodGet, "/canvases/"+id, ""))
	if st.Mode != "freedraw" {
		t.Errorf("mode after rejected request: got %s, want freedraw", st.Mode)
	}
}
