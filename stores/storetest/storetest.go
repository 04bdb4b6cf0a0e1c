// Package storetest holds the behaviour every core.DocumentStore backend
// must show. Backend tests call Run with a constructor.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"shikagraph/core"
)

func newDoc(name, data string) *core.Document {
	return &core.Document{
		Name:      name,
		Data:      *bytes.NewBufferString(data),
		Thumbnail: "data:image/png;base64,AAAA",
	}
}

// Run exercises store through the whole DocumentStore contract.
func Run(t *testing.T, newStore func(t *testing.T) core.DocumentStore) {
	t.Run("CreateAndFind", func(t *testing.T) { testCreateAndFind(t, newStore(t)) })
	t.Run("EmptyDocument", func(t *testing.T) { testEmptyDocument(t, newStore(t)) })
	t.Run("LargeDocument", func(t *testing.T) { testLargeDocument(t, newStore(t)) })
	t.Run("FindNotFound", func(t *testing.T) { testFindNotFound(t, newStore(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("UpdateNotFound", func(t *testing.T) { testUpdateNotFound(t, newStore(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("DataIntegrity", func(t *testing.T) { testDataIntegrity(t, newStore(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
}

func testCreateAndFind(t *testing.T, store core.DocumentStore) {
	ctx := context.Background()
	snapshot := `{"version":1,"background":{"color":"white"},"objects":[]}`

	id, err := store.Create(ctx, newDoc("chart", snapshot))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if len(id) != 26 {
		t.Errorf("Create() returned invalid ID length: got %d, want 26", len(id))
	}

	doc, err := store.FindID(ctx, id)
	if err != nil {
		t.Fatalf("FindID() failed: %v", err)
	}
	if doc.ID != id || doc.Name != "chart" {
		t.Errorf("FindID() metadata: got id=%s name=%s", doc.ID, doc.Name)
	}
	if doc.Data.String() != snapshot {
		t.Errorf("FindID() data mismatch: got %q, want %q", doc.Data.String(), snapshot)
	}
	if doc.Thumbnail == "" {
		t.Error("FindID() lost the thumbnail")
	}
	if doc.CreatedAt == 0 || doc.UpdatedAt < doc.CreatedAt {
		t.Errorf("FindID() timestamps: created %d updated %d", doc.CreatedAt, doc.UpdatedAt)
	}
}

func testEmptyDocument(t *testing.T, store core.DocumentStore) {
	ctx := context.Background()
	id, err := store.Create(ctx, &core.Document{Data: *bytes.NewBuffer(nil)})
	if err != nil {
		t.Fatalf("Create() failed for empty document: %v", err)
	}
	doc, err := store.FindID(ctx, id)
	if err != nil {
		t.Fatalf("FindID() failed: %v", err)
	}
	if doc.Data.Len() != 0 {
		t.Errorf("empty document size: got %d, want 0", doc.Data.Len())
	}
}

func testLargeDocument(t *testing.T, store core.DocumentStore) {
	ctx := context.Background()
	largeData := strings.Repeat("x", 1024*1024)

	id, err := store.Create(ctx, newDoc("large", largeData))
	if err != nil {
		t.Fatalf("Create() failed for large document: %v", err)
	}
	doc, err := store.FindID(ctx, id)
	if err != nil {
		t.Fatalf("FindID() failed: %v", err)
	}
	if doc.Data.Len() != len(largeData) {
		t.Errorf("Retrieved document size mismatch: got %d, want %d", doc.Data.Len(), len(largeData))
	}
}

func testFindNotFound(t *testing.T, store core.DocumentStore) {
	_, err := store.FindID(context.Background(), "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	if !errors.Is(err, core.ErrDocumentNotFound) {
		t.Errorf("FindID() error: got %v, want ErrDocumentNotFound", err)
	}
}

func testUpdate(t *testing.T, store core.DocumentStore) {
	ctx := context.Background()
	id, err := store.Create(ctx, newDoc("before", "v1"))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	created, _ := store.FindID(ctx, id)
	time.Sleep(2 * time.Millisecond)

	if err := store.Update(ctx, &core.Document{
		ID:        id,
		Name:      "after",
		Data:      *bytes.NewBufferString("v2"),
		Thumbnail: "data:image/png;base64,BBBB",
	}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	doc, err := store.FindID(ctx, id)
	if err != nil {
		t.Fatalf("FindID() failed: %v", err)
	}
	if doc.Name != "after" || doc.Data.String() != "v2" || doc.Thumbnail != "data:image/png;base64,BBBB" {
		t.Errorf("Update() not applied: %+v", doc)
	}
	if doc.CreatedAt != created.CreatedAt {
		t.Errorf("Update() changed CreatedAt: got %d, want %d", doc.CreatedAt, created.CreatedAt)
	}
	if doc.UpdatedAt <= created.UpdatedAt {
		t.Errorf("Update() did not advance UpdatedAt: %d <= %d", doc.UpdatedAt, created.UpdatedAt)
	}
}

func testUpdateNotFound(t *testing.T, store core.DocumentStore) {
	err := store.Update(context.Background(), &core.Document{ID: "01HZZZZZZZZZZZZZZZZZZZZZZZ"})
	if !errors.Is(err, core.ErrDocumentNotFound) {
		t.Errorf("Update() error: got %v, want ErrDocumentNotFound", err)
	}
}

func testList(t *testing.T, store core.DocumentStore) {
	ctx := context.Background()
	docs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() failed on empty store: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("List() on empty store: got %d", len(docs))
	}

	first, _ := store.Create(ctx, newDoc("first", "a"))
	time.Sleep(2 * time.Millisecond)
	second, _ := store.Create(ctx, newDoc("second", "b"))
	time.Sleep(2 * time.Millisecond)
	if err := store.Update(ctx, &core.Document{ID: first, Name: "first", Data: *bytes.NewBufferString("a2")}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	docs, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("List(): got %d documents, want 2", len(docs))
	}
	if docs[0].ID != first || docs[1].ID != second {
		t.Errorf("List() order: got %s, %s; want most recently updated first", docs[0].ID, docs[1].ID)
	}
	for _, doc := range docs {
		if doc.Data.Len() != 0 {
			t.Errorf("List() returned data for %s", doc.ID)
		}
		if doc.Name == "" {
			t.Errorf("List() lost name for %s", doc.ID)
		}
	}
}

func testDelete(t *testing.T, store core.DocumentStore) {
	ctx := context.Background()
	id, _ := store.Create(ctx, newDoc("gone", "x"))

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.FindID(ctx, id); !errors.Is(err, core.ErrDocumentNotFound) {
		t.Errorf("FindID() after Delete(): got %v", err)
	}
	if err := store.Delete(ctx, id); !errors.Is(err, core.ErrDocumentNotFound) {
		t.Errorf("second Delete(): got %v, want ErrDocumentNotFound", err)
	}
}

func testDataIntegrity(t *testing.T, store core.DocumentStore) {
	ctx := context.Background()
	testCases := []struct {
		name string
		data string
	}{
		{"ASCII", "Hello World"},
		{"UTF-8", "健全歯 虫歯"},
		{"JSON", `{"version":1,"objects":[{"id":"a","type":"text","text":"C2"}]}`},
		{"Special chars", "!@#$%^&*()_+-=[]{}|;':\",./<>?"},
		{"Newlines", "line1\nline2\nline3"},
		{"Binary-like", "\x00\x01\x02\x03"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := store.Create(ctx, newDoc(tc.name, tc.data))
			if err != nil {
				t.Fatalf("Create() failed: %v", err)
			}
			doc, err := store.FindID(ctx, id)
			if err != nil {
				t.Fatalf("FindID() failed: %v", err)
			}
			if doc.Data.String() != tc.data {
				t.Errorf("Data integrity failed: got %q, want %q", doc.Data.String(), tc.data)
			}
		})
	}
}

func testConcurrentCreate(t *testing.T, store core.DocumentStore) {
	ctx := context.Background()
	numGoroutines := 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	ids := make(map[string]bool)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			id, err := store.Create(ctx, newDoc("concurrent", strings.Repeat("d", index+1)))
			if err != nil {
				t.Errorf("Concurrent Create() failed: %v", err)
				return
			}
			mu.Lock()
			if ids[id] {
				t.Errorf("Duplicate ID generated: %s", id)
			}
			ids[id] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(ids) != numGoroutines {
		t.Errorf("Expected %d unique IDs, got %d", numGoroutines, len(ids))
	}
}
