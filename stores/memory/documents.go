package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"shikagraph/core"
)

type documentStore struct {
	mu        sync.RWMutex
	documents map[string]core.Document
}

func NewDocumentStore() core.DocumentStore {
	return &documentStore{
		documents: make(map[string]core.Document),
	}
}

// clone copies doc so callers never share a buffer with the store.
func clone(doc core.Document) core.Document {
	c := doc
	c.Data = *bytes.NewBuffer(append([]byte(nil), doc.Data.Bytes()...))
	return c
}

func (s *documentStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)

	s.mu.RLock()
	doc, ok := s.documents[id]
	s.mu.RUnlock()

	if ok {
		log.Info("Document retrieved successfully")
		c := clone(doc)
		return &c, nil
	}

	log.WithField("error", "document not found").Warn("Document with specified ID not found")
	return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
}

func (s *documentStore) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()
	now := time.Now().UnixMilli()

	doc := clone(*document)
	doc.ID = id
	doc.CreatedAt = now
	doc.UpdatedAt = now

	s.mu.Lock()
	s.documents[id] = doc
	s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"data_length": doc.Data.Len(),
	})
	log.Info("Document created successfully")

	return id, nil
}

func (s *documentStore) Update(ctx context.Context, document *core.Document) error {
	log := logrus.WithField("document_id", document.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.documents[document.ID]
	if !ok {
		log.Warn("Document to update not found")
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, document.ID)
	}
	doc := clone(*document)
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = time.Now().UnixMilli()
	if doc.UpdatedAt <= existing.UpdatedAt {
		doc.UpdatedAt = existing.UpdatedAt + 1
	}
	s.documents[doc.ID] = doc

	log.WithField("data_length", doc.Data.Len()).Info("Document updated successfully")
	return nil
}

func (s *documentStore) List(ctx context.Context) ([]core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]core.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		doc.Data = bytes.Buffer{}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UpdatedAt == docs[j].UpdatedAt {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].UpdatedAt > docs[j].UpdatedAt
	})

	return docs, nil
}

func (s *documentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	delete(s.documents, id)
	logrus.WithField("document_id", id).Info("Document deleted successfully")
	return nil
}
