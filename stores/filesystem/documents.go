package filesystem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"shikagraph/core"
)

// record is the on-disk form of a document, one JSON file per id.
type record struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Data      []byte `json:"data"`
	Thumbnail string `json:"thumbnail,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

func (r record) document() core.Document {
	return core.Document{
		ID:        r.ID,
		Name:      r.Name,
		Data:      *bytes.NewBuffer(r.Data),
		Thumbnail: r.Thumbnail,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type documentStore struct {
	basePath string
}

func NewDocumentStore(basePath string) core.DocumentStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		logrus.WithError(err).WithField("base_path", basePath).Fatal("Failed to create base directory")
	}
	return &documentStore{basePath: basePath}
}

// path resolves id inside the base directory and rejects anything that
// would escape it.
func (s *documentStore) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id || strings.ContainsAny(id, `/\:`) {
		return "", fmt.Errorf("invalid document id %q", id)
	}
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	absFile, err := filepath.Abs(filepath.Join(s.basePath, id))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absFile, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return absFile, nil
}

func (s *documentStore) read(id string) (*record, error) {
	filePath, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
		}
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	return &rec, nil
}

func (s *documentStore) write(rec *record) error {
	filePath, err := s.path(rec.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

func (s *documentStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)

	rec, err := s.read(id)
	if err != nil {
		log.WithError(err).Warn("Failed to retrieve document")
		return nil, err
	}

	doc := rec.document()
	log.Info("Document retrieved successfully")
	return &doc, nil
}

func (s *documentStore) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()
	now := time.Now().UnixMilli()
	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"data_length": document.Data.Len(),
	})

	rec := &record{
		ID:        id,
		Name:      document.Name,
		Data:      document.Data.Bytes(),
		Thumbnail: document.Thumbnail,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.write(rec); err != nil {
		log.WithError(err).Error("Failed to create document")
		return "", err
	}

	log.Info("Document created successfully")
	return id, nil
}

func (s *documentStore) Update(ctx context.Context, document *core.Document) error {
	log := logrus.WithField("document_id", document.ID)

	existing, err := s.read(document.ID)
	if err != nil {
		log.WithError(err).Warn("Document to update not found")
		return err
	}
	existing.Name = document.Name
	existing.Data = document.Data.Bytes()
	existing.Thumbnail = document.Thumbnail
	existing.UpdatedAt = time.Now().UnixMilli()

	if err := s.write(existing); err != nil {
		log.WithError(err).Error("Failed to update document")
		return err
	}
	log.Info("Document updated successfully")
	return nil
}

func (s *documentStore) List(ctx context.Context) ([]core.Document, error) {
	log := logrus.WithField("path", s.basePath)

	files, err := os.ReadDir(s.basePath)
	if err != nil {
		log.WithError(err).Error("Failed to read storage directory")
		return nil, err
	}

	docs := make([]core.Document, 0, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		rec, err := s.read(file.Name())
		if err != nil {
			log.WithError(err).Warnf("Skipping unreadable document file %s", file.Name())
			continue
		}
		rec.Data = nil
		docs = append(docs, rec.document())
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UpdatedAt == docs[j].UpdatedAt {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].UpdatedAt > docs[j].UpdatedAt
	})

	log.Infof("Listed %d documents", len(docs))
	return docs, nil
}

func (s *documentStore) Delete(ctx context.Context, id string) error {
	log := logrus.WithField("document_id", id)

	filePath, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
		}
		log.WithError(err).Error("Failed to delete document file")
		return err
	}

	log.Info("Document deleted successfully")
	return nil
}
