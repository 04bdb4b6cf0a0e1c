package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"shikagraph/core"
)

const schema = `CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	data BLOB,
	thumbnail TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_updated_at ON documents (updated_at DESC);`

type documentStore struct {
	db *sql.DB
}

func NewDocumentStore(dataSourceName string) core.DocumentStore {
	log := logrus.WithField("data_source", dataSourceName)

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		log.WithError(err).Fatal("Failed to open sqlite database")
	}
	// sqlite allows one writer; a single connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		log.WithError(err).Fatal("Failed to create documents table")
	}

	return &documentStore{db}
}

func (s *documentStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)
	log.Debug("Retrieving document by ID")

	var (
		doc  core.Document
		data []byte
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, data, thumbnail, created_at, updated_at FROM documents WHERE id = ?", id,
	).Scan(&doc.ID, &doc.Name, &data, &doc.Thumbnail, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.WithField("error", "document not found").Warn("Document with specified ID not found")
			return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}
	doc.Data = *bytes.NewBuffer(data)

	log.Info("Document retrieved successfully")
	return &doc, nil
}

func (s *documentStore) Create(ctx context.Context, document *core.Document) (string, error) {
	id := ulid.Make().String()
	now := time.Now().UnixMilli()
	data := document.Data.Bytes()
	log := logrus.WithFields(logrus.Fields{
		"document_id": id,
		"data_length": len(data),
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (id, name, data, thumbnail, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, document.Name, data, document.Thumbnail, now, now)
	if err != nil {
		log.WithError(err).Error("Failed to create document")
		return "", err
	}
	log.Info("Document created successfully")
	return id, nil
}

func (s *documentStore) Update(ctx context.Context, document *core.Document) error {
	log := logrus.WithField("document_id", document.ID)
	log.Debug("Updating document")

	result, err := s.db.ExecContext(ctx,
		"UPDATE documents SET name = ?, data = ?, thumbnail = ?, updated_at = ? WHERE id = ?",
		document.Name, document.Data.Bytes(), document.Thumbnail, time.Now().UnixMilli(), document.ID)
	if err != nil {
		log.WithError(err).Error("Failed to update document")
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, document.ID)
	}

	log.Info("Document updated successfully")
	return nil
}

func (s *documentStore) List(ctx context.Context) ([]core.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, thumbnail, created_at, updated_at FROM documents ORDER BY updated_at DESC, id DESC")
	if err != nil {
		logrus.WithError(err).Error("Failed to list documents")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("Failed to close document rows")
		}
	}()

	docs := []core.Document{}
	for rows.Next() {
		var doc core.Document
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Thumbnail, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			logrus.WithError(err).Error("Failed to scan document")
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logrus.WithField("count", len(docs)).Info("Documents listed successfully")
	return docs, nil
}

func (s *documentStore) Delete(ctx context.Context, id string) error {
	log := logrus.WithField("document_id", id)
	log.Debug("Deleting document")

	result, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		log.WithError(err).Error("Failed to delete document")
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}

	log.Info("Document deleted successfully")
	return nil
}
