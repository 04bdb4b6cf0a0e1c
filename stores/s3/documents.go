// Package s3 keeps documents as JSON objects in an S3 bucket, one object
// per document under the documents/ prefix.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"shikagraph/core"
)

const prefix = "documents/"

// Client is the part of *s3.Client the store uses.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type object struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Data      []byte `json:"data"`
	Thumbnail string `json:"thumbnail,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

type documentStore struct {
	client Client
	bucket string
}

// NewDocumentStore loads the default AWS configuration from the
// environment and returns a store backed by bucket.
func NewDocumentStore(ctx context.Context, bucket string) core.DocumentStore {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("Unable to load AWS SDK config")
	}
	return NewDocumentStoreWithClient(s3.NewFromConfig(cfg), bucket)
}

func NewDocumentStoreWithClient(client Client, bucket string) core.DocumentStore {
	return &documentStore{client: client, bucket: bucket}
}

func key(id string) (string, error) {
	if id == "" || id == "." || id == ".." || path.Base(id) != id || strings.Contains(id, `\`) {
		return "", fmt.Errorf("invalid document id %q", id)
	}
	return prefix + id + ".json", nil
}

func (s *documentStore) read(ctx context.Context, k string) (*object, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, core.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", k, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", k, err)
	}
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode object %s: %w", k, err)
	}
	return &obj, nil
}

func (s *documentStore) write(ctx context.Context, obj *object) error {
	k, err := key(obj.ID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(k),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", k, err)
	}
	return nil
}

func (s *documentStore) FindID(ctx context.Context, id string) (*core.Document, error) {
	log := logrus.WithField("document_id", id)

	k, err := key(id)
	if err != nil {
		return nil, err
	}
	obj, err := s.read(ctx, k)
	if err != nil {
		if errors.Is(err, core.ErrDocumentNotFound) {
			log.Warn("Document with specified ID not found")
			return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
		}
		log.WithError(err).Error("Failed to retrieve document")
		return nil, err
	}

	doc := obj.document()
	log.Info("Document retrieved successfully")
	return &doc, nil
}

func (s *documentStore) Create(ctx context.Context, document *core.Document) (string, error) {
	now := time.Now().UnixMilli()
	obj := &object{
		ID:        ulid.Make().String(),
		Name:      document.Name,
		Data:      document.Data.Bytes(),
		Thumbnail: document.Thumbnail,
		CreatedAt: now,
		UpdatedAt: now,
	}
	log := logrus.WithFields(logrus.Fields{
		"document_id": obj.ID,
		"bucket":      s.bucket,
		"data_length": len(obj.Data),
	})

	if err := s.write(ctx, obj); err != nil {
		log.WithError(err).Error("Failed to upload document")
		return "", err
	}
	log.Info("Document created successfully")
	return obj.ID, nil
}

func (s *documentStore) Update(ctx context.Context, document *core.Document) error {
	log := logrus.WithField("document_id", document.ID)

	k, err := key(document.ID)
	if err != nil {
		return err
	}
	existing, err := s.read(ctx, k)
	if err != nil {
		if errors.Is(err, core.ErrDocumentNotFound) {
			return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, document.ID)
		}
		return err
	}

	updated := time.Now().UnixMilli()
	if updated <= existing.UpdatedAt {
		updated = existing.UpdatedAt + 1
	}
	obj := &object{
		ID:        document.ID,
		Name:      document.Name,
		Data:      document.Data.Bytes(),
		Thumbnail: document.Thumbnail,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: updated,
	}
	if err := s.write(ctx, obj); err != nil {
		log.WithError(err).Error("Failed to update document")
		return err
	}
	log.Info("Document updated successfully")
	return nil
}

func (s *documentStore) List(ctx context.Context) ([]core.Document, error) {
	docs := []core.Document{}

	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			logrus.WithError(err).WithField("bucket", s.bucket).Error("Failed to list documents")
			return nil, err
		}
		for _, item := range out.Contents {
			k := aws.ToString(item.Key)
			obj, err := s.read(ctx, k)
			if err != nil {
				logrus.WithError(err).WithField("key", k).Warn("Skipping unreadable document")
				continue
			}
			doc := obj.document()
			doc.Data.Reset()
			docs = append(docs, doc)
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UpdatedAt != docs[j].UpdatedAt {
			return docs[i].UpdatedAt > docs[j].UpdatedAt
		}
		return docs[i].ID > docs[j].ID
	})
	logrus.WithField("count", len(docs)).Info("Documents listed successfully")
	return docs, nil
}

func (s *documentStore) Delete(ctx context.Context, id string) error {
	log := logrus.WithField("document_id", id)

	k, err := key(id)
	if err != nil {
		return err
	}
	// DeleteObject succeeds for missing keys, so look first.
	if _, err := s.read(ctx, k); err != nil {
		if errors.Is(err, core.ErrDocumentNotFound) {
			return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
		}
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		log.WithError(err).Error("Failed to delete document")
		return fmt.Errorf("delete object %s: %w", k, err)
	}
	log.Info("Document deleted successfully")
	return nil
}

func (o *object) document() core.Document {
	return core.Document{
		ID:        o.ID,
		Name:      o.Name,
		Data:      *bytes.NewBuffer(o.Data),
		Thumbnail: o.Thumbnail,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}
