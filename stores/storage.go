package stores

import (
	"context"

	"github.com/sirupsen/logrus"

	"shikagraph/config"
	"shikagraph/core"
	"shikagraph/stores/filesystem"
	"shikagraph/stores/memory"
	"shikagraph/stores/s3"
	"shikagraph/stores/sqlite"
)

// GetStore builds the document store named by cfg.StorageType. Anything
// unrecognised falls back to memory.
func GetStore(ctx context.Context, cfg config.Config) core.DocumentStore {
	var store core.DocumentStore

	storageField := logrus.Fields{
		"storageType": cfg.StorageType,
	}

	switch cfg.StorageType {
	case "filesystem":
		storageField["basePath"] = cfg.LocalStoragePath
		store = filesystem.NewDocumentStore(cfg.LocalStoragePath)
	case "sqlite":
		if !sqlite.CGOEnabled {
			logrus.Fatal("sqlite storage requires a cgo build")
		}
		storageField["dataSourceName"] = cfg.DataSourceName
		store = sqlite.NewDocumentStore(cfg.DataSourceName)
	case "s3":
		storageField["bucketName"] = cfg.S3BucketName
		store = s3.NewDocumentStore(ctx, cfg.S3BucketName)
	default:
		store = memory.NewDocumentStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
