// Package config reads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DefaultLocalStoragePath = "./data"
	DefaultIconsSource      = "assets/icons.json"
	DefaultAssetsDir        = "assets"
	DefaultCanvasWidth      = 800
	DefaultCanvasHeight     = 600
	DefaultHistoryLimit     = 30
	DefaultSessionTTL       = 2 * time.Hour
)

type Config struct {
	StorageType      string
	LocalStoragePath string
	DataSourceName   string
	S3BucketName     string

	IconsSource  string
	AssetsDir    string
	CanvasWidth  int
	CanvasHeight int
	HistoryLimit int

	// SessionTTL is how long an idle canvas session is kept. Zero keeps
	// sessions until they are deleted.
	SessionTTL time.Duration
}

// Load applies the given .env files (".env" when none are named) and
// then reads the environment. Missing files are not an error.
func Load(files ...string) Config {
	if err := godotenv.Load(files...); err != nil {
		logrus.WithError(err).Info("No .env file loaded")
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		StorageType:      os.Getenv("STORAGE_TYPE"),
		LocalStoragePath: stringEnv("LOCAL_STORAGE_PATH", DefaultLocalStoragePath),
		DataSourceName:   os.Getenv("DATA_SOURCE_NAME"),
		S3BucketName:     os.Getenv("S3_BUCKET_NAME"),
		IconsSource:      stringEnv("ICONS_SOURCE", DefaultIconsSource),
		AssetsDir:        stringEnv("ASSETS_DIR", DefaultAssetsDir),
		CanvasWidth:      intEnv("CANVAS_WIDTH", DefaultCanvasWidth),
		CanvasHeight:     intEnv("CANVAS_HEIGHT", DefaultCanvasHeight),
		HistoryLimit:     intEnv("HISTORY_LIMIT", DefaultHistoryLimit),
		SessionTTL:       durationEnv("SESSION_TTL", DefaultSessionTTL),
	}
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logrus.WithFields(logrus.Fields{"key": key, "value": v}).Warn("Invalid integer setting, using default")
		return fallback
	}
	return n
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		logrus.WithFields(logrus.Fields{"key": key, "value": v}).Warn("Invalid duration setting, using default")
		return fallback
	}
	return d
}
