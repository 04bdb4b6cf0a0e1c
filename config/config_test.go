package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORAGE_TYPE", "LOCAL_STORAGE_PATH", "DATA_SOURCE_NAME", "S3_BUCKET_NAME",
		"ICONS_SOURCE", "ASSETS_DIR", "CANVAS_WIDTH", "CANVAS_HEIGHT",
		"HISTORY_LIMIT", "SESSION_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()

	if cfg.StorageType != "" {
		t.Errorf("StorageType: got %q, want empty", cfg.StorageType)
	}
	if cfg.LocalStoragePath != DefaultLocalStoragePath {
		t.Errorf("LocalStoragePath: got %q", cfg.LocalStoragePath)
	}
	if cfg.IconsSource != DefaultIconsSource || cfg.AssetsDir != DefaultAssetsDir {
		t.Errorf("icon defaults: got %q %q", cfg.IconsSource, cfg.AssetsDir)
	}
	if cfg.CanvasWidth != 800 || cfg.CanvasHeight != 600 {
		t.Errorf("canvas size: got %dx%d, want 800x600", cfg.CanvasWidth, cfg.CanvasHeight)
	}
	if cfg.HistoryLimit != 30 {
		t.Errorf("HistoryLimit: got %d, want 30", cfg.HistoryLimit)
	}
	if cfg.SessionTTL != DefaultSessionTTL {
		t.Errorf("SessionTTL: got %v", cfg.SessionTTL)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("DATA_SOURCE_NAME", "charts.db")
	t.Setenv("CANVAS_WIDTH", "1024")
	t.Setenv("HISTORY_LIMIT", "50")
	t.Setenv("SESSION_TTL", "15m")

	cfg := FromEnv()
	if cfg.StorageType != "sqlite" || cfg.DataSourceName != "charts.db" {
		t.Errorf("storage: got %q %q", cfg.StorageType, cfg.DataSourceName)
	}
	if cfg.CanvasWidth != 1024 {
		t.Errorf("CanvasWidth: got %d, want 1024", cfg.CanvasWidth)
	}
	if cfg.HistoryLimit != 50 {
		t.Errorf("HistoryLimit: got %d, want 50", cfg.HistoryLimit)
	}
	if cfg.SessionTTL != 15*time.Minute {
		t.Errorf("SessionTTL: got %v, want 15m", cfg.SessionTTL)
	}
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("CANVAS_HEIGHT", "tall")
	t.Setenv("HISTORY_LIMIT", "-4")
	t.Setenv("SESSION_TTL", "soon")

	cfg := FromEnv()
	if cfg.CanvasHeight != DefaultCanvasHeight {
		t.Errorf("CanvasHeight: got %d, want default", cfg.CanvasHeight)
	}
	if cfg.HistoryLimit != DefaultHistoryLimit {
		t.Errorf("HistoryLimit: got %d, want default", cfg.HistoryLimit)
	}
	if cfg.SessionTTL != DefaultSessionTTL {
		t.Errorf("SessionTTL: got %v, want default", cfg.SessionTTL)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv leaves variables that are already set alone, even empty ones.
	os.Unsetenv("S3_BUCKET_NAME")
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("S3_BUCKET_NAME=charts\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("S3_BUCKET_NAME") })

	cfg := Load(path)
	if cfg.S3BucketName != "charts" {
		t.Errorf("S3BucketName: got %q, want charts", cfg.S3BucketName)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))
	if cfg.CanvasWidth != DefaultCanvasWidth {
		t.Errorf("CanvasWidth: got %d", cfg.CanvasWidth)
	}
}
