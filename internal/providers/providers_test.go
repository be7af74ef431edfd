package providers

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalArtifactStoreSave(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalArtifactStore(tmpDir)

	rec := ArtifactRecord{
		Texture:   "ewogICJ0aW1lc3RhbXAiIDog",
		Signature: "c2lnbmF0dXJl",
		JobID:     "job-42",
		Source:    "steve.png",
		CreatedAt: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC),
	}
	url, err := store.Save(context.Background(), "skins/steve.json", rec)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Errorf("Expected file:// URL, got %s", url)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, "skins", "steve.json"))
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	var got ArtifactRecord
	if err := json.Unmarshal(content, &got); err != nil {
		t.Fatalf("saved file is not JSON: %v", err)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
	got.CreatedAt = rec.CreatedAt
	if got != rec {
		t.Errorf("Saved record = %+v, want %+v", got, rec)
	}
}

func TestLocalArtifactStoreAbsolutePath(t *testing.T) {
	root := t.TempDir()
	other := filepath.Join(t.TempDir(), "out", "skin.json")

	store := NewLocalArtifactStore(root)
	if _, err := store.Save(context.Background(), other, ArtifactRecord{Texture: "t"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("Expected file at absolute path: %v", err)
	}
}

func TestLocalArtifactStoreCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewLocalArtifactStore(t.TempDir())
	if _, err := store.Save(ctx, "x.json", ArtifactRecord{}); err == nil {
		t.Fatal("Expected error for canceled context")
	}
}
