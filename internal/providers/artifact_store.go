package providers

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/osvaldoandrade/skinup/pkg/domain"
)

// ArtifactRecord is the JSON document written for a resolved upload.
type ArtifactRecord struct {
	Texture   string           `json:"texture"`
	Signature string           `json:"signature"`
	JobID     domain.JobHandle `json:"jobId,omitempty"`
	RunID     string           `json:"runId,omitempty"`
	Source    string           `json:"source,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

type ArtifactStore interface {
	Save(ctx context.Context, objectPath string, rec ArtifactRecord) (string, error)
}

type localArtifactStore struct {
	rootDir string
}

// NewLocalArtifactStore writes records under rootDir. Absolute object paths
// are used as given.
func NewLocalArtifactStore(rootDir string) ArtifactStore {
	return &localArtifactStore{rootDir: rootDir}
}

func (s *localArtifactStore) Save(ctx context.Context, objectPath string, rec ArtifactRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := objectPath
	if !filepath.IsAbs(dst) {
		dst = filepath.Join(s.rootDir, objectPath)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	data = append(data, '\n')
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	abs, _ := filepath.Abs(dst)
	return "file://" + abs, nil
}
