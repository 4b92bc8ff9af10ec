package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactStore persists reconstruction artifacts (splat models and their
// manifests) onto the local filesystem. It stands in for the object storage a
// production pipeline would write to.
type ArtifactStore struct {
	basePath string
}

// NewArtifactStore initializes an ArtifactStore rooted at basePath.
func NewArtifactStore(basePath string) (*ArtifactStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &ArtifactStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *ArtifactStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Write persists the provided bytes at the given relative key and returns the
// canonicalized storage key. Keys are cleaned to prevent directory traversal.
func (s *ArtifactStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return cleanKey, nil
}

// Remove deletes the artifact directory for a job, if present. Used when the
// owner deletes a completed job.
func (s *ArtifactStore) Remove(jobID string) error {
	if s == nil {
		return nil
	}
	cleanKey, err := sanitizeKey(jobID)
	if err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.basePath, "models", filepath.FromSlash(cleanKey)))
}

// ManifestKey returns the canonical key for a job's reconstruction manifest.
func ManifestKey(jobID string) string {
	return fmt.Sprintf("models/%s/manifest.json", jobID)
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
