package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"stockpulse/internal/domain/models"
	domrepo "stockpulse/internal/domain/repository"
	"stockpulse/pkg/logger"
)

// FSArtifactStore keeps serialized model artifacts on local disk,
// one file per (tenant, symbol, model type). Saves are atomic: the
// payload is written to a temp file and renamed over the target, so
// a concurrent Load never observes a partial artifact.
type FSArtifactStore struct {
	dir string
	l   *logger.Logger
}

func NewFSArtifactStore(dir string, l *logger.Logger) (*FSArtifactStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact store: create dir: %w", err)
	}
	return &FSArtifactStore{dir: dir, l: l}, nil
}

func (s *FSArtifactStore) path(tenantID, symbolID int64, modelType models.ModelType) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d", tenantID), fmt.Sprintf("%d_%s.json", symbolID, modelType))
}

func (s *FSArtifactStore) Save(ctx context.Context, tenantID, symbolID int64, modelType models.ModelType, data []byte) error {
	target := s.path(tenantID, symbolID, modelType)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("artifact store: create tenant dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".artifact-*")
	if err != nil {
		return fmt.Errorf("artifact store: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("artifact store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("artifact store: close temp: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("artifact store: rename: %w", err)
	}

	s.l.Debug("artifact saved",
		logger.Int64("tenant_id", tenantID),
		logger.Int64("symbol_id", symbolID),
		logger.String("model_type", string(modelType)),
		logger.Int("bytes", len(data)))
	return nil
}

func (s *FSArtifactStore) Load(ctx context.Context, tenantID, symbolID int64, modelType models.ModelType) ([]byte, error) {
	data, err := os.ReadFile(s.path(tenantID, symbolID, modelType))
	if os.IsNotExist(err) {
		return nil, domrepo.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("artifact store: read: %w", err)
	}
	return data, nil
}
