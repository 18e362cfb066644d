package predict

import (
	"context"
	"errors"
	"fmt"

	"stockpulse/internal/domain/repository"
	"stockpulse/internal/ml"
	"stockpulse/pkg/logger"
)

// Loader reads artifacts from storage and turns them into scoreable
// models.
type Loader struct {
	artifacts repository.ArtifactStore
	logger    *logger.Logger
}

// NewLoader creates a Loader.
func NewLoader(artifacts repository.ArtifactStore, log *logger.Logger) *Loader {
	return &Loader{artifacts: artifacts, logger: log}
}

// Load reads and instantiates the model for one key. A missing artifact
// is a normal outcome and comes back as (nil, nil); a corrupt or
// unreadable one is an error.
func (l *Loader) Load(ctx context.Context, key ModelKey) (*ModelHandle, error) {
	data, err := l.artifacts.Load(ctx, key.TenantID, key.SymbolID, key.ModelType)
	if err != nil {
		if errors.Is(err, repository.ErrArtifactNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	art, err := ml.DecodeArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("decode artifact tenant=%d symbol=%d type=%s: %w",
			key.TenantID, key.SymbolID, key.ModelType, err)
	}
	clf, err := art.Instantiate()
	if err != nil {
		return nil, fmt.Errorf("instantiate model: %w", err)
	}

	return &ModelHandle{
		Classifier:       clf,
		SelectedFeatures: art.SelectedFeatures,
		TrainedAt:        art.TrainedAt,
	}, nil
}

// Func adapts one key to the cache's load callback.
func (l *Loader) Func(key ModelKey) LoadFunc {
	return func(ctx context.Context) (*ModelHandle, error) {
		return l.Load(ctx, key)
	}
}
