package repository

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"stockpulse/internal/domain/models"
	domrepo "stockpulse/internal/domain/repository"
	"stockpulse/pkg/logger"
)

func TestArtifactStoreRoundTrip(t *testing.T) {
	store, err := NewFSArtifactStore(t.TempDir(), logger.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	payload := []byte(`{"format_version":1}`)
	if err := store.Save(ctx, 1, 10, models.ModelTypeMove, payload); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, 1, 10, models.ModelTypeMove)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %s", got)
	}
}

func TestArtifactStoreMissingReturnsTypedError(t *testing.T) {
	store, err := NewFSArtifactStore(t.TempDir(), logger.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, err = store.Load(context.Background(), 1, 10, models.ModelTypeDirection)
	if !errors.Is(err, domrepo.ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound, got %v", err)
	}
}

func TestArtifactStoreOverwriteReplacesInPlace(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSArtifactStore(dir, logger.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, 1, 10, models.ModelTypeMove, []byte("v1")); err != nil {
		t.Fatalf("save v1: %v", err)
	}
	if err := store.Save(ctx, 1, 10, models.ModelTypeMove, []byte("v2")); err != nil {
		t.Fatalf("save v2: %v", err)
	}
	got, err := store.Load(ctx, 1, 10, models.ModelTypeMove)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("expected v2, got %s", got)
	}

	// Keys stay isolated: one file per tenant directory, no temp leftovers.
	entries, err := os.ReadDir(filepath.Join(dir, "1"))
	if err != nil {
		t.Fatalf("read tenant dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected single artifact file, got %d", len(entries))
	}
}

func TestArtifactStoreKeysAreTenantQualified(t *testing.T) {
	store, err := NewFSArtifactStore(t.TempDir(), logger.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, 1, 10, models.ModelTypeMove, []byte("t1")); err != nil {
		t.Fatalf("save tenant 1: %v", err)
	}
	if err := store.Save(ctx, 2, 10, models.ModelTypeMove, []byte("t2")); err != nil {
		t.Fatalf("save tenant 2: %v", err)
	}
	got, err := store.Load(ctx, 2, 10, models.ModelTypeMove)
	if err != nil {
		t.Fatalf("load tenant 2: %v", err)
	}
	if string(got) != "t2" {
		t.Fatalf("expected tenant 2 payload, got %s", got)
	}
}
