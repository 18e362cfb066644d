package repository

import "errors"

var (
	// ErrNotFound signals a missing row for a direct lookup.
	ErrNotFound = errors.New("repository: not found")

	// ErrArtifactNotFound signals that no model artifact exists for a key.
	// This is the normal "no model yet" condition, not a failure.
	ErrArtifactNotFound = errors.New("repository: model artifact not found")
)
