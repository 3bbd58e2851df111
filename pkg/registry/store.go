// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package registry

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/luxfi/dexstack/pkg/constants"
	"github.com/spf13/afero"
)

// Store persists registry documents keyed by network id. Every write must be
// durable when it returns.
type Store interface {
	Load(ctx context.Context, networkID uint64) (*Document, error)
	PutArtifact(ctx context.Context, networkID uint64, artifact Artifact) error
	PutExecution(ctx context.Context, networkID uint64, execution Execution) error
	Clear(ctx context.Context, networkID uint64) error
	Networks(ctx context.Context) ([]uint64, error)
	Close() error
}

// OpenStore opens the store of the given kind below dir.
func OpenStore(kind string, dir string) (Store, error) {
	switch kind {
	case "", constants.FileStore:
		return NewFileStore(afero.NewOsFs(), dir)
	case constants.SQLiteStore:
		return NewSQLiteStore(filepath.Join(dir, constants.SQLiteFileName))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, kind)
	}
}
