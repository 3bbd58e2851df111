// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package registry

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gofrs/flock"
	"github.com/luxfi/dexstack/pkg/constants"
	"github.com/spf13/afero"
)

var (
	heldMu sync.Mutex
	held   = map[uint64]struct{}{}
)

// RunLock grants exclusive write access to one network's registry, across
// goroutines of this process and across processes sharing the base dir.
type RunLock struct {
	networkID uint64
	file      *flock.Flock
}

// AcquireRunLock fails fast with ErrConcurrentRunConflict if another run
// holds the lock for networkID.
func AcquireRunLock(lockDir string, networkID uint64) (*RunLock, error) {
	heldMu.Lock()
	defer heldMu.Unlock()
	if _, ok := held[networkID]; ok {
		return nil, fmt.Errorf("%w: network %d", ErrConcurrentRunConflict, networkID)
	}
	if err := afero.NewOsFs().MkdirAll(lockDir, constants.DefaultPerms755); err != nil {
		return nil, fmt.Errorf("failed to create lock dir %s: %w", lockDir, err)
	}
	path := filepath.Join(lockDir, strconv.FormatUint(networkID, 10)+".lock")
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: network %d (lock %s held by another process)", ErrConcurrentRunConflict, networkID, path)
	}
	held[networkID] = struct{}{}
	return &RunLock{networkID: networkID, file: fl}, nil
}

// Release gives the lock up. It is safe to call more than once.
func (l *RunLock) Release() error {
	heldMu.Lock()
	defer heldMu.Unlock()
	if l.file == nil {
		return nil
	}
	delete(held, l.networkID)
	err := l.file.Unlock()
	l.file = nil
	return err
}
