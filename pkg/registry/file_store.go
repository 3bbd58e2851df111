// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/luxfi/dexstack/pkg/constants"
	"github.com/spf13/afero"
)

// FileStore keeps one JSON document per network id, <dir>/<networkID>.json.
// Writes go to a temp file that is renamed over the previous document.
type FileStore struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

func NewFileStore(fsys afero.Fs, dir string) (*FileStore, error) {
	if err := fsys.MkdirAll(dir, constants.DefaultPerms755); err != nil {
		return nil, fmt.Errorf("failed to create registry dir %s: %w", dir, err)
	}
	return &FileStore{fs: fsys, dir: dir}, nil
}

func (s *FileStore) path(networkID uint64) string {
	return filepath.Join(s.dir, strconv.FormatUint(networkID, 10)+".json")
}

func (s *FileStore) Load(_ context.Context, networkID uint64) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(networkID)
}

func (s *FileStore) read(networkID uint64) (*Document, error) {
	bs, err := afero.ReadFile(s.fs, s.path(networkID))
	if errors.Is(err, fs.ErrNotExist) {
		return newDocument(networkID), nil
	}
	if err != nil {
		return nil, err
	}
	doc := newDocument(networkID)
	if err := json.Unmarshal(bs, doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptDocument, s.path(networkID), err)
	}
	if doc.NetworkID != networkID {
		return nil, fmt.Errorf("%w: %s holds network %d", ErrCorruptDocument, s.path(networkID), doc.NetworkID)
	}
	if doc.Artifacts == nil {
		doc.Artifacts = map[string]Artifact{}
	}
	if doc.Executions == nil {
		doc.Executions = map[string]Execution{}
	}
	return doc, nil
}

func (s *FileStore) write(doc *Document) error {
	doc.UpdatedAt = time.Now().UTC()
	bs, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	target := s.path(doc.NetworkID)
	tmp := target + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, bs, constants.WriteReadReadPerms); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}
	return nil
}

func (s *FileStore) update(networkID uint64, fn func(*Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read(networkID)
	if err != nil {
		return err
	}
	fn(doc)
	return s.write(doc)
}

func (s *FileStore) PutArtifact(_ context.Context, networkID uint64, artifact Artifact) error {
	return s.update(networkID, func(doc *Document) {
		doc.Artifacts[artifact.Name] = artifact
	})
}

func (s *FileStore) PutExecution(_ context.Context, networkID uint64, execution Execution) error {
	return s.update(networkID, func(doc *Document) {
		doc.Executions[execution.StepID] = execution
	})
}

func (s *FileStore) Clear(_ context.Context, networkID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.fs.Remove(s.path(networkID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) Networks(_ context.Context) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (*FileStore) Close() error {
	return nil
}
