// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/spf13/afero"
)

var (
	ErrArtifactNotFound = errors.New("contract artifact not found")
	ErrInvalidArtifact  = errors.New("invalid contract artifact")
	ErrAmbiguousName    = errors.New("ambiguous contract name")
)

// Contract is the compiler output needed to deploy and call one contract.
type Contract struct {
	Name       string
	SourceName string
	ABI        abi.ABI
	RawABI     json.RawMessage
	Bytecode   []byte
}

// hardhatArtifact is the layout hardhat writes under artifacts/<source>/<Name>.json
type hardhatArtifact struct {
	Format       string          `json:"_format"`
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// Parse decodes a hardhat-style artifact document.
func Parse(data []byte) (*Contract, error) {
	var art hardhatArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	if art.ContractName == "" {
		return nil, fmt.Errorf("%w: missing contractName", ErrInvalidArtifact)
	}
	if len(art.ABI) == 0 {
		return nil, fmt.Errorf("%w: %s has no abi", ErrInvalidArtifact, art.ContractName)
	}
	parsed, err := abi.JSON(bytes.NewReader(art.ABI))
	if err != nil {
		return nil, fmt.Errorf("%w: %s abi: %w", ErrInvalidArtifact, art.ContractName, err)
	}
	var code []byte
	if art.Bytecode != "" && art.Bytecode != "0x" {
		if strings.Contains(art.Bytecode, "__") {
			return nil, fmt.Errorf("%w: %s has unlinked library references", ErrInvalidArtifact, art.ContractName)
		}
		code, err = hexutil.Decode(art.Bytecode)
		if err != nil {
			return nil, fmt.Errorf("%w: %s bytecode: %w", ErrInvalidArtifact, art.ContractName, err)
		}
	}
	return &Contract{
		Name:       art.ContractName,
		SourceName: art.SourceName,
		ABI:        parsed,
		RawABI:     art.ABI,
		Bytecode:   code,
	}, nil
}

// Deployable reports whether the artifact carries creation bytecode.
func (c *Contract) Deployable() bool {
	return len(c.Bytecode) > 0
}

// Loader finds compiled artifacts by contract name below a root directory.
type Loader struct {
	fs   afero.Fs
	root string

	mu    sync.Mutex
	index map[string][]string
	cache map[string]*Contract
}

func NewLoader(fsys afero.Fs, root string) *Loader {
	return &Loader{
		fs:    fsys,
		root:  root,
		cache: map[string]*Contract{},
	}
}

// Load returns the artifact for name, reading it from disk on first use.
func (l *Loader) Load(name string) (*Contract, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.cache[name]; ok {
		return c, nil
	}
	if l.index == nil {
		if err := l.buildIndex(); err != nil {
			return nil, err
		}
	}
	paths := l.index[name]
	switch len(paths) {
	case 0:
		return nil, fmt.Errorf("%w: %s (searched %s)", ErrArtifactNotFound, name, l.root)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s found at %s", ErrAmbiguousName, name, strings.Join(paths, ", "))
	}
	data, err := afero.ReadFile(l.fs, paths[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", paths[0], err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", paths[0], err)
	}
	if c.Name != name {
		return nil, fmt.Errorf("%w: %s declares contractName %s", ErrInvalidArtifact, paths[0], c.Name)
	}
	l.cache[name] = c
	return c, nil
}

func (l *Loader) buildIndex() error {
	index := map[string][]string{}
	err := afero.Walk(l.fs, l.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			// build-info holds full compiler inputs, not per-contract artifacts
			if info.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		base := info.Name()
		if filepath.Ext(base) != ".json" || strings.HasSuffix(base, ".dbg.json") {
			return nil
		}
		name := strings.TrimSuffix(base, ".json")
		index[name] = append(index[name], path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan artifacts dir %s: %w", l.root, err)
	}
	for _, paths := range index {
		sort.Strings(paths)
	}
	l.index = index
	return nil
}

// FromABI builds a call-only Contract from a raw ABI document.
func FromABI(name string, raw json.RawMessage) (*Contract, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s has no abi", ErrInvalidArtifact, name)
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s abi: %w", ErrInvalidArtifact, name, err)
	}
	return &Contract{Name: name, ABI: parsed, RawABI: raw}, nil
}
