// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package application

import (
	"context"
	"fmt"
	"path/filepath"

	luxlog "github.com/luxfi/log"
	"github.com/spf13/afero"

	"github.com/luxfi/dexstack/pkg/config"
	"github.com/luxfi/dexstack/pkg/constants"
	"github.com/luxfi/dexstack/pkg/contract"
	"github.com/luxfi/dexstack/pkg/prompts"
	"github.com/luxfi/dexstack/pkg/registry"
)

// Dex carries what every command needs: the state directory, logger,
// configuration and prompter.
type Dex struct {
	Log     luxlog.Logger
	baseDir string
	Conf    *config.Config
	Prompt  prompts.Prompter
	Fs      afero.Fs
}

func New() *Dex {
	return &Dex{}
}

func (app *Dex) Setup(baseDir string, log luxlog.Logger, conf *config.Config, prompt prompts.Prompter, fsys afero.Fs) {
	if log == nil {
		log = luxlog.Noop()
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	app.baseDir = baseDir
	app.Log = log
	app.Conf = conf
	app.Prompt = prompt
	app.Fs = fsys
}

func (app *Dex) GetBaseDir() string {
	return app.baseDir
}

func (app *Dex) GetLogDir() string {
	return filepath.Join(app.baseDir, constants.LogDir)
}

func (app *Dex) GetRegistryDir() string {
	return filepath.Join(app.baseDir, constants.RegistryDir)
}

func (app *Dex) GetLocksDir() string {
	return filepath.Join(app.baseDir, constants.LocksDir)
}

// GetExportDir is the default export location for one network.
func (app *Dex) GetExportDir(network string) string {
	return filepath.Join(app.baseDir, constants.ExportDir, network)
}

func (app *Dex) GetConfigPath() string {
	if app.Conf != nil && app.Conf.ConfigFileExists() {
		return app.Conf.GetConfigPath()
	}
	return filepath.Join(app.baseDir, constants.DefaultConfigFileName+"."+constants.DefaultConfigFileType)
}

// GetArtifactsDir returns the configured compiler output directory, or
// ./artifacts.
func (app *Dex) GetArtifactsDir() string {
	if app.Conf != nil {
		if dir := app.Conf.GetConfigStringValue(constants.ConfigArtifactsKey); dir != "" {
			return dir
		}
	}
	return constants.ArtifactsDir
}

// EnsureDirs creates the state directories.
func (app *Dex) EnsureDirs() error {
	for _, dir := range []string{app.baseDir, app.GetLogDir(), app.GetRegistryDir(), app.GetLocksDir()} {
		if err := app.Fs.MkdirAll(dir, constants.DefaultPerms755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// OpenStore opens the registry store of the given kind under the state dir.
// SQLite needs a real filesystem, so it ignores app.Fs.
func (app *Dex) OpenStore(kind string) (registry.Store, error) {
	dir := app.GetRegistryDir()
	if err := app.Fs.MkdirAll(dir, constants.DefaultPerms755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	switch kind {
	case "", constants.FileStore:
		return registry.NewFileStore(app.Fs, dir)
	default:
		return registry.OpenStore(kind, dir)
	}
}

// OpenRegistry opens the store and loads the registry of networkID from it.
// Closing the returned store is up to the caller.
func (app *Dex) OpenRegistry(ctx context.Context, kind string, networkID uint64) (*registry.Registry, registry.Store, error) {
	store, err := app.OpenStore(kind)
	if err != nil {
		return nil, nil, err
	}
	reg, err := registry.Open(ctx, store, networkID, app.Log)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return reg, store, nil
}

// ClearRegistry drops the registry of networkID while holding its run lock,
// so it fails with registry.ErrConcurrentRunConflict during a deployment.
func (app *Dex) ClearRegistry(ctx context.Context, kind string, networkID uint64) error {
	lock, err := registry.AcquireRunLock(app.GetLocksDir(), networkID)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil && app.Log != nil {
			app.Log.Warn("failed to release run lock", luxlog.Err(err))
		}
	}()
	reg, store, err := app.OpenRegistry(ctx, kind, networkID)
	if err != nil {
		return err
	}
	defer store.Close()
	return reg.Clear(ctx)
}

// ContractLoader reads compiled artifacts below dir.
func (app *Dex) ContractLoader(dir string) *contract.Loader {
	return contract.NewLoader(app.Fs, dir)
}
