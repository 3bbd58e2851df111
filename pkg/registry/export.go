// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package registry

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"sort"

	"github.com/luxfi/dexstack/pkg/constants"
	"github.com/spf13/afero"
)

// ExportedContract is one entry of deployments.json.
type ExportedContract struct {
	Address   string `json:"address"`
	ABI       string `json:"abi,omitempty"`
	NetworkID uint64 `json:"networkId"`
}

// Deployments is the document the browser client reads.
type Deployments struct {
	NetworkID uint64                      `json:"networkId"`
	Contracts map[string]ExportedContract `json:"contracts"`
}

// UIAliases maps the names a client configuration expects onto artifact names.
type UIAliases struct {
	Addresses map[string]string
	ABIs      map[string]string
}

// UIConfig is the client configuration produced from UIAliases.
type UIConfig struct {
	NetworkID uint64            `json:"networkId"`
	Addresses map[string]string `json:"addresses"`
	ABIs      map[string]string `json:"abis"`
	Missing   []string          `json:"missing,omitempty"`
}

// BuildDeployments lists every artifact with its address and ABI file.
func BuildDeployments(snap Snapshot) Deployments {
	out := Deployments{
		NetworkID: snap.NetworkID,
		Contracts: make(map[string]ExportedContract, len(snap.Artifacts)),
	}
	for name, a := range snap.Artifacts {
		entry := ExportedContract{
			Address:   a.Address.Hex(),
			NetworkID: a.NetworkID,
		}
		if len(a.ABI) > 0 {
			entry.ABI = abiRef(name)
		}
		out.Contracts[name] = entry
	}
	return out
}

// BuildUIConfig resolves aliases against snap. Aliases whose artifact is
// missing are listed in Missing.
func BuildUIConfig(snap Snapshot, aliases UIAliases) UIConfig {
	cfg := UIConfig{
		NetworkID: snap.NetworkID,
		Addresses: map[string]string{},
		ABIs:      map[string]string{},
	}
	for alias, name := range aliases.Addresses {
		a, ok := snap.Artifacts[name]
		if !ok {
			cfg.Missing = append(cfg.Missing, name)
			continue
		}
		cfg.Addresses[alias] = a.Address.Hex()
	}
	for alias, name := range aliases.ABIs {
		a, ok := snap.Artifacts[name]
		if !ok || len(a.ABI) == 0 {
			cfg.Missing = append(cfg.Missing, name)
			continue
		}
		cfg.ABIs[alias] = abiRef(name)
	}
	cfg.Missing = dedupe(cfg.Missing)
	return cfg
}

// Export writes deployments.json, ui-config.json and abi/<name>.json under dir.
func Export(fsys afero.Fs, dir string, snap Snapshot, aliases UIAliases) (UIConfig, error) {
	if err := fsys.MkdirAll(filepath.Join(dir, constants.ABIDirName), constants.DefaultPerms755); err != nil {
		return UIConfig{}, fmt.Errorf("failed to create export dir %s: %w", dir, err)
	}
	for _, name := range snap.Names() {
		a := snap.Artifacts[name]
		if len(a.ABI) == 0 {
			continue
		}
		if err := writeJSON(fsys, filepath.Join(dir, constants.ABIDirName, name+".json"), a.ABI); err != nil {
			return UIConfig{}, err
		}
	}
	if err := writeJSON(fsys, filepath.Join(dir, constants.DeploymentsFileName), BuildDeployments(snap)); err != nil {
		return UIConfig{}, err
	}
	cfg := BuildUIConfig(snap, aliases)
	if err := writeJSON(fsys, filepath.Join(dir, constants.UIConfigFileName), cfg); err != nil {
		return UIConfig{}, err
	}
	return cfg, nil
}

func abiRef(name string) string {
	return path.Join(constants.ABIDirName, name+".json")
}

func writeJSON(fsys afero.Fs, file string, v interface{}) error {
	var bs []byte
	var err error
	if raw, ok := v.(json.RawMessage); ok {
		var decoded interface{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidArtifact, file, err)
		}
		bs, err = json.MarshalIndent(decoded, "", "  ")
	} else {
		bs, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fsys, file, bs, constants.WriteReadReadPerms); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	return nil
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	sort.Strings(in)
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
