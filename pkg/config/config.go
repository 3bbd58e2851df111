// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/luxfi/dexstack/pkg/constants"
	"github.com/luxfi/dexstack/pkg/models"
)

var ErrInvalidNetworkEntry = errors.New("invalid network entry")

// networkEntry is one item under the networks: key of a config file.
// Zero fields keep the value of the built-in profile of the same name.
type networkEntry struct {
	ChainID             uint64            `yaml:"chainId" mapstructure:"chainId"`
	Kind                string            `yaml:"kind" mapstructure:"kind"`
	RPCURL              string            `yaml:"rpcUrl" mapstructure:"rpcUrl"`
	Confirmations       *uint64           `yaml:"confirmations" mapstructure:"confirmations"`
	Tags                []string          `yaml:"tags" mapstructure:"tags"`
	ConfirmationTimeout string            `yaml:"confirmationTimeout" mapstructure:"confirmationTimeout"`
	ConfirmationRetries *uint             `yaml:"confirmationRetries" mapstructure:"confirmationRetries"`
	MaxParallel         int               `yaml:"maxParallel" mapstructure:"maxParallel"`
	Imports             []importEntry     `yaml:"imports" mapstructure:"imports"`
}

// importEntry is a list item rather than a map key so that artifact names
// keep their case through viper, which lowercases keys.
type importEntry struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Address string `yaml:"address" mapstructure:"address"`
}

type networksFile struct {
	Networks map[string]networkEntry `yaml:"networks"`
}

type Config struct {
	v *viper.Viper
}

func New(v *viper.Viper) *Config {
	if v == nil {
		v = viper.GetViper()
	}
	return &Config{v: v}
}

func (c *Config) GetConfigStringValue(key string) string {
	return c.v.GetString(key)
}

func (c *Config) GetConfigIntValue(key string) int {
	return c.v.GetInt(key)
}

func (c *Config) ConfigValueIsSet(key string) bool {
	return c.v.IsSet(key)
}

func (c *Config) ConfigFileExists() bool {
	return c.v.ConfigFileUsed() != ""
}

// GetConfigPath returns the path to the configuration file
func (c *Config) GetConfigPath() string {
	return c.v.ConfigFileUsed()
}

// Networks returns the built-in profiles overlaid with the networks: entries
// of the loaded configuration.
func (c *Config) Networks() (map[string]models.NetworkProfile, error) {
	entries := map[string]networkEntry{}
	if c.v.IsSet(constants.ConfigNetworksKey) {
		if err := c.v.UnmarshalKey(constants.ConfigNetworksKey, &entries); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidNetworkEntry, err)
		}
	}
	profiles, err := merge(models.BuiltinProfiles(), entries)
	if err != nil {
		return nil, err
	}
	if p, ok := profiles["sepolia"]; ok && p.RPCURL == "" {
		p.RPCURL = c.v.GetString(constants.ConfigSepoliaRPCKey)
		profiles["sepolia"] = p
	}
	return profiles, nil
}

// Network returns the named profile, validated.
func (c *Config) Network(name string) (models.NetworkProfile, error) {
	profiles, err := c.Networks()
	if err != nil {
		return models.NetworkProfile{}, err
	}
	p, ok := profiles[name]
	if !ok {
		return models.NetworkProfile{}, fmt.Errorf("%w: %q (known: %s)", models.ErrUnknownNetwork, name, strings.Join(Names(profiles), ", "))
	}
	if err := p.Validate(); err != nil {
		return models.NetworkProfile{}, err
	}
	return p, nil
}

// LoadNetworksFile reads a standalone YAML file with a networks: key and
// merges it over base.
func LoadNetworksFile(fsys afero.Fs, path string, base map[string]models.NetworkProfile) (map[string]models.NetworkProfile, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read networks file %s: %w", path, err)
	}
	var file networksFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidNetworkEntry, path, err)
	}
	return merge(base, file.Networks)
}

// Names returns the profile names in order.
func Names(profiles map[string]models.NetworkProfile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func merge(base map[string]models.NetworkProfile, entries map[string]networkEntry) (map[string]models.NetworkProfile, error) {
	out := make(map[string]models.NetworkProfile, len(base)+len(entries))
	for name, p := range base {
		out[name] = p
	}
	for name, e := range entries {
		p, ok := out[name]
		if !ok {
			p = models.NetworkProfile{Name: name}
		}
		if err := e.apply(&p); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidNetworkEntry, name, err)
		}
		out[name] = p
	}
	return out, nil
}

func (e networkEntry) apply(p *models.NetworkProfile) error {
	if e.ChainID != 0 {
		p.ChainID = e.ChainID
	}
	if e.Kind != "" {
		kind := models.NetworkKindFromString(e.Kind)
		if kind == models.Undefined {
			return fmt.Errorf("unknown kind %q", e.Kind)
		}
		p.Kind = kind
	}
	if e.RPCURL != "" {
		p.RPCURL = e.RPCURL
	}
	if e.Confirmations != nil {
		p.ConfirmationsRequired = *e.Confirmations
	}
	if e.Tags != nil {
		p.ActiveTags = e.Tags
	}
	if e.ConfirmationTimeout != "" {
		d, err := time.ParseDuration(e.ConfirmationTimeout)
		if err != nil {
			return fmt.Errorf("confirmationTimeout: %w", err)
		}
		p.ConfirmationTimeout = d
	}
	if e.ConfirmationRetries != nil {
		retries := *e.ConfirmationRetries
		p.ConfirmationRetries = &retries
	}
	if e.MaxParallel != 0 {
		p.MaxParallel = e.MaxParallel
	}
	if len(e.Imports) > 0 {
		imports := make(map[string]string, len(p.Imports)+len(e.Imports))
		for k, v := range p.Imports {
			imports[k] = v
		}
		for _, imp := range e.Imports {
			if imp.Name == "" {
				return errors.New("import without a name")
			}
			imports[imp.Name] = imp.Address
		}
		p.Imports = imports
	}
	return nil
}
