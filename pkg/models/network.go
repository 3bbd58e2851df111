// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/luxfi/dexstack/pkg/constants"
	"github.com/luxfi/geth/common"
)

var (
	ErrInvalidProfile = errors.New("invalid network profile")
	ErrUnknownNetwork = errors.New("unknown network")
	ErrMissingRPCURL  = errors.New("missing rpc url")
	ErrInvalidImport  = errors.New("invalid import address")
)

type NetworkKind int64

const (
	Undefined NetworkKind = iota
	// Local networks are deterministic dev chains (hardhat, anvil, local nodes)
	Local
	// Public networks are shared chains where reorgs and finality matter
	Public
)

func (k NetworkKind) String() string {
	switch k {
	case Local:
		return "Local"
	case Public:
		return "Public"
	}
	return "Unknown"
}

func NetworkKindFromString(s string) NetworkKind {
	switch strings.ToLower(s) {
	case "local":
		return Local
	case "public":
		return Public
	}
	return Undefined
}

// NetworkProfile is the per-target configuration of a deployment run.
type NetworkProfile struct {
	Name                  string            `json:"name" yaml:"name" mapstructure:"name"`
	ChainID               uint64            `json:"chainId" yaml:"chainId" mapstructure:"chainId"`
	Kind                  NetworkKind       `json:"-" yaml:"-" mapstructure:"-"`
	RPCURL                string            `json:"rpcUrl" yaml:"rpcUrl" mapstructure:"rpcUrl"`
	ConfirmationsRequired uint64            `json:"confirmations" yaml:"confirmations" mapstructure:"confirmations"`
	ActiveTags            []string          `json:"tags" yaml:"tags" mapstructure:"tags"`
	ConfirmationTimeout   time.Duration     `json:"confirmationTimeout" yaml:"confirmationTimeout" mapstructure:"confirmationTimeout"`
	ConfirmationRetries   *uint             `json:"confirmationRetries" yaml:"confirmationRetries" mapstructure:"confirmationRetries"`
	MaxParallel           int               `json:"maxParallel" yaml:"maxParallel" mapstructure:"maxParallel"`
	// Imports maps artifact names to contracts deployed outside the pipeline
	Imports map[string]string `json:"imports,omitempty" yaml:"imports,omitempty" mapstructure:"imports"`
}

// HasTag reports whether tag is active on this network.
func (p NetworkProfile) HasTag(tag string) bool {
	for _, t := range p.ActiveTags {
		if t == tag {
			return true
		}
	}
	return false
}

// TagsActive reports whether every tag in tags is active. An untagged step is
// always active.
func (p NetworkProfile) TagsActive(tags []string) bool {
	for _, t := range tags {
		if !p.HasTag(t) {
			return false
		}
	}
	return true
}

func (p NetworkProfile) IsLocal() bool {
	return p.Kind == Local
}

// ImportAddresses returns Imports parsed into addresses, sorted by name.
func (p NetworkProfile) ImportAddresses() ([]string, map[string]common.Address, error) {
	names := make([]string, 0, len(p.Imports))
	addrs := make(map[string]common.Address, len(p.Imports))
	for name, hex := range p.Imports {
		if !common.IsHexAddress(hex) {
			return nil, nil, fmt.Errorf("%w: %s=%q", ErrInvalidImport, name, hex)
		}
		names = append(names, name)
		addrs[name] = common.HexToAddress(hex)
	}
	sort.Strings(names)
	return names, addrs, nil
}

// WithDefaults fills unset tunables. Zero retries is a valid setting.
func (p NetworkProfile) WithDefaults() NetworkProfile {
	if p.ConfirmationTimeout == 0 {
		p.ConfirmationTimeout = constants.DefaultConfirmationTimeout
	}
	if p.ConfirmationRetries == nil {
		retries := uint(constants.DefaultConfirmationRetries)
		p.ConfirmationRetries = &retries
	}
	if p.MaxParallel <= 0 {
		p.MaxParallel = constants.DefaultMaxParallel
	}
	return p
}

// Retries is the number of extra confirmation attempts. Unset means the default.
func (p NetworkProfile) Retries() uint {
	if p.ConfirmationRetries == nil {
		return constants.DefaultConfirmationRetries
	}
	return *p.ConfirmationRetries
}

// Validate checks the profile invariants. Only deterministic local networks
// may run without confirmations.
func (p NetworkProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidProfile)
	}
	if p.ChainID == 0 {
		return fmt.Errorf("%w: %s has no chain id", ErrInvalidProfile, p.Name)
	}
	switch p.Kind {
	case Local:
	case Public:
		if p.ConfirmationsRequired == 0 {
			return fmt.Errorf("%w: public network %s must require at least one confirmation", ErrInvalidProfile, p.Name)
		}
	default:
		return fmt.Errorf("%w: %s has no kind (local or public)", ErrInvalidProfile, p.Name)
	}
	if p.MaxParallel < 0 {
		return fmt.Errorf("%w: %s has negative maxParallel", ErrInvalidProfile, p.Name)
	}
	if _, _, err := p.ImportAddresses(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidProfile, p.Name, err)
	}
	return nil
}

func (p NetworkProfile) String() string {
	return fmt.Sprintf("%s (chain id %d)", p.Name, p.ChainID)
}

// BuiltinProfiles returns the networks known without any configuration file.
func BuiltinProfiles() map[string]NetworkProfile {
	return map[string]NetworkProfile{
		"hardhat": {
			Name:                  "hardhat",
			ChainID:               31337,
			Kind:                  Local,
			RPCURL:                "http://127.0.0.1:8545",
			ConfirmationsRequired: 0,
			ActiveTags:            []string{constants.MocksTag},
		},
		"localhost": {
			Name:                  "localhost",
			ChainID:               31337,
			Kind:                  Local,
			RPCURL:                "http://127.0.0.1:8545",
			ConfirmationsRequired: 1,
			ActiveTags:            []string{constants.MocksTag},
		},
		"sepolia": {
			Name:                  "sepolia",
			ChainID:               11155111,
			Kind:                  Public,
			ConfirmationsRequired: 2,
			ConfirmationTimeout:   5 * time.Minute,
		},
	}
}
