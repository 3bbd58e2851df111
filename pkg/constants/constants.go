// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package constants

import (
	"time"
)

const (
	DefaultPerms755        = 0o755
	WriteReadReadPerms     = 0o644
	WriteReadUserOnlyPerms = 0o600

	BaseDirName  = ".dexstack"
	LogDir       = "logs"
	LogName      = "dexstack"
	RegistryDir  = "registry"
	LocksDir     = "locks"
	ExportDir    = "export"
	ArtifactsDir = "artifacts"

	MaxLogFileSize   = 4
	MaxNumOfLogFiles = 5
	RetainOldFiles   = 0 // retain all old log files

	DefaultConfigFileName = "config"
	DefaultConfigFileType = "yaml"

	SQLiteFileName = "registry.db"

	// registry store kinds
	FileStore   = "file"
	SQLiteStore = "sqlite"

	DeploymentsFileName = "deployments.json"
	UIConfigFileName    = "ui-config.json"
	ABIDirName          = "abi"

	MocksTag = "mocks"

	DefaultInitialPrice = "5000"
	DefaultMaxParallel  = 4

	DefaultConfirmationTimeout = 2 * time.Minute
	DefaultConfirmationRetries = 3
	ConfirmationPollInterval   = 2 * time.Second
	RequestTimeout             = 30 * time.Second

	// deployer key material
	EnvPrivateKey = "PRIVATE_KEY"
	EnvMnemonic   = "MNEMONIC"
	EnvSepoliaRPC = "SEPOLIA_RPC_URL"
	EnvPrefix     = "DEXSTACK"
)

// viper keys
const (
	ConfigNetworksKey    = "networks"
	ConfigArtifactsKey   = "artifacts"
	ConfigStoreKey       = "store"
	ConfigPriceKey       = "price"
	ConfigTickSpacingKey = "tick-spacing"
	ConfigTokenOwnerKey  = "token-owner"
	ConfigParallelKey    = "parallel"
	ConfigDefaultNetwork = "default-network"
	ConfigPrivateKeyKey  = "private-key"
	ConfigMnemonicKey    = "mnemonic"
	ConfigSepoliaRPCKey  = "sepolia-rpc-url"
)
