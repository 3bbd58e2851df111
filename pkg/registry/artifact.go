// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package registry

import (
	"encoding/json"
	"time"

	"github.com/luxfi/geth/common"
)

// Artifact is the recorded result of deploying (or discovering) one logical
// contract on one network.
type Artifact struct {
	Name            string            `json:"name"`
	NetworkID       uint64            `json:"networkId"`
	Address         common.Address    `json:"address"`
	Contract        string            `json:"contract,omitempty"`
	ABI             json.RawMessage   `json:"abi,omitempty"`
	DeployedAtBlock uint64            `json:"deployedAtBlock"`
	ConstructorArgs []string          `json:"constructorArgs,omitempty"`
	ArgsHash        common.Hash       `json:"argsHash"`
	TxHash          common.Hash       `json:"txHash"`
	StepID          string            `json:"stepId,omitempty"`
	Imported        bool              `json:"imported,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	RecordedAt      time.Time         `json:"recordedAt"`
}

// Execution records a confirmed state-changing call so a re-run can skip it.
type Execution struct {
	StepID     string      `json:"stepId"`
	Hash       common.Hash `json:"hash"`
	TxHash     common.Hash `json:"txHash"`
	Block      uint64      `json:"block"`
	RecordedAt time.Time   `json:"recordedAt"`
}

// Document is everything the registry knows about one network.
type Document struct {
	NetworkID  uint64               `json:"networkId"`
	Artifacts  map[string]Artifact  `json:"artifacts"`
	Executions map[string]Execution `json:"executions"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

func newDocument(networkID uint64) *Document {
	return &Document{
		NetworkID:  networkID,
		Artifacts:  map[string]Artifact{},
		Executions: map[string]Execution{},
	}
}
