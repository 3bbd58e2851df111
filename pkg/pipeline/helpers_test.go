// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package pipeline_test

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/spf13/afero"

	"github.com/luxfi/dexstack/pkg/contract"
	"github.com/luxfi/dexstack/pkg/models"
	"github.com/luxfi/dexstack/pkg/pipeline"
	"github.com/luxfi/dexstack/pkg/registry"
)

const testChainID = 31337

var artifactDocs = []string{
	`{"_format":"hh-sol-artifact-1","contractName":"Leaf","sourceName":"contracts/Leaf.sol",
	  "abi":[],"bytecode":"0x600160005260206000f3"}`,
	`{"_format":"hh-sol-artifact-1","contractName":"Box","sourceName":"contracts/Box.sol",
	  "abi":[{"type":"constructor","inputs":[{"name":"dep","type":"address"}],"stateMutability":"nonpayable"}],
	  "bytecode":"0x600260005260206000f3"}`,
	`{"_format":"hh-sol-artifact-1","contractName":"Breakable","sourceName":"contracts/Breakable.sol",
	  "abi":[],"bytecode":"0xdeadbeef"}`,
	`{"_format":"hh-sol-artifact-1","contractName":"Token","sourceName":"contracts/Token.sol",
	  "abi":[
	    {"type":"constructor","inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"}],"stateMutability":"nonpayable"},
	    {"type":"function","name":"mint","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}
	  ],
	  "bytecode":"0x600360005260206000f3"}`,
	`{"_format":"hh-sol-artifact-1","contractName":"Factory","sourceName":"contracts/Factory.sol",
	  "abi":[
	    {"type":"function","name":"pools","inputs":[{"name":"","type":"address"},{"name":"","type":"address"},{"name":"","type":"uint24"}],
	     "outputs":[{"name":"","type":"address"}],"stateMutability":"view"}
	  ],
	  "bytecode":"0x600460005260206000f3"}`,
	`{"_format":"hh-sol-artifact-1","contractName":"Pool","sourceName":"contracts/Pool.sol",
	  "abi":[{"type":"function","name":"slot0","inputs":[],"outputs":[{"name":"","type":"uint160"}],"stateMutability":"view"}],
	  "bytecode":"0x"}`,
}

// contractSet serves parsed artifacts from memory.
type contractSet map[string]*contract.Contract

func (s contractSet) Load(name string) (*contract.Contract, error) {
	c, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contract.ErrArtifactNotFound, name)
	}
	return c, nil
}

func testContracts() contractSet {
	set := contractSet{}
	for _, doc := range artifactDocs {
		c, err := contract.Parse([]byte(doc))
		if err != nil {
			panic(err)
		}
		set[c.Name] = c
	}
	return set
}

func testProfile(tags ...string) models.NetworkProfile {
	retries := uint(1)
	return models.NetworkProfile{
		Name:                "hardhat",
		ChainID:             testChainID,
		Kind:                models.Local,
		ActiveTags:          tags,
		ConfirmationTimeout: 50 * time.Millisecond,
		ConfirmationRetries: &retries,
		MaxParallel:         1,
	}
}

func newRegistry(store registry.Store) *registry.Registry {
	reg, err := registry.Open(context.Background(), store, testChainID, nil)
	if err != nil {
		panic(err)
	}
	return reg
}

func newStore() registry.Store {
	store, err := registry.NewFileStore(afero.NewMemMapFs(), "/registry")
	if err != nil {
		panic(err)
	}
	return store
}

// addressOf builds a single address argument from the registry.
func addressOf(name string) pipeline.ArgsBuilder {
	return func(snap registry.Snapshot) ([]interface{}, error) {
		addr, err := snap.Address(name)
		if err != nil {
			return nil, err
		}
		return []interface{}{addr}, nil
	}
}

// chainOfFive is a linear plan whose third step deploys Breakable.
func chainOfFive() []pipeline.Step {
	return []pipeline.Step{
		{ID: "s1", Produces: []string{"A"}, Action: pipeline.Deploy("Leaf", nil)},
		{ID: "s2", Produces: []string{"B"}, Requires: []string{"A"}, Action: pipeline.Deploy("Box", addressOf("A"))},
		{ID: "s3", Produces: []string{"C"}, Requires: []string{"B"}, Action: pipeline.Deploy("Breakable", nil)},
		{ID: "s4", Produces: []string{"D"}, Requires: []string{"C"}, Action: pipeline.Deploy("Box", addressOf("C"))},
		{ID: "s5", Produces: []string{"E"}, Requires: []string{"D"}, Action: pipeline.Deploy("Box", addressOf("D"))},
	}
}

var tokenOwner = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
