// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package contract

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/geth/crypto"
)

var (
	ErrArgumentMismatch = errors.New("argument mismatch")
	ErrUnknownMethod    = errors.New("unknown contract method")
	ErrNotDeployable    = errors.New("contract has no creation bytecode")
)

// PackConstructor ABI-encodes constructor arguments after checking them
// against the declared parameter types.
func (c *Contract) PackConstructor(args ...interface{}) ([]byte, error) {
	inputs := c.ABI.Constructor.Inputs
	if err := checkArity(c.Name+".constructor", inputs, args); err != nil {
		return nil, err
	}
	packed, err := inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.constructor: %w", ErrArgumentMismatch, c.Name, err)
	}
	return packed, nil
}

// PackMethod returns the calldata for method, checking args against its inputs.
func (c *Contract) PackMethod(method string, args ...interface{}) ([]byte, error) {
	m, ok := c.ABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, c.Name, method)
	}
	if err := checkArity(c.Name+"."+method, m.Inputs, args); err != nil {
		return nil, err
	}
	data, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", ErrArgumentMismatch, c.Name, method, err)
	}
	return data, nil
}

// CreationCode is the deployment payload: bytecode followed by packed constructor args.
func (c *Contract) CreationCode(args ...interface{}) ([]byte, error) {
	if !c.Deployable() {
		return nil, fmt.Errorf("%w: %s", ErrNotDeployable, c.Name)
	}
	packed, err := c.PackConstructor(args...)
	if err != nil {
		return nil, err
	}
	code := make([]byte, 0, len(c.Bytecode)+len(packed))
	code = append(code, c.Bytecode...)
	return append(code, packed...), nil
}

// EncodeArgs encodes each constructor argument on its own, in declaration
// order, so the registry can show what a contract was created with.
func (c *Contract) EncodeArgs(args ...interface{}) ([]string, error) {
	inputs := c.ABI.Constructor.Inputs
	if err := checkArity(c.Name+".constructor", inputs, args); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(args))
	for i, arg := range args {
		packed, err := abi.Arguments{inputs[i]}.Pack(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.constructor arg %d (%s): %w", ErrArgumentMismatch, c.Name, i, inputs[i].Type, err)
		}
		out = append(out, hexutil.Encode(packed))
	}
	return out, nil
}

// DeploymentHash identifies a deployment by its creation code, which covers
// both bytecode and constructor arguments.
func DeploymentHash(creationCode []byte) common.Hash {
	return crypto.Keccak256Hash(creationCode)
}

// CallHash identifies a state-changing call by target and calldata.
func CallHash(target common.Address, calldata []byte) common.Hash {
	return crypto.Keccak256Hash(target.Bytes(), calldata)
}

func checkArity(what string, inputs abi.Arguments, args []interface{}) error {
	if len(inputs) != len(args) {
		return fmt.Errorf("%w: %s expects %d arguments, got %d", ErrArgumentMismatch, what, len(inputs), len(args))
	}
	return nil
}
