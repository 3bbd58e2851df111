// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package key

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	ethcrypto "github.com/luxfi/geth/crypto"
	"github.com/luxfi/go-bip39"
)

var (
	ErrNoCredentials   = errors.New("no deployer credentials: set PRIVATE_KEY or MNEMONIC")
	ErrInvalidKey      = errors.New("invalid private key")
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
)

// Signer is the deployer account.
type Signer struct {
	key *ecdsa.PrivateKey
}

func (s *Signer) PrivateKey() *ecdsa.PrivateKey {
	return s.key
}

func (s *Signer) Address() common.Address {
	return ethcrypto.PubkeyToAddress(s.key.PublicKey)
}

// FromHex parses a hex private key, with or without 0x.
func FromHex(hexKey string) (*Signer, error) {
	k, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &Signer{key: k}, nil
}

// FromMnemonic derives m/44'/60'/0'/0/index from a BIP39 mnemonic.
func FromMnemonic(mnemonic string, index uint32) (*Signer, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")
	k, err := deriveKey(seed, index)
	if err != nil {
		return nil, err
	}
	return &Signer{key: k}, nil
}

// Load prefers a private key over a mnemonic.
func Load(privateKey, mnemonic string) (*Signer, error) {
	if privateKey != "" {
		return FromHex(privateKey)
	}
	if mnemonic != "" {
		return FromMnemonic(mnemonic, 0)
	}
	return nil, ErrNoCredentials
}

func deriveKey(seed []byte, index uint32) (*ecdsa.PrivateKey, error) {
	masterKey, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}
	path := []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 60,
		hdkeychain.HardenedKeyStart + 0,
		0,
		index,
	}
	k := masterKey
	for _, child := range path {
		k, err = k.Derive(child)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child %d: %w", child, err)
		}
	}
	ecPrivKey, err := k.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get EC private key: %w", err)
	}
	return ecPrivKey.ToECDSA(), nil
}
