// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mocks provides a testify mock of prompts.Prompter.
package mocks

import (
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/mock"

	"github.com/luxfi/dexstack/pkg/prompts"
)

var _ prompts.Prompter = (*Prompter)(nil)

// Prompter is a mock implementation of prompts.Prompter
type Prompter struct {
	mock.Mock
}

func (m *Prompter) CaptureYesNo(promptStr string) (bool, error) {
	args := m.Called(promptStr)
	return args.Bool(0), args.Error(1)
}

func (m *Prompter) CaptureNoYes(promptStr string) (bool, error) {
	args := m.Called(promptStr)
	return args.Bool(0), args.Error(1)
}

func (m *Prompter) CaptureList(promptStr string, options []string) (string, error) {
	args := m.Called(promptStr, options)
	return args.String(0), args.Error(1)
}

func (m *Prompter) CaptureAddress(promptStr string) (common.Address, error) {
	args := m.Called(promptStr)
	return args.Get(0).(common.Address), args.Error(1)
}

func (m *Prompter) CapturePrice(promptStr string) (string, error) {
	args := m.Called(promptStr)
	return args.String(0), args.Error(1)
}
