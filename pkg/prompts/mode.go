// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package prompts

import (
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	// EnvNonInteractive forces non-interactive mode when truthy.
	EnvNonInteractive = "DEXSTACK_NON_INTERACTIVE"
	// EnvCI implies non-interactive mode when truthy.
	EnvCI = "CI"
)

// isTruthyEnv accepts 1, true, t, yes, y and on, case-insensitive.
func isTruthyEnv(key string) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

var stdinIsTTY = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsInteractive reports whether prompting is allowed: stdin is a terminal
// and neither DEXSTACK_NON_INTERACTIVE nor CI is set.
func IsInteractive() bool {
	if isTruthyEnv(EnvNonInteractive) || isTruthyEnv(EnvCI) {
		return false
	}
	return stdinIsTTY()
}

// NewPrompterForMode returns a prompter that fails fast when the process
// cannot prompt or the caller asked it not to.
func NewPrompterForMode(nonInteractive bool) Prompter {
	if nonInteractive || !IsInteractive() {
		return NewNonInteractivePrompter()
	}
	return NewPrompter()
}
