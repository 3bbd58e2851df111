// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package registry

import "errors"

var (
	ErrNotFound              = errors.New("artifact not found")
	ErrInvalidArtifact       = errors.New("invalid artifact")
	ErrNetworkMismatch       = errors.New("artifact belongs to another network")
	ErrConcurrentRunConflict = errors.New("another deployment is already running against this network")
	ErrUnknownStore          = errors.New("unknown registry store")
	ErrCorruptDocument       = errors.New("corrupt registry document")
)
