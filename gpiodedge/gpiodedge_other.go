// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build !linux

package gpiodedge

import "errors"

// AttachRising implements scd30.EdgeSource. The GPIO character device only
// exists on Linux.
func (l *Line) AttachRising(fn func()) (func() error, error) {
	return nil, errors.New("gpiodedge: not supported on this platform")
}
