// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build linux

package gpiodedge

import (
	"fmt"
	"sync"

	"github.com/warthog618/gpiod"
)

// AttachRising implements scd30.EdgeSource. The chip is opened and the line
// requested as an input with rising edge detection. fn is called from the
// gpiod event goroutine.
//
// The returned detach waits for a running fn to return, so it must not be
// called from fn.
func (l *Line) AttachRising(fn func()) (func() error, error) {
	chip, err := gpiod.NewChip(l.chip(), gpiod.WithConsumer(l.consumer()))
	if err != nil {
		return nil, fmt.Errorf("gpiodedge: opening %s: %w", l.chip(), err)
	}
	handler := func(evt gpiod.LineEvent) {
		if evt.Type == gpiod.LineEventRisingEdge {
			fn()
		}
	}
	opts := []gpiod.LineReqOption{gpiod.WithEventHandler(handler), gpiod.WithRisingEdge, gpiod.AsInput}
	switch l.Bias {
	case BiasPullDown:
		opts = append(opts, gpiod.WithPullDown)
	case BiasPullUp:
		opts = append(opts, gpiod.WithPullUp)
	}
	line, err := chip.RequestLine(l.Offset, opts...)
	if err != nil {
		_ = chip.Close()
		return nil, fmt.Errorf("gpiodedge: requesting line %s: %w", l, err)
	}
	var once sync.Once
	var closeErr error
	return func() error {
		once.Do(func() {
			closeErr = line.Close()
			if err := chip.Close(); closeErr == nil {
				closeErr = err
			}
		})
		return closeErr
	}, nil
}
