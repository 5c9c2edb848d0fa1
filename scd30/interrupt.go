// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scd30

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// EdgeSource delivers rising edges of the RDY pin. The SCD30 drives RDY high
// when a measurement is ready and low again once it has been read.
type EdgeSource interface {
	// AttachRising calls fn for each rising edge until detach is called.
	AttachRising(fn func()) (detach func() error, err error)
}

// PinEdge is an EdgeSource backed by a periph gpio.PinIn with edge detection.
type PinEdge struct {
	Pin gpio.PinIn
	// Timeout bounds each WaitForEdge call, it is how long detach may take.
	// Default is 100ms.
	Timeout time.Duration
}

// AttachRising implements EdgeSource. fn is called from a goroutine owned by
// PinEdge.
func (p *PinEdge) AttachRising(fn func()) (func() error, error) {
	if err := p.Pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return nil, fmt.Errorf("scd30: configuring RDY pin %s: %w", p.Pin, err)
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if p.Pin.WaitForEdge(timeout) {
				fn()
			}
		}
	}()
	var once sync.Once
	return func() error {
		once.Do(func() {
			close(stop)
			<-done
		})
		return p.Pin.In(gpio.PullDown, gpio.NoEdge)
	}, nil
}

// AttachExternalInterrupt registers fn to be called when the RDY pin goes
// high. fn runs on the goroutine of the EdgeSource, not the caller's, and
// must not block. Reading the frame from fn works because Dev serializes bus
// access, but the usual pattern is to signal a channel and read from the main
// loop:
//
//	ready := make(chan struct{}, 1)
//	_ = dev.AttachExternalInterrupt(&scd30.PinEdge{Pin: pin}, func() {
//		select {
//		case ready <- struct{}{}:
//		default:
//		}
//	})
//
// A previously attached source is detached first. Halt detaches it too.
func (d *Dev) AttachExternalInterrupt(src EdgeSource, fn func()) error {
	if err := d.DetachExternalInterrupt(); err != nil {
		return err
	}
	detach, err := src.AttachRising(fn)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.detach = detach
	d.mu.Unlock()
	return nil
}

// DetachExternalInterrupt stops delivering RDY interrupts. It is a no-op when
// nothing is attached.
func (d *Dev) DetachExternalInterrupt() error {
	d.mu.Lock()
	detach := d.detach
	d.detach = nil
	d.mu.Unlock()
	if detach == nil {
		return nil
	}
	return detach()
}
