// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scd30

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

type fakeEdge struct {
	fn        func()
	attached  int
	detached  int
	attachErr error
}

func (f *fakeEdge) AttachRising(fn func()) (func() error, error) {
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	f.attached++
	f.fn = fn
	return func() error {
		f.detached++
		f.fn = nil
		return nil
	}, nil
}

func TestAttachExternalInterrupt(t *testing.T) {
	dev, _ := newRecordDev(t)
	first := &fakeEdge{}
	calls := 0
	if err := dev.AttachExternalInterrupt(first, func() { calls++ }); err != nil {
		t.Fatal(err)
	}
	first.fn()
	if calls != 1 {
		t.Errorf("callback called %d times", calls)
	}

	second := &fakeEdge{}
	if err := dev.AttachExternalInterrupt(second, func() { calls += 10 }); err != nil {
		t.Fatal(err)
	}
	if first.detached != 1 {
		t.Error("previous source was not detached")
	}
	second.fn()
	if calls != 11 {
		t.Errorf("calls=%d", calls)
	}

	if err := dev.DetachExternalInterrupt(); err != nil {
		t.Error(err)
	}
	if err := dev.DetachExternalInterrupt(); err != nil {
		t.Error(err)
	}
	if second.detached != 1 {
		t.Errorf("detach called %d times", second.detached)
	}
}

func TestAttachExternalInterruptError(t *testing.T) {
	dev, _ := newRecordDev(t)
	src := &fakeEdge{attachErr: errors.New("no such pin")}
	if err := dev.AttachExternalInterrupt(src, func() {}); err == nil {
		t.Error("expected an error")
	}
	if err := dev.DetachExternalInterrupt(); err != nil {
		t.Error(err)
	}
}

func TestHaltDetaches(t *testing.T) {
	dev, _ := newRecordDev(t)
	src := &fakeEdge{}
	if err := dev.AttachExternalInterrupt(src, func() {}); err != nil {
		t.Fatal(err)
	}
	if err := dev.Halt(); err != nil {
		t.Fatal(err)
	}
	if src.detached != 1 {
		t.Error("Halt() did not detach the interrupt")
	}
}

func TestPinEdge(t *testing.T) {
	pin := &gpiotest.Pin{N: "RDY", Num: 17, EdgesChan: make(chan gpio.Level, 4)}
	src := &PinEdge{Pin: pin, Timeout: 5 * time.Millisecond}
	fired := make(chan struct{}, 4)
	detach, err := src.AttachRising(func() { fired <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	if pin.P != gpio.PullDown {
		t.Errorf("pull=%s", pin.P)
	}
	pin.EdgesChan <- gpio.High
	pin.EdgesChan <- gpio.High
	for n := 0; n < 2; n++ {
		select {
		case <-fired:
		case <-time.After(5 * time.Second):
			t.Fatal("edge not delivered")
		}
	}
	if err := detach(); err != nil {
		t.Error(err)
	}
	// Calling detach twice is harmless.
	if err := detach(); err != nil {
		t.Error(err)
	}
	select {
	case <-fired:
		t.Error("callback after detach")
	default:
	}
}

func TestPinEdgeRequiresEdges(t *testing.T) {
	// Without EdgesChan the test pin refuses edge detection.
	src := &PinEdge{Pin: &gpiotest.Pin{N: "RDY"}}
	if _, err := src.AttachRising(func() {}); err == nil {
		t.Error("expected an error")
	}
}

// The interrupt path drives the same read as polling.
func TestInterruptDrivenRead(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			wr(0x02, 0x02), rd(0x00, 0x01),
			wr(0x03, 0x00), rd(frame512...),
		},
		DontPanic: true,
	}
	dev, err := NewI2C(bus, SensorAddress, &Opts{ReadDelay: -1})
	if err != nil {
		t.Fatal(err)
	}
	src := &fakeEdge{}
	ready := make(chan struct{}, 1)
	if err := dev.AttachExternalInterrupt(src, func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatal(err)
	}
	src.fn()
	<-ready
	r, err := dev.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if r.CO2 != 512.5 {
		t.Errorf("CO2=%v", r.CO2)
	}
	if err := bus.Close(); err != nil {
		t.Error(err)
	}
}
