// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gpiodedge delivers SCD30 RDY interrupts from a Linux GPIO character
// device through github.com/warthog618/gpiod.
//
// It is an alternative to scd30.PinEdge for hosts where periph's sysfs edge
// detection is unavailable, like recent kernels that dropped the sysfs GPIO
// interface.
package gpiodedge

import (
	"fmt"
	"strings"

	"github.com/GermanBionicSystems/co2devices/scd30"
)

// Bias is the internal resistor configured on the line.
type Bias int

const (
	// BiasPullDown keeps RDY low while nothing drives it. It is the default.
	BiasPullDown Bias = iota
	BiasPullUp
	BiasNone
)

func (b Bias) String() string {
	switch b {
	case BiasPullDown:
		return "pulldown"
	case BiasPullUp:
		return "pullup"
	case BiasNone:
		return "none"
	default:
		return fmt.Sprintf("Bias(%d)", int(b))
	}
}

// ParseBias converts "pulldown", "pullup" or "none" to a Bias. An empty string
// selects BiasPullDown.
func ParseBias(s string) (Bias, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pulldown":
		return BiasPullDown, nil
	case "pullup":
		return BiasPullUp, nil
	case "none":
		return BiasNone, nil
	default:
		return 0, fmt.Errorf("gpiodedge: invalid bias %q", s)
	}
}

// DefaultChip is the chip used when Line.Chip is empty.
const DefaultChip = "gpiochip0"

// Line is a GPIO line connected to the RDY pin of the sensor.
type Line struct {
	// Chip is the name or path of the gpiochip device.
	Chip string
	// Offset of the line on the chip, the BCM number on a Raspberry Pi.
	Offset int
	Bias   Bias
	// Consumer is the label shown by gpioinfo. Default is "scd30".
	Consumer string
}

func (l *Line) String() string {
	return fmt.Sprintf("%s:%d", l.chip(), l.Offset)
}

func (l *Line) chip() string {
	if l.Chip == "" {
		return DefaultChip
	}
	return l.Chip
}

func (l *Line) consumer() string {
	if l.Consumer == "" {
		return "scd30"
	}
	return l.Consumer
}

var _ scd30.EdgeSource = &Line{}
