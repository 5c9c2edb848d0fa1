// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package co2bar

import (
	"bytes"
	"image/color"
	"strings"
	"testing"

	"github.com/GermanBionicSystems/co2devices/scd30"
	"github.com/maruel/ansi256"
)

func TestLevelOf(t *testing.T) {
	tests := []struct {
		ppm      float32
		expected Level
	}{
		{0, LevelGood},
		{799.9, LevelGood},
		{800, LevelModerate},
		{999, LevelModerate},
		{1000, LevelPoor},
		{1399, LevelPoor},
		{1400, LevelBad},
		{40000, LevelBad},
	}
	for _, test := range tests {
		if l := LevelOf(test.ppm); l != test.expected {
			t.Errorf("LevelOf(%v)=%s expected %s", test.ppm, l, test.expected)
		}
	}
	if s := Level(9).String(); s != "Level(9)" {
		t.Errorf("String()=%q", s)
	}
	if c := Level(9).Color(); c != (color.NRGBA{A: 0xff}) {
		t.Errorf("Color()=%v", c)
	}
}

func TestCells(t *testing.T) {
	d := New(&Opts{X: 20, W: &bytes.Buffer{}})
	tests := []struct {
		ppm      float32
		expected int
	}{
		{-5, 0},
		{0, 0},
		{1000, 10},
		{1049, 10},
		{1050, 11},
		{2000, 20},
		{5000, 20},
	}
	for _, test := range tests {
		if n := d.Cells(test.ppm); n != test.expected {
			t.Errorf("Cells(%v)=%d expected %d", test.ppm, n, test.expected)
		}
	}
}

func TestShow(t *testing.T) {
	buf := &bytes.Buffer{}
	d := New(&Opts{X: 10, Max: 1000, W: buf})
	if err := d.Show(scd30.Reading{CO2: 500, Temperature: 21.5, Humidity: 40}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	green := ansi256.Default.Block(LevelGood.Color())
	black := ansi256.Default.Block(color.NRGBA{A: 0xff})
	expected := "\r\033[0m" + strings.Repeat(green, 5) + strings.Repeat(black, 5) + "\033[0m "
	if !strings.HasPrefix(out, expected) {
		t.Errorf("unexpected bar %q", out)
	}
	if !strings.Contains(out, "500 ppm good") {
		t.Errorf("missing label in %q", out)
	}

	buf.Reset()
	if err := d.Show(scd30.Reading{CO2: 1500}); err != nil {
		t.Fatal(err)
	}
	red := ansi256.Default.Block(LevelBad.Color())
	if strings.Count(buf.String(), red) != 10 {
		t.Errorf("expected a full red bar, got %q", buf.String())
	}
}

func TestWrite(t *testing.T) {
	buf := &bytes.Buffer{}
	d := New(&Opts{X: 2, W: buf})
	if _, err := d.Write([]byte{1, 2}); err == nil {
		t.Error("expected an error for a partial pixel")
	}
	n, err := d.Write([]byte{0xff, 0, 0, 0, 0xff, 0})
	if err != nil || n != 6 {
		t.Errorf("Write()=%d, %v", n, err)
	}
	if err := d.Halt(); err != nil {
		t.Error(err)
	}
	if !strings.HasSuffix(buf.String(), "\n\033[0m") {
		t.Errorf("Halt() did not reset the terminal: %q", buf.String())
	}
	if d.String() != "CO2Bar" {
		t.Error(d.String())
	}
}
