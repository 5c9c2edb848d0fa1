// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package co2bar implements a 1D display.Drawer that shows a CO2 gauge in a
// terminal using ANSI color codes.
//
// The bar fills in proportion to the concentration and takes the color of the
// air quality level, followed by the value and the level name.
package co2bar

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/GermanBionicSystems/co2devices/scd30"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
)

// Level is an indoor air quality class derived from the CO2 concentration.
type Level int

const (
	LevelGood Level = iota
	LevelModerate
	LevelPoor
	LevelBad
)

// Upper bounds of each level in ppm, excluded.
var thresholds = [...]float32{800, 1000, 1400}

var levelColors = [...]color.NRGBA{
	{0x00, 0xc0, 0x00, 0xff},
	{0xe0, 0xe0, 0x00, 0xff},
	{0xff, 0x80, 0x00, 0xff},
	{0xe0, 0x00, 0x00, 0xff},
}

// LevelOf classifies a concentration in ppm.
func LevelOf(ppm float32) Level {
	for i, t := range thresholds {
		if ppm < t {
			return Level(i)
		}
	}
	return LevelBad
}

func (l Level) String() string {
	switch l {
	case LevelGood:
		return "good"
	case LevelModerate:
		return "moderate"
	case LevelPoor:
		return "poor"
	case LevelBad:
		return "bad"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Color returns the color used to draw the level.
func (l Level) Color() color.NRGBA {
	if l < 0 || int(l) >= len(levelColors) {
		return color.NRGBA{A: 0xff}
	}
	return levelColors[l]
}

// Opts represents the options available for this display.
type Opts struct {
	// X is the number of cells of the bar.
	X int
	// Max is the concentration of a full bar. Default is 2000 ppm.
	Max     scd30.PPM
	Palette *ansi256.Palette
	// W receives the output. Default is a colorable stdout.
	W io.Writer

	_ struct{}
}

// Dev is a CO2 gauge that outputs to the console.
type Dev struct {
	w       io.Writer
	l       int
	max     scd30.PPM
	palette ansi256.Palette

	pixels []byte
	label  string
	buf    bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.W
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	m := opts.Max
	if m <= 0 {
		m = 2000
	}
	return &Dev{
		w:       w,
		l:       opts.X,
		max:     m,
		palette: *p,
		pixels:  make([]byte, 3*opts.X),
	}
}

func (d *Dev) String() string {
	return "CO2Bar"
}

// Halt implements conn.Resource.
//
// It resets the terminal colors and ends the line.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\n\033[0m"))
	return err
}

// Show draws the gauge for a reading.
func (d *Dev) Show(r scd30.Reading) error {
	level := LevelOf(r.CO2)
	filled := d.Cells(r.CO2)
	img := image.NewNRGBA(d.Bounds())
	c := level.Color()
	for x := 0; x < filled; x++ {
		img.SetNRGBA(x, 0, c)
	}
	d.label = fmt.Sprintf("%5.0f ppm %-8s %5.1f°C %5.1f%%rH", r.CO2, level, r.Temperature, r.Humidity)
	return d.Draw(d.Bounds(), img, image.Point{})
}

// Cells returns the number of filled cells for a concentration.
func (d *Dev) Cells(ppm float32) int {
	if ppm <= 0 {
		return 0
	}
	n := int(float32(d.l)*ppm/float32(d.max) + 0.5)
	if n > d.l {
		return d.l
	}
	return n
}

// Write accepts a stream of raw RGB pixels and writes it to the console.
func (d *Dev) Write(pixels []byte) (int, error) {
	if len(pixels)%3 != 0 {
		return 0, errors.New("co2bar: invalid RGB stream length")
	}
	copy(d.pixels, pixels)
	return d.refresh()
}

// ColorModel implements display.Drawer.
func (d *Dev) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements display.Drawer.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rectangle{Max: image.Point{X: d.l, Y: 1}}
}

// Draw implements display.Drawer.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(d.Bounds())
	srcR := src.Bounds()
	srcR.Min = srcR.Min.Add(sp)
	if dX := r.Dx(); dX < srcR.Dx() {
		srcR.Max.X = srcR.Min.X + dX
	}
	deltaX3 := 3 * (r.Min.X - srcR.Min.X)
	for sX := srcR.Min.X; sX < srcR.Max.X; sX++ {
		r16, g16, b16, _ := src.At(sX, srcR.Min.Y).RGBA()
		dX3 := 3*sX + deltaX3
		d.pixels[dX3] = byte(r16 >> 8)
		d.pixels[dX3+1] = byte(g16 >> 8)
		d.pixels[dX3+2] = byte(b16 >> 8)
	}
	_, err := d.refresh()
	return err
}

// refresh rewrites the current line.
func (d *Dev) refresh() (int, error) {
	d.buf.Reset()
	_, _ = d.buf.WriteString("\r\033[0m")
	for i := 0; i < len(d.pixels)/3; i++ {
		c := color.NRGBA{d.pixels[3*i], d.pixels[3*i+1], d.pixels[3*i+2], 255}
		_, _ = io.WriteString(&d.buf, d.palette.Block(c))
	}
	_, _ = d.buf.WriteString("\033[0m ")
	_, _ = d.buf.WriteString(d.label)
	_, err := d.buf.WriteTo(d.w)
	return len(d.pixels), err
}

var _ display.Drawer = &Dev{}
var _ fmt.Stringer = &Dev{}
