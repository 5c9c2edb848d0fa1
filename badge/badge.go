// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package badge renders an SCD30 reading as a small PNG image, suitable for an
// e-paper display or a status page.
package badge

import (
	"fmt"
	"image"
	"io"

	"github.com/GermanBionicSystems/co2devices/co2bar"
	"github.com/GermanBionicSystems/co2devices/scd30"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// Opts controls the size of the badge.
type Opts struct {
	Width  int
	Height int
	// Size of the CO2 text in points. The second line uses half of it.
	FontSize float64
}

// DefaultOpts is used when Render is passed nil.
var DefaultOpts = Opts{Width: 250, Height: 122, FontSize: 32}

// StripeWidth is the width of the level colored band on the left edge.
const StripeWidth = 16

var font *truetype.Font

func init() {
	var err error
	if font, err = truetype.Parse(goregular.TTF); err != nil {
		panic(err)
	}
}

// Render draws r. Black text on a white background, with a stripe in the
// color of the air quality level.
func Render(r scd30.Reading, opts *Opts) (image.Image, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Width <= StripeWidth || o.Height <= 0 {
		return nil, fmt.Errorf("badge: invalid size %dx%d", o.Width, o.Height)
	}
	if o.FontSize <= 0 {
		o.FontSize = DefaultOpts.FontSize
	}
	w, h := float64(o.Width), float64(o.Height)
	dc := gg.NewContext(o.Width, o.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	level := co2bar.LevelOf(r.CO2)
	dc.SetColor(level.Color())
	dc.DrawRectangle(0, 0, StripeWidth, h)
	dc.Fill()

	x := (w + StripeWidth) / 2
	dc.SetRGB(0, 0, 0)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: o.FontSize}))
	dc.DrawStringAnchored(fmt.Sprintf("%.0f ppm", r.CO2), x, h/3, 0.5, 0.5)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: o.FontSize / 2}))
	dc.DrawStringAnchored(fmt.Sprintf("%.1f°C  %.0f%%rH  %s", r.Temperature, r.Humidity, level), x, 3*h/4, 0.5, 0.5)
	return dc.Image(), nil
}

// WritePNG renders r and encodes it as PNG to w.
func WritePNG(w io.Writer, r scd30.Reading, opts *Opts) error {
	img, err := Render(r, opts)
	if err != nil {
		return err
	}
	return gg.NewContextForImage(img).EncodePNG(w)
}

// SavePNG renders r into the file at path.
func SavePNG(path string, r scd30.Reading, opts *Opts) error {
	img, err := Render(r, opts)
	if err != nil {
		return err
	}
	return gg.SavePNG(path, img)
}
