// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package app

import (
	"net/http"
	"time"

	"github.com/GermanBionicSystems/co2devices/co2bar"
	"github.com/GermanBionicSystems/co2devices/internal/exporter"
	"github.com/GermanBionicSystems/co2devices/scd30"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// dataResponse is the body of /data.
type dataResponse struct {
	TimeStamp    time.Time // time of the last successful read
	CO2          float32   // ppm
	Temperature  float32   // °C
	TemperatureF float64   // °F
	Humidity     float32   // %RH
	Level        string    // air quality level
}

// runWebServer starts the applications web server and listens for web
// requests. It's designed to run in a separate go function.
func (app *App) runWebServer() {
	if err := app.web.Listen(app.urlParsed.Host); err != nil {
		log.Errorf("web server: %v", err)
	}
}

// HandleData returns the last reading.
func (app *App) HandleData() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		log.Debug("web request data")

		r, at, ok := app.Last()
		if !ok {
			return ctx.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": "no reading yet"})
		}
		return ctx.JSON(dataResponse{
			TimeStamp:    at,
			CO2:          r.CO2,
			Temperature:  r.Temperature,
			TemperatureF: scd30.CelsiusToFahrenheit(r.Temperature),
			Humidity:     r.Humidity,
			Level:        co2bar.LevelOf(r.CO2).String(),
		})
	}
}

// HandleMetrics writes the Prometheus metrics.
func (app *App) HandleMetrics() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		log.Debug("web request metrics")

		ctx.Set(fiber.HeaderContentType, exporter.ContentType)
		return app.exporter.WriteText(ctx)
	}
}
