// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package app wires the SCD30 driver to the daemon outputs: web services,
// Prometheus metrics, MQTT, the terminal gauge and the PNG badge.
package app

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/GermanBionicSystems/co2devices/badge"
	"github.com/GermanBionicSystems/co2devices/co2bar"
	"github.com/GermanBionicSystems/co2devices/internal/config"
	"github.com/GermanBionicSystems/co2devices/internal/exporter"
	"github.com/GermanBionicSystems/co2devices/internal/mqtt"
	"github.com/GermanBionicSystems/co2devices/scd30"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
)

// App is the main application struct.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Webserver.URL parameter
	urlParsed *url.URL

	dev  *scd30.Dev
	edge scd30.EdgeSource

	exporter *exporter.Exporter
	mqtt     *mqtt.Publisher
	bar      *co2bar.Dev

	// pollInterval is how often the data ready status is polled when no
	// interrupt source is configured, and how soon a failed read is retried
	// in interrupt mode.
	pollInterval time.Duration
	// fallbackInterval is how long the interrupt loop waits without a
	// reading before it polls the data ready status itself.
	fallbackInterval time.Duration

	mu          sync.Mutex
	last        scd30.Reading
	lastAt      time.Time
	lastPublish time.Time
	reads       uint64
	failures    uint64
}

// New checks the web server URL and initializes the main app structure. edge
// may be nil, the data ready status is polled then.
func New(cfg *config.Config, dev *scd30.Dev, edge scd30.EdgeSource) (*App, error) {
	u, err := url.Parse(cfg.Webserver.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing url %q", cfg.Webserver.URL)
	}
	interval := cfg.Sensor.Interval
	if interval <= 0 {
		interval = scd30.DefaultOpts.MeasurementInterval
	}
	a := &App{
		config:           cfg,
		urlParsed:        u,
		dev:              dev,
		edge:             edge,
		web:              fiber.New(fiber.Config{DisableStartupMessage: true}),
		exporter:         exporter.New(dev.String()),
		pollInterval:     time.Second,
		fallbackInterval: 2 * interval,
	}
	if cfg.Display.Bar && cfg.Display.BarWidth > 0 {
		a.bar = co2bar.New(&co2bar.Opts{X: cfg.Display.BarWidth})
	}
	a.initDefaultRoutes()
	return a, nil
}

// Run configures the sensor and reads it until ctx is canceled. The web
// server and the MQTT connection are started first when configured.
func (app *App) Run(ctx context.Context) error {
	if err := app.init(); err != nil {
		return err
	}
	defer app.close()

	if app.urlParsed.Host != "" {
		go app.runWebServer()
	}
	if app.edge != nil {
		return app.runInterrupt(ctx)
	}
	return app.runPolling(ctx)
}

// init applies the sensor configuration and connects to the broker.
func (app *App) init() error {
	if err := Configure(app.dev, &app.config.Sensor); err != nil {
		return err
	}
	if c := app.config.MQTT.Connection; c != "" {
		p, err := mqtt.New(c, app.config.MQTT.Topic, app.config.MQTT.QoS, app.config.MQTT.Retained)
		if err != nil {
			// Readings are still served locally.
			log.Errorf("can't open mqtt broker: %v", err)
		} else {
			app.mqtt = p
		}
	}
	return nil
}

// Configure starts measurement and applies the optional settings of cfg.
func Configure(dev *scd30.Dev, cfg *config.SensorConfig) error {
	if err := dev.StartMeasurement(physic.Pressure(cfg.Pressure) * 100 * physic.Pascal); err != nil {
		return errors.Wrap(err, "starting measurement")
	}
	if cfg.Interval != 0 {
		if err := dev.SetMeasurementInterval(cfg.Interval); err != nil {
			return errors.Wrap(err, "setting measurement interval")
		}
	}
	if cfg.Altitude != nil {
		if err := dev.SetAltitudeCompensation(physic.Distance(*cfg.Altitude) * physic.Metre); err != nil {
			return errors.Wrap(err, "setting altitude")
		}
	}
	if cfg.TemperatureOffset != nil {
		offset := physic.Temperature(*cfg.TemperatureOffset*1000+0.5) * physic.MilliKelvin
		if err := dev.SetTemperatureOffset(offset); err != nil {
			return errors.Wrap(err, "setting temperature offset")
		}
	}
	if cfg.SelfCalibration != nil {
		if err := dev.SetAutomaticSelfCalibration(*cfg.SelfCalibration); err != nil {
			return errors.Wrap(err, "setting self calibration")
		}
	}
	log.Infof("measuring every %s", cfg.Interval)
	return nil
}

func (app *App) runPolling(ctx context.Context) error {
	t := time.NewTicker(app.pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			app.poll()
		}
	}
}

// runInterrupt reads on every RDY edge. RDY stays high until the frame is
// read, so a frame that is pending when the interrupt is attached, or whose
// read failed, raises no further edge. Those are picked up by polling the
// data ready status right away, after pollInterval on failure, and after
// fallbackInterval without any reading.
func (app *App) runInterrupt(ctx context.Context) error {
	ready := make(chan struct{}, 1)
	err := app.dev.AttachExternalInterrupt(app.edge, func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return errors.Wrap(err, "attaching RDY interrupt")
	}
	log.Infof("waiting for RDY interrupts on %v", app.edge)

	fallback := time.NewTicker(app.fallbackInterval)
	defer fallback.Stop()
	lastOK := time.Now()
	var retry <-chan time.Time
	settle := func(ok bool) {
		retry = nil
		if !ok {
			retry = time.After(app.pollInterval)
			return
		}
		lastOK = time.Now()
	}
	settle(app.poll())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ready:
			settle(app.read())
		case <-retry:
			settle(app.poll())
		case now := <-fallback.C:
			if retry == nil && now.Sub(lastOK) >= app.fallbackInterval {
				log.Warnf("no RDY interrupt for %s, polling", now.Sub(lastOK).Round(time.Second))
				settle(app.poll())
			}
		}
	}
}

// poll reads a frame if the sensor has one ready. It returns false when the
// bus failed.
func (app *App) poll() bool {
	ready, err := app.dev.DataReady()
	if err != nil {
		app.failed(err)
		return false
	}
	if !ready {
		return true
	}
	return app.read()
}

func (app *App) read() bool {
	r, err := app.dev.ReadMeasurement()
	if err != nil {
		app.failed(err)
		return false
	}
	app.handleReading(r, time.Now())
	return true
}

func (app *App) failed(err error) {
	app.mu.Lock()
	app.failures++
	app.mu.Unlock()
	app.exporter.Failure()
	log.Errorf("reading sensor: %v", err)
}

// handleReading stores r and forwards it to the configured outputs.
func (app *App) handleReading(r scd30.Reading, at time.Time) {
	app.mu.Lock()
	app.last, app.lastAt = r, at
	app.reads++
	publish := app.mqtt != nil && at.Sub(app.lastPublish) >= app.config.MQTT.Interval
	if publish {
		app.lastPublish = at
	}
	app.mu.Unlock()

	log.WithFields(log.Fields{"co2": r.CO2, "temperature": r.Temperature, "humidity": r.Humidity}).Debug("reading")
	app.exporter.Observe(r, at)
	level := co2bar.LevelOf(r.CO2)
	if publish {
		if err := app.mqtt.Publish(mqtt.NewMessage(r, at, level.String())); err != nil {
			log.Error(err)
		}
	}
	if app.bar != nil {
		if err := app.bar.Show(r); err != nil {
			log.Errorf("drawing bar: %v", err)
		}
	}
	if path := app.config.Display.Badge; path != "" {
		if err := badge.SavePNG(path, r, nil); err != nil {
			log.Errorf("writing badge %s: %v", path, err)
		}
	}
}

// Last returns the last reading and when it was taken. ok is false until the
// first successful read.
func (app *App) Last() (r scd30.Reading, at time.Time, ok bool) {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.last, app.lastAt, app.reads > 0
}

// Counters returns the number of successful and failed reads.
func (app *App) Counters() (reads, failures uint64) {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.reads, app.failures
}

func (app *App) close() {
	if err := app.web.Shutdown(); err != nil {
		log.Errorf("stopping web server: %v", err)
	}
	if app.mqtt != nil {
		_ = app.mqtt.Close()
	}
	if app.bar != nil {
		_ = app.bar.Halt()
	}
	if err := app.dev.Halt(); err != nil {
		log.Errorf("stopping sensor: %v", err)
	}
}
