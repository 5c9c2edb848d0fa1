// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// scd30 reads a Sensirion SCD30 CO2 sensor and serves the readings.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/GermanBionicSystems/co2devices/badge"
	"github.com/GermanBionicSystems/co2devices/gpiodedge"
	"github.com/GermanBionicSystems/co2devices/internal/app"
	"github.com/GermanBionicSystems/co2devices/internal/config"
	"github.com/GermanBionicSystems/co2devices/internal/shell"
	"github.com/GermanBionicSystems/co2devices/scd30"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	// cfg holds the application configuration
	cfg := config.NewConfig()

	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "Sensirion SCD30 CO2, temperature and humidity sensor",
		Version: app.VERSION,
		Description: "Read the SCD30 over I²C and serve the measurements over http, prometheus and mqtt" +
			"\n the data ready pin is used when configured, the status register is polled otherwise.",
		UsageText: "scd30 [--config <file>] [--log debug|info|warn|error] [--bus <name>] command" +
			"\n\nEXAMPLE:" +
			"\n\tstart the daemon with the configuration file scd30.yaml" +
			"\n\t\tscd30 --config /etc/scd30/scd30.yaml run",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Value: config.DefaultConfigFile, Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Destination: &cfg.Flag.LogLevel, Usage: "`LEVEL` defines the log level (panic|fatal|error|warn|info|debug|trace)"},
			&cli.StringFlag{Name: "bus", Aliases: []string{"b"}, Destination: &cfg.Flag.Bus, Usage: "I²C bus `NAME`, default is the first bus"},
		},
		Before: func(*cli.Context) error {
			if err := cfg.LoadConfig(); err != nil {
				return err
			}
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			log.SetOutput(cfg.Log.File)
			log.SetLevel(cfg.Log.Level)
			return nil
		},
		After: func(*cli.Context) error {
			return cfg.Close()
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "measure continuously and serve the readings",
				Action: func(*cli.Context) error {
					return run(cfg)
				},
			},
			{
				Name:  "read",
				Usage: "wait for one measurement and print it",
				Action: func(*cli.Context) error {
					return withDev(cfg, func(dev *scd30.Dev) error {
						env := scd30.Env{}
						if err := dev.Sense(&env); err != nil {
							return err
						}
						r := dev.Last()
						fmt.Printf("%s %.2f°F %.2fK\n", env.String(), scd30.CelsiusToFahrenheit(r.Temperature), scd30.CelsiusToKelvin(r.Temperature))
						return nil
					})
				},
			},
			{
				Name:      "shell",
				Usage:     "send commands interactively, or a single command given as arguments",
				ArgsUsage: "[command [args]]",
				Action: func(c *cli.Context) error {
					return withDev(cfg, func(dev *scd30.Dev) error {
						return shell.New(dev).Run(c.Args().Slice()...)
					})
				},
			},
			{
				Name:  "badge",
				Usage: "wait for one measurement and render it as PNG",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "scd30.png", Usage: "write the image to `FILE`"},
				},
				Action: func(c *cli.Context) error {
					return withDev(cfg, func(dev *scd30.Dev) error {
						if err := dev.Sense(&scd30.Env{}); err != nil {
							return err
						}
						return badge.SavePNG(c.String("out"), dev.Last(), nil)
					})
				},
			},
			{
				Name:  "reset",
				Usage: "soft reset the sensor",
				Action: func(*cli.Context) error {
					return withDev(cfg, func(dev *scd30.Dev) error {
						return dev.SoftReset()
					})
				},
			},
			{
				Name:  "firmware",
				Usage: "print the firmware version",
				Action: func(*cli.Context) error {
					return withDev(cfg, func(dev *scd30.Dev) error {
						v, err := dev.FirmwareVersion()
						if err != nil {
							return err
						}
						fmt.Println(v)
						return nil
					})
				},
			},
		},
	}

	// we expect to have more command line flags in the future - sort them
	sort.Sort(cli.FlagsByName(cliApp.Flags))
	sort.Sort(cli.CommandsByName(cliApp.Commands))

	if err := cliApp.Run(os.Args); err != nil {
		log.Error(err)
		return
	}
	exitCode = 0
}

// openBus initializes periph and opens the configured I²C bus.
func openBus(cfg *config.Config) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initializing periph")
	}
	bus, err := i2creg.Open(cfg.I2C.Bus)
	if err != nil {
		return nil, errors.Wrapf(err, "opening i2c bus %q", cfg.I2C.Bus)
	}
	return bus, nil
}

func newDev(cfg *config.Config, bus i2c.Bus) (*scd30.Dev, error) {
	return scd30.NewI2C(bus, cfg.I2C.Address, &scd30.Opts{
		MeasurementInterval: cfg.Sensor.Interval,
		VerifyChecksums:     cfg.Sensor.VerifyChecksums,
	})
}

// withDev runs fn with a sensor on the configured bus.
func withDev(cfg *config.Config, fn func(dev *scd30.Dev) error) error {
	bus, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()
	dev, err := newDev(cfg, bus)
	if err != nil {
		return err
	}
	return fn(dev)
}

// edgeSource returns the RDY interrupt source, or nil to poll.
func edgeSource(cfg *config.SensorConfig) (scd30.EdgeSource, error) {
	if cfg.ReadyPin != "" {
		pin := gpioreg.ByName(cfg.ReadyPin)
		if pin == nil {
			return nil, errors.Errorf("unknown RDY pin %q", cfg.ReadyPin)
		}
		return &scd30.PinEdge{Pin: pin}, nil
	}
	if cfg.ReadyLine >= 0 {
		bias, err := gpiodedge.ParseBias(cfg.ReadyBias)
		if err != nil {
			return nil, err
		}
		return &gpiodedge.Line{Chip: cfg.ReadyChip, Offset: cfg.ReadyLine, Bias: bias}, nil
	}
	return nil, nil
}

func run(cfg *config.Config) error {
	bus, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()
	dev, err := newDev(cfg, bus)
	if err != nil {
		return err
	}
	edge, err := edgeSource(&cfg.Sensor)
	if err != nil {
		return err
	}
	a, err := app.New(cfg, dev, edge)
	if err != nil {
		return err
	}

	// capture exit signals to ensure resources are released on exit.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("starting app %s on %s", app.Version(), dev)
	err = a.Run(ctx)
	log.Infof("closing app %s", app.Version())
	return err
}
