// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package shell provides an ishell backed interactive shell to send commands
// to an SCD30.
package shell

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/GermanBionicSystems/co2devices/scd30"
	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

// Command is one shell command. Run returns the text to print.
type Command struct {
	Name    string
	Aliases []string
	Help    string
	Run     func(dev *scd30.Dev, args []string) (string, error)
}

// Commands lists the shell commands.
var Commands = []Command{
	{Name: "start", Help: "[MBAR] start continuous measurement, with optional pressure compensation", Run: start},
	{Name: "stop", Help: "stop continuous measurement", Run: stop},
	{Name: "ready", Help: "print the data ready status", Run: ready},
	{Name: "read", Aliases: []string{"r"}, Help: "read the measurement", Run: read},
	{Name: "interval", Help: "[SECONDS] print or set the measurement interval", Run: interval},
	{Name: "asc", Help: "[on|off] print or set automatic self calibration", Run: asc},
	{Name: "frc", Help: "[PPM] print or set the forced recalibration value", Run: frc},
	{Name: "offset", Help: "[°C] print or set the temperature offset", Run: offset},
	{Name: "altitude", Help: "[METRES] print or set the altitude compensation", Run: altitude},
	{Name: "pressure", Help: "MBAR set the ambient pressure, 0 disables compensation", Run: pressure},
	{Name: "firmware", Help: "print the firmware version", Run: firmware},
	{Name: "reset", Help: "soft reset the sensor", Run: reset},
	{Name: "config", Help: "print all settings", Run: printConfig},
}

// Shell wraps ishell with the SCD30 commands.
type Shell struct {
	Shell *ishell.Shell
	dev   *scd30.Dev
}

// New creates a new shell for dev.
func New(dev *scd30.Dev) *Shell {
	s := &Shell{Shell: ishell.New(), dev: dev}
	s.Shell.SetPrompt("scd30 > ")
	for i := range Commands {
		cmd := Commands[i]
		s.Shell.AddCmd(&ishell.Cmd{
			Name:    cmd.Name,
			Aliases: cmd.Aliases,
			Help:    cmd.Help,
			Func: func(c *ishell.Context) {
				out, err := cmd.Run(s.dev, c.Args)
				if err != nil {
					c.Err(err)
					return
				}
				if out != "" {
					c.Println(out)
				}
			},
		})
	}
	return s
}

// Run processes args as a single command when given, or runs the interactive
// shell otherwise.
func (s *Shell) Run(args ...string) error {
	if len(args) > 0 {
		return s.Shell.Process(args...)
	}
	s.Shell.Run()
	return nil
}

// Exec runs the command named by args[0] on dev.
func Exec(dev *scd30.Dev, args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("command expected")
	}
	for _, cmd := range Commands {
		if cmd.Name == args[0] || contains(cmd.Aliases, args[0]) {
			return cmd.Run(dev, args[1:])
		}
	}
	return "", errors.Errorf("unknown command %q", args[0])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// optionalArg parses the first argument as an integer. ok is false when no
// argument was given.
func optionalArg(args []string, name string) (v int64, ok bool, err error) {
	if len(args) == 0 {
		return 0, false, nil
	}
	if v, err = strconv.ParseInt(args[0], 10, 64); err != nil {
		return 0, false, errors.Errorf("invalid %s %q", name, args[0])
	}
	return v, true, nil
}

func start(dev *scd30.Dev, args []string) (string, error) {
	mbar, _, err := optionalArg(args, "pressure")
	if err != nil {
		return "", err
	}
	return "OK", dev.StartMeasurement(physic.Pressure(mbar) * 100 * physic.Pascal)
}

func stop(dev *scd30.Dev, args []string) (string, error) {
	return "OK", dev.StopMeasurement()
}

func ready(dev *scd30.Dev, args []string) (string, error) {
	r, err := dev.DataReady()
	if err != nil {
		return "", err
	}
	return strconv.FormatBool(r), nil
}

func read(dev *scd30.Dev, args []string) (string, error) {
	r, err := dev.ReadMeasurement()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %.2f°F %.2fK", r, scd30.CelsiusToFahrenheit(r.Temperature), scd30.CelsiusToKelvin(r.Temperature)), nil
}

func interval(dev *scd30.Dev, args []string) (string, error) {
	s, set, err := optionalArg(args, "interval")
	if err != nil {
		return "", err
	}
	if set {
		return "OK", dev.SetMeasurementInterval(time.Duration(s) * time.Second)
	}
	d, err := dev.MeasurementInterval()
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

func asc(dev *scd30.Dev, args []string) (string, error) {
	if len(args) == 0 {
		on, err := dev.AutomaticSelfCalibration()
		if err != nil {
			return "", err
		}
		if on {
			return "on", nil
		}
		return "off", nil
	}
	switch strings.ToLower(args[0]) {
	case "on", "1", "true":
		return "OK", dev.SetAutomaticSelfCalibration(true)
	case "off", "0", "false":
		return "OK", dev.SetAutomaticSelfCalibration(false)
	default:
		return "", errors.Errorf("expected on or off, got %q", args[0])
	}
}

func frc(dev *scd30.Dev, args []string) (string, error) {
	ppm, set, err := optionalArg(args, "concentration")
	if err != nil {
		return "", err
	}
	if set {
		return "OK", dev.SetForcedRecalibration(scd30.PPM(ppm))
	}
	v, err := dev.ForcedRecalibration()
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func offset(dev *scd30.Dev, args []string) (string, error) {
	if len(args) > 0 {
		c, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return "", errors.Errorf("invalid offset %q", args[0])
		}
		// Round to the millikelvin, the driver truncates to 0.01°C.
		mk := int64(c*1000 + 0.5)
		if c < 0 {
			mk = int64(c*1000 - 0.5)
		}
		return "OK", dev.SetTemperatureOffset(physic.Temperature(mk) * physic.MilliKelvin)
	}
	v, err := dev.TemperatureOffset()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%.2f°C", float64(v)/float64(physic.Celsius)), nil
}

func altitude(dev *scd30.Dev, args []string) (string, error) {
	m, set, err := optionalArg(args, "altitude")
	if err != nil {
		return "", err
	}
	if set {
		return "OK", dev.SetAltitudeCompensation(physic.Distance(m) * physic.Metre)
	}
	v, err := dev.AltitudeCompensation()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%dm", int64(v/physic.Metre)), nil
}

func pressure(dev *scd30.Dev, args []string) (string, error) {
	mbar, set, err := optionalArg(args, "pressure")
	if err != nil {
		return "", err
	}
	if !set {
		return "", errors.New("pressure in mbar expected")
	}
	return "OK", dev.SetAmbientPressure(physic.Pressure(mbar) * 100 * physic.Pascal)
}

func firmware(dev *scd30.Dev, args []string) (string, error) {
	v, err := dev.FirmwareVersion()
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func reset(dev *scd30.Dev, args []string) (string, error) {
	return "OK", dev.SoftReset()
}

func printConfig(dev *scd30.Dev, args []string) (string, error) {
	cfg, err := dev.GetConfiguration()
	if err != nil {
		return "", err
	}
	lines := map[string]string{
		"interval": cfg.MeasurementInterval.String(),
		"asc":      strconv.FormatBool(cfg.ASCEnabled),
		"frc":      cfg.ForcedRecalibration.String(),
		"offset":   fmt.Sprintf("%.2f°C", float64(cfg.TemperatureOffset)/float64(physic.Celsius)),
		"altitude": fmt.Sprintf("%dm", int64(cfg.SensorAltitude/physic.Metre)),
		"firmware": cfg.Firmware.String(),
		"state":    dev.State().String(),
	}
	keys := make([]string, 0, len(lines))
	for k := range lines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-9s %s", k+":", lines[k])
	}
	return b.String(), nil
}
