// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scd30

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// PPM=Parts Per Million. Units of measure for CO2 concentration.
type PPM int

func (ppm PPM) String() string {
	return fmt.Sprintf("%d PPM", int(ppm))
}

// State is the measurement state of the sensor as last commanded by this
// driver.
type State int

const (
	// No start measurement command has been sent yet.
	StateUninitialized State = iota
	StateMeasuring
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateMeasuring:
		return "measuring"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	minInterval = 2 * time.Second
	maxInterval = 1800 * time.Second

	minFRC PPM = 400
	maxFRC PPM = 2000

	// Ambient pressure values outside of this range disable compensation.
	minPressureMbar = 700
	maxPressureMbar = 1200

	offsetTick = 10 * physic.MilliKelvin
	mbar       = 100 * physic.Pascal
)

// Opts holds the configuration options for the device.
type Opts struct {
	// MeasurementInterval is written by Begin. Default is 2s, valid range is
	// 2s to 30 minutes.
	MeasurementInterval time.Duration
	// ReadDelay is the pause between writing a command and reading its
	// response. Default is 3ms, a negative value disables it.
	ReadDelay time.Duration
	// PollInterval is how often Sense polls the data ready status. Default
	// is 250ms.
	PollInterval time.Duration
	// ReadyTimeout bounds how long Sense waits for data. Default is twice the
	// measurement interval plus one second.
	ReadyTimeout time.Duration
	// VerifyChecksums enables CRC checking of the measurement frame. The
	// frame is decoded without looking at the CRC bytes otherwise.
	VerifyChecksums bool
}

// DefaultOpts holds the default configuration options for the device.
var DefaultOpts = Opts{
	MeasurementInterval: minInterval,
	ReadDelay:           3 * time.Millisecond,
	PollInterval:        250 * time.Millisecond,
}

// Reading is one decoded measurement. Values are exactly as sent by the
// sensor.
type Reading struct {
	// CO2 concentration in ppm.
	CO2 float32
	// Temperature in °C.
	Temperature float32
	// Relative humidity in %RH.
	Humidity float32
}

func (r Reading) String() string {
	return fmt.Sprintf("CO2: %.1f ppm Temperature: %.2f°C Humidity: %.2f%%rH", r.CO2, r.Temperature, r.Humidity)
}

// Env converts the reading into periph units. CO2 is rounded to the nearest
// ppm.
func (r Reading) Env() Env {
	e := Env{CO2: PPM(math.Round(float64(r.CO2)))}
	e.Temperature = physic.ZeroCelsius + physic.Temperature(float64(r.Temperature)*float64(physic.Celsius))
	e.Humidity = physic.RelativeHumidity(float64(r.Humidity) * float64(physic.PercentRH))
	return e
}

// CelsiusToFahrenheit converts a temperature in °C to °F.
func CelsiusToFahrenheit(c float32) float64 {
	return float64(c)*1.8 + 32
}

// CelsiusToKelvin converts a temperature in °C to K.
func CelsiusToKelvin(c float32) float64 {
	return float64(c) + 273.15
}

// The sensor reading. Returns CO2 PPM, Temperature, and Humidity.
type Env struct {
	physic.Env
	CO2 PPM
}

// Return the sensor readings in string format.
func (e *Env) String() string {
	return fmt.Sprintf("Temperature: %s Humidity: %s CO2: %s", e.Temperature.String(), e.Humidity.String(), e.CO2.String())
}

// FirmwareVersion is the version reported by the sensor.
type FirmwareVersion struct {
	Major uint8
	Minor uint8
}

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// DevConfig is the configuration persisted by the sensor. Use
// Dev.GetConfiguration() to read the value, and Dev.SetConfiguration() to
// apply changes. The sensor keeps these values across power cycles.
type DevConfig struct {
	// Time between two measurements.
	MeasurementInterval time.Duration
	// Automatic-Self-Calibration enabled. True or false.
	ASCEnabled bool
	// Last forced recalibration reference value. Writing a value outside of
	// 400-2000 ppm is rejected.
	ForcedRecalibration PPM
	// Offset subtracted from the onboard temperature reading.
	TemperatureOffset physic.Temperature
	// Height over sea level used for pressure compensation.
	SensorAltitude physic.Distance
	// Read-Only
	Firmware FirmwareVersion
}

// Dev represents an SCD30 device.
type Dev struct {
	// The i2c bus device.
	d    *i2c.Dev
	opts Opts
	// mu serializes bus transactions and guards the fields below it.
	mu     sync.Mutex
	state  State
	chHalt chan struct{}
	detach func() error
	// last is replaced as a whole on every decoded frame.
	last atomic.Pointer[Reading]
}

// NewI2C returns a Dev that communicates over I²C with an SCD30. The constant
// SensorAddress should be supplied as the value for addr. The Opts can be
// nil. Nothing is written to the bus until Begin or another command is used.
func NewI2C(b i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.MeasurementInterval == 0 {
		o.MeasurementInterval = DefaultOpts.MeasurementInterval
	}
	if err := checkInterval(o.MeasurementInterval); err != nil {
		return nil, err
	}
	if o.ReadDelay == 0 {
		o.ReadDelay = DefaultOpts.ReadDelay
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultOpts.PollInterval
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = 2*o.MeasurementInterval + time.Second
	}
	return &Dev{d: &i2c.Dev{Bus: b, Addr: addr}, opts: o}, nil
}

// Begin starts continuous measurement without pressure compensation and sets
// the measurement interval from Opts.
func (d *Dev) Begin() error {
	if err := d.StartMeasurement(0); err != nil {
		return err
	}
	return d.SetMeasurementInterval(d.opts.MeasurementInterval)
}

// StartMeasurement starts continuous measurement. The sensor stores this
// state and keeps measuring after a power cycle. A pressure of 0, or one
// outside 700-1200 mBar, disables pressure compensation.
func (d *Dev) StartMeasurement(ambientPressure physic.Pressure) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(CmdStartMeasurement, pressureArg(ambientPressure)); err != nil {
		return err
	}
	d.state = StateMeasuring
	return nil
}

// SetAmbientPressure updates the pressure compensation. Values outside of
// 700-1200 mBar are sent as 0 which disables compensation. The sensor only
// accepts the value with the start measurement command, so this also starts
// measuring.
func (d *Dev) SetAmbientPressure(p physic.Pressure) error {
	return d.StartMeasurement(p)
}

// StopMeasurement stops continuous measurement. Use StartMeasurement or Begin
// to resume.
func (d *Dev) StopMeasurement() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(CmdStopMeasurement); err != nil {
		return err
	}
	d.state = StateStopped
	return nil
}

// State returns the measurement state as last commanded by this Dev.
func (d *Dev) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SoftReset restarts the sensor. Persisted settings are kept.
func (d *Dev) SoftReset() error {
	return d.SendCommand(CmdSoftReset)
}

// SetMeasurementInterval sets the time between measurements, 2s to 1800s.
// Fractions of a second are truncated.
func (d *Dev) SetMeasurementInterval(interval time.Duration) error {
	if err := checkInterval(interval); err != nil {
		return err
	}
	return d.SendCommandWithArgument(CmdMeasurementInterval, uint16(interval/time.Second))
}

// MeasurementInterval returns the interval stored by the sensor.
func (d *Dev) MeasurementInterval() (time.Duration, error) {
	v, err := d.ReadRegister(CmdMeasurementInterval)
	return time.Duration(v) * time.Second, err
}

// SetAutomaticSelfCalibration enables or disables automatic self
// calibration.
func (d *Dev) SetAutomaticSelfCalibration(enabled bool) error {
	var arg uint16
	if enabled {
		arg = 1
	}
	return d.SendCommandWithArgument(CmdSelfCalibration, arg)
}

// AutomaticSelfCalibration returns true if automatic self calibration is
// enabled.
func (d *Dev) AutomaticSelfCalibration() (bool, error) {
	v, err := d.ReadRegister(CmdSelfCalibration)
	return err == nil && v == 1, err
}

// SetForcedRecalibration sets the reference CO2 concentration. The sensor
// must have been running in a stable environment at that concentration for a
// couple of minutes. Values outside of 400-2000 ppm are not sent.
func (d *Dev) SetForcedRecalibration(concentration PPM) error {
	if err := checkFRC(concentration); err != nil {
		return err
	}
	return d.SendCommandWithArgument(CmdForcedRecalibration, uint16(concentration))
}

// ForcedRecalibration returns the last forced recalibration value.
func (d *Dev) ForcedRecalibration() (PPM, error) {
	v, err := d.ReadRegister(CmdForcedRecalibration)
	return PPM(v), err
}

// SetTemperatureOffset sets the offset applied to the onboard temperature
// sensor. The sensor works in ticks of 0.01°C, finer values are truncated.
func (d *Dev) SetTemperatureOffset(offset physic.Temperature) error {
	ticks, err := offsetTicks(offset)
	if err != nil {
		return err
	}
	return d.SendCommandWithArgument(CmdTemperatureOffset, ticks)
}

// TemperatureOffset returns the offset stored by the sensor.
func (d *Dev) TemperatureOffset() (physic.Temperature, error) {
	v, err := d.ReadRegister(CmdTemperatureOffset)
	return physic.Temperature(v) * offsetTick, err
}

// SetAltitudeCompensation sets the height of the sensor over sea level, in
// whole metres.
func (d *Dev) SetAltitudeCompensation(altitude physic.Distance) error {
	m, err := altitudeMetres(altitude)
	if err != nil {
		return err
	}
	return d.SendCommandWithArgument(CmdAltitudeCompensation, m)
}

// AltitudeCompensation returns the altitude stored by the sensor.
func (d *Dev) AltitudeCompensation() (physic.Distance, error) {
	v, err := d.ReadRegister(CmdAltitudeCompensation)
	return physic.Distance(v) * physic.Metre, err
}

// FirmwareVersion reads the firmware version. The high byte of the register
// is the major version.
func (d *Dev) FirmwareVersion() (FirmwareVersion, error) {
	v, err := d.ReadRegister(CmdFirmwareVersion)
	if err != nil {
		return FirmwareVersion{}, err
	}
	return FirmwareVersion{Major: uint8(v >> 8), Minor: uint8(v)}, nil
}

// GetConfiguration returns a structure containing all of the scd30
// configuration variables. You can then alter settings and call
// SetConfiguration with it.
func (d *Dev) GetConfiguration() (*DevConfig, error) {
	cfg := &DevConfig{}
	var err error
	if cfg.MeasurementInterval, err = d.MeasurementInterval(); err != nil {
		return nil, err
	}
	if cfg.ASCEnabled, err = d.AutomaticSelfCalibration(); err != nil {
		return nil, err
	}
	if cfg.ForcedRecalibration, err = d.ForcedRecalibration(); err != nil {
		return nil, err
	}
	if cfg.TemperatureOffset, err = d.TemperatureOffset(); err != nil {
		return nil, err
	}
	if cfg.SensorAltitude, err = d.AltitudeCompensation(); err != nil {
		return nil, err
	}
	if cfg.Firmware, err = d.FirmwareVersion(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetConfiguration writes the settings of newCfg that differ from the ones
// currently stored by the sensor. The forced recalibration value is only
// written when it changed, since writing it triggers a recalibration. Every
// changed setting is validated before the first write, an invalid one leaves
// the sensor untouched.
func (d *Dev) SetConfiguration(newCfg *DevConfig) error {
	current, err := d.GetConfiguration()
	if err != nil {
		return fmt.Errorf("scd30 GetConfiguration(): %w", err)
	}
	if err := current.checkChanges(newCfg); err != nil {
		return err
	}
	if current.MeasurementInterval != newCfg.MeasurementInterval {
		if err := d.SetMeasurementInterval(newCfg.MeasurementInterval); err != nil {
			return err
		}
	}
	if current.ASCEnabled != newCfg.ASCEnabled {
		if err := d.SetAutomaticSelfCalibration(newCfg.ASCEnabled); err != nil {
			return err
		}
	}
	if current.ForcedRecalibration != newCfg.ForcedRecalibration {
		if err := d.SetForcedRecalibration(newCfg.ForcedRecalibration); err != nil {
			return err
		}
	}
	if current.TemperatureOffset != newCfg.TemperatureOffset {
		if err := d.SetTemperatureOffset(newCfg.TemperatureOffset); err != nil {
			return err
		}
	}
	if current.SensorAltitude != newCfg.SensorAltitude {
		if err := d.SetAltitudeCompensation(newCfg.SensorAltitude); err != nil {
			return err
		}
	}
	return nil
}

// Last returns the cached reading without touching the bus. It is the zero
// Reading until a frame has been decoded.
func (d *Dev) Last() Reading {
	if r := d.last.Load(); r != nil {
		return *r
	}
	return Reading{}
}

// refresh reads a new frame if the sensor has one ready. The cache is left
// alone otherwise.
func (d *Dev) refresh() error {
	_, _, err := d.readIfReady()
	return err
}

// ReadAll refreshes the cache if new data is ready and returns it. On error
// the previous reading is returned along with the error.
func (d *Dev) ReadAll() (Reading, error) {
	err := d.refresh()
	return d.Last(), err
}

// CO2 returns the latest CO2 concentration in ppm. Like all the single value
// getters it checks the data ready status first and reads a new frame when
// one is available. The cached value is returned when no new data is ready or
// the refresh failed, in which case err is set.
func (d *Dev) CO2() (float32, error) {
	r, err := d.ReadAll()
	return r.CO2, err
}

// Humidity returns the latest relative humidity in %RH.
func (d *Dev) Humidity() (float32, error) {
	r, err := d.ReadAll()
	return r.Humidity, err
}

// TemperatureC returns the latest temperature in °C.
func (d *Dev) TemperatureC() (float32, error) {
	r, err := d.ReadAll()
	return r.Temperature, err
}

// TemperatureF returns the latest temperature in °F.
func (d *Dev) TemperatureF() (float64, error) {
	c, err := d.TemperatureC()
	return CelsiusToFahrenheit(c), err
}

// TemperatureK returns the latest temperature in K.
func (d *Dev) TemperatureK() (float64, error) {
	c, err := d.TemperatureC()
	return CelsiusToKelvin(c), err
}

// Sense returns readings (Temperature, Humidity, and CO2 concentration in PPM)
// from the device. Measurement is started with Begin if it isn't running. It
// blocks until the sensor has data ready or Opts.ReadyTimeout elapses.
func (d *Dev) Sense(env *Env) error {
	if d.State() != StateMeasuring {
		if err := d.Begin(); err != nil {
			*env = Env{}
			return err
		}
	}
	return d.sense(env, nil)
}

// sense waits for the data ready status and reads the frame. Measurement must
// already be running. The bus is only locked for each exchange so Halt and
// other callers are not held up while waiting. Closing halt aborts the wait.
func (d *Dev) sense(env *Env, halt <-chan struct{}) error {
	*env = Env{}
	cutoff := time.Now().Add(d.opts.ReadyTimeout)
	for {
		r, ready, err := d.readIfReady()
		if err != nil {
			return err
		}
		if ready {
			*env = r.Env()
			return nil
		}
		if time.Now().After(cutoff) {
			return errors.New("scd30: timeout waiting for data ready status")
		}
		select {
		case <-halt:
			return errors.New("scd30: halted")
		case <-time.After(d.opts.PollInterval):
		}
	}
}

func (d *Dev) readIfReady() (Reading, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ready, err := d.dataReady()
	if err != nil || !ready {
		return Reading{}, false, err
	}
	r, err := d.readMeasurement()
	return r, err == nil, err
}

// SenseContinuous reads the sensor on the specified interval and writes
// readings to the returned channel. Readings are dropped when the channel is
// full. To terminate a continuous sense, call Halt().
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan Env, error) {
	d.mu.Lock()
	if d.chHalt != nil {
		d.mu.Unlock()
		return nil, errors.New("scd30: SenseContinuous() running already")
	}
	halt := make(chan struct{})
	d.chHalt = halt
	d.mu.Unlock()

	if d.State() != StateMeasuring {
		if err := d.Begin(); err != nil {
			d.mu.Lock()
			d.chHalt = nil
			d.mu.Unlock()
			return nil, err
		}
	}

	channelSize := 16
	channel := make(chan Env, channelSize)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(channel)
		for {
			select {
			case <-halt:
				return
			case <-ticker.C:
				e := Env{}
				if err := d.sense(&e, halt); err == nil {
					select {
					case channel <- e:
					default:
					}
				}
			}
		}
	}()
	return channel, nil
}

// Halt stops a running SenseContinuous, detaches the RDY interrupt and stops
// measurement if this Dev started it.
func (d *Dev) Halt() error {
	d.mu.Lock()
	if d.chHalt != nil {
		close(d.chHalt)
		d.chHalt = nil
	}
	detach := d.detach
	d.detach = nil
	var err error
	if d.state == StateMeasuring {
		if err = d.write(CmdStopMeasurement); err == nil {
			d.state = StateStopped
		}
	}
	d.mu.Unlock()

	if detach != nil {
		if derr := detach(); err == nil {
			err = derr
		}
	}
	return err
}

// Precision returns the sensor's resolution. The temperature offset is set in
// steps of 0.01°C, humidity is reported to 0.01%RH and CO2 to 1 PPM.
func (d *Dev) Precision(env *Env) {
	env.Temperature = offsetTick
	env.Pressure = 0
	env.Humidity = physic.PercentRH / 100
	env.CO2 = 1
}

func (d *Dev) String() string {
	return fmt.Sprintf("scd30: %s", d.d.String())
}

func checkInterval(interval time.Duration) error {
	if interval < minInterval || interval > maxInterval {
		return &ValidationError{Setting: "measurement interval", Value: int64(interval / time.Second), Min: int64(minInterval / time.Second), Max: int64(maxInterval / time.Second), Unit: "s"}
	}
	return nil
}

func checkFRC(concentration PPM) error {
	if concentration < minFRC || concentration > maxFRC {
		return &ValidationError{Setting: "forced recalibration value", Value: int64(concentration), Min: int64(minFRC), Max: int64(maxFRC), Unit: "ppm"}
	}
	return nil
}

func offsetTicks(offset physic.Temperature) (uint16, error) {
	ticks := int64(offset / offsetTick)
	if ticks < 0 || ticks > math.MaxUint16 {
		return 0, &ValidationError{Setting: "temperature offset", Value: ticks, Min: 0, Max: math.MaxUint16, Unit: " x 0.01°C"}
	}
	return uint16(ticks), nil
}

func altitudeMetres(altitude physic.Distance) (uint16, error) {
	m := int64(altitude / physic.Metre)
	if m < 0 || m > math.MaxUint16 {
		return 0, &ValidationError{Setting: "altitude", Value: m, Min: 0, Max: math.MaxUint16, Unit: "m"}
	}
	return uint16(m), nil
}

// checkChanges validates the settings of newCfg that differ from cfg.
func (cfg *DevConfig) checkChanges(newCfg *DevConfig) error {
	if cfg.MeasurementInterval != newCfg.MeasurementInterval {
		if err := checkInterval(newCfg.MeasurementInterval); err != nil {
			return err
		}
	}
	if cfg.ForcedRecalibration != newCfg.ForcedRecalibration {
		if err := checkFRC(newCfg.ForcedRecalibration); err != nil {
			return err
		}
	}
	if cfg.TemperatureOffset != newCfg.TemperatureOffset {
		if _, err := offsetTicks(newCfg.TemperatureOffset); err != nil {
			return err
		}
	}
	if cfg.SensorAltitude != newCfg.SensorAltitude {
		if _, err := altitudeMetres(newCfg.SensorAltitude); err != nil {
			return err
		}
	}
	return nil
}

// pressureArg converts p to the mBar argument of the start measurement
// command.
func pressureArg(p physic.Pressure) uint16 {
	m := int64(p / mbar)
	if m < minPressureMbar || m > maxPressureMbar {
		return 0
	}
	return uint16(m)
}
