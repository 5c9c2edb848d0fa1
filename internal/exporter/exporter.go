// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package exporter exposes SCD30 readings as Prometheus metrics.
package exporter

import (
	"io"
	"time"

	"github.com/GermanBionicSystems/co2devices/scd30"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// ContentType is the content type of WriteText output.
const ContentType = string(expfmt.FmtText)

// Exporter holds the metrics of one sensor in its own registry.
type Exporter struct {
	registry *prometheus.Registry

	co2         prometheus.Gauge
	temperature prometheus.Gauge
	humidity    prometheus.Gauge
	lastRead    prometheus.Gauge
	reads       *prometheus.CounterVec
}

func newGauge(name, help, sensor string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"sensor": sensor},
	})
}

// New creates the metrics for the sensor identified by sensor, typically the
// bus and address.
func New(sensor string) *Exporter {
	e := &Exporter{
		registry:    prometheus.NewRegistry(),
		co2:         newGauge("air_co2_level", "Air Carbon Dioxide level (units: ppm)", sensor),
		temperature: newGauge("air_temperature", "Air Temperature (units: degrees Celsius)", sensor),
		humidity:    newGauge("air_humidity", "Humidity (units: % of relative Humidity)", sensor),
		lastRead:    newGauge("scd30_last_read_timestamp_seconds", "Time of the last successful read", sensor),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "scd30_reads_total",
			Help:        "Sensor reads by result",
			ConstLabels: prometheus.Labels{"sensor": sensor},
		}, []string{"result"}),
	}
	e.registry.MustRegister(e.co2, e.temperature, e.humidity, e.lastRead, e.reads)
	e.registry.MustRegister(prometheus.NewBuildInfoCollector())
	return e
}

// Observe records a successful reading.
func (e *Exporter) Observe(r scd30.Reading, at time.Time) {
	e.co2.Set(float64(r.CO2))
	e.temperature.Set(float64(r.Temperature))
	e.humidity.Set(float64(r.Humidity))
	e.lastRead.Set(float64(at.UnixNano()) / 1e9)
	e.reads.WithLabelValues("ok").Inc()
}

// Failure counts a failed read. The gauges keep their last value.
func (e *Exporter) Failure() {
	e.reads.WithLabelValues("error").Inc()
}

// Gatherer returns the registry holding the metrics.
func (e *Exporter) Gatherer() prometheus.Gatherer {
	return e.registry
}

// WriteText writes all metrics in the Prometheus text exposition format.
func (e *Exporter) WriteText(w io.Writer) error {
	mfs, err := e.registry.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrapf(err, "writing %s", mf.GetName())
		}
	}
	return nil
}
