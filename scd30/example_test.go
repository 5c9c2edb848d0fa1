//go:build examples
// +build examples

// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scd30_test

import (
	"fmt"
	"log"

	"github.com/GermanBionicSystems/co2devices/scd30"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// basic example program for scd30 sensors using this library.
//
// To execute this as a stand-alone program:
//
// Copy the file example_test.go to a new directory.
// rename the file to main.go
// rename the Example() function to main, and the package to main
//
// execute:
//
//	go mod init mydomain.com/scd30
//	go mod tidy
//	go build -o main main.go
//	./main
func Example() {
	fmt.Println("scd30 example program")
	if _, err := host.Init(); err != nil {
		fmt.Println(err)
	}
	bus, err := i2creg.Open("")
	if err != nil {
		log.Fatal(err)
	}
	dev, err := scd30.NewI2C(bus, scd30.SensorAddress, nil)
	if err != nil {
		log.Fatal(err)
	}

	env := scd30.Env{}
	err = dev.Sense(&env)
	if err == nil {
		fmt.Println(env.String())
	} else {
		fmt.Println(err)
	}

	cfg, err := dev.GetConfiguration()
	if err == nil {
		fmt.Printf("Configuration: %#v\n", cfg)
	} else {
		fmt.Println(err)
	}
	_ = dev.Halt()
	// Output: Temperature: 23.1°C Humidity: 48%rH CO2: 513 PPM
	// Configuration: &scd30.DevConfig{MeasurementInterval:2000000000, ASCEnabled:true, ForcedRecalibration:400, TemperatureOffset:0, SensorAltitude:0, Firmware:scd30.FirmwareVersion{Major:0x3, Minor:0x42}}
}

// Reading on the RDY interrupt instead of polling the data ready status.
func Example_interrupt() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	bus, err := i2creg.Open("")
	if err != nil {
		log.Fatal(err)
	}
	dev, err := scd30.NewI2C(bus, scd30.SensorAddress, nil)
	if err != nil {
		log.Fatal(err)
	}
	if err := dev.Begin(); err != nil {
		log.Fatal(err)
	}
	pin := gpioreg.ByName("GPIO17")
	if pin == nil {
		log.Fatal("no RDY pin")
	}
	ready := make(chan struct{}, 1)
	err = dev.AttachExternalInterrupt(&scd30.PinEdge{Pin: pin}, func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	if err != nil {
		log.Fatal(err)
	}
	defer dev.Halt()
	for n := 0; n < 3; n++ {
		<-ready
		r, err := dev.ReadMeasurement()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(r)
	}
}
