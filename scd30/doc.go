// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package scd30 provides a driver for the Sensirion SCD30 CO2 sensor module.
// The SCD30 measures CO2 concentration with an NDIR cell and carries an
// onboard temperature and humidity sensor used for compensation. All three
// values are reported as IEEE-754 floats.
//
// The sensor talks I²C at address 0x61. Every command is a 16-bit word. Commands
// that take a parameter append a 16-bit argument and the CRC8 of the argument.
// Register reads are performed as a write of the command word followed by a
// separate read.
//
// The driver can optionally be told about the RDY pin of the module. The pin
// goes high when a new measurement is available. See Dev.AttachExternalInterrupt.
//
// Refer to the interface description for more information.
//
// https://sensirion.com/media/documents/D7CEEF4A/6165372F/Sensirion_CO2_Sensors_SCD30_Interface_Description.pdf
package scd30
