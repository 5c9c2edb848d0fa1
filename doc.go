// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package co2devices is a container for the Sensirion SCD30 driver and the
// small set of packages used to run it as a service.
//
// The driver lives in scd30. The common package holds the Sensirion CRC8,
// co2bar and badge render readings, gpiodedge delivers RDY pin interrupts on
// Linux character-device GPIO, and cmd/scd30 ties everything together.
package co2devices
