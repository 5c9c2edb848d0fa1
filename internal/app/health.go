// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package app

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// HandleHealth returns data about the health of the daemon and the sensor.
// output example:
//
//	{"NumGoroutines":11,"NumCPU":4,"HeapAllocatedBytes":332256,"HeapAllocatedMB":0,
//	 "SysMemoryBytes":360290312,"SysMemoryMB":343,"Version":"1.0.3+20250301",
//	 "ProgLang":"go1.22.2","HostName":"pi","Time":"2025-03-01T12:00:00Z",
//	 "SensorState":"measuring","Reads":120,"Failures":2,"LastRead":"2025-03-01T11:59:58Z"}
func (app *App) HandleHealth() fiber.Handler {
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}

	host, _ := os.Hostname()

	return func(ctx *fiber.Ctx) error {
		log.Debug("web request health")

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		hab := m.Alloc
		smb := m.Sys
		_, at, ok := app.Last()
		reads, failures := app.Counters()

		healthData := struct {
			NumGoroutines      int
			NumCPU             int
			HeapAllocatedBytes uint64
			HeapAllocatedMB    uint64
			SysMemoryBytes     uint64
			SysMemoryMB        uint64
			Version            string
			ProgLang           string
			HostName           string
			Time               string
			SensorState        string
			Reads              uint64
			Failures           uint64
			LastRead           string `json:",omitempty"`
		}{
			NumGoroutines:      runtime.NumGoroutine(),
			NumCPU:             runtime.NumCPU(),
			HeapAllocatedBytes: hab,
			HeapAllocatedMB:    bToMb(hab),
			SysMemoryBytes:     smb,
			SysMemoryMB:        bToMb(smb),
			ProgLang:           runtime.Version(),
			Version:            VERSION,
			HostName:           host,
			Time:               time.Now().Format(time.RFC3339),
			SensorState:        app.dev.State().String(),
			Reads:              reads,
			Failures:           failures,
		}
		if ok {
			healthData.LastRead = at.Format(time.RFC3339)
		}
		ctx.Status(http.StatusOK)
		return ctx.JSON(healthData)
	}
}
