// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/relabs-tech/gait_computer/internal/link/ble"
)

// RunScan lists BLE advertisements for timeout, optionally only names
// containing filter.
func RunScan(timeout time.Duration, filter string) error {
	radio := ble.NewRadio(timeout, nil)
	log.Printf("scan: listening for %v", timeout)

	n := 0
	err := radio.Scan(context.Background(), func(a ble.Advertisement) {
		if filter != "" && !strings.Contains(a.Name, filter) {
			return
		}
		n++
		name := a.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%-20s  %s  rssi=%d\n", name, a.Address, a.RSSI)
	})
	if err != nil {
		return err
	}
	log.Printf("scan: %d devices", n)
	return nil
}
