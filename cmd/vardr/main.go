/*
 * vardr - scheduled collector
 *
 * Copyright (c) 2024 Telenor Norge AS
 *
 * This library is free software; you can redistribute it and/or
 * modify it under the terms of the GNU Lesser General Public
 * License as published by the Free Software Foundation; either
 * version 2.1 of the License, or (at your option) any later version.
 *
 * This library is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
 * Lesser General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public
 * License along with this library; if not, write to the Free Software
 * Foundation, Inc., 51 Franklin Street, Fifth Floor, Boston, MA
 * 02110-1301  USA
 */

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telenornms/vardr"
	"github.com/telenornms/vardr/collect"
	"github.com/telenornms/vardr/inventory"
	"github.com/telenornms/vardr/store"
)

func main() {
	var configFile, device string
	var once, debug bool
	flag.StringVar(&configFile, "f", "/etc/vardr/vardr.yaml", "config file")
	flag.StringVar(&device, "device", "", "collect only this inventory device")
	flag.BoolVar(&once, "once", false, "run one sweep and exit")
	flag.BoolVar(&debug, "debug", false, "enable debug")
	flag.Parse()

	cfg, err := vardr.ParseFile(configFile)
	if err != nil {
		vardr.Fatalf("Couldn't parse config: %s", err)
	}
	if debug {
		cfg.Debug = true
	}
	vardr.Init(cfg.Debug)
	vardr.Debugf("Read config file: %s", configFile)

	st, err := store.Open(cfg.Database)
	if err != nil {
		vardr.Fatalf("Couldn't open store: %s", err)
	}
	defer st.Close()

	e, err := collect.New(cfg, st)
	if err != nil {
		vardr.Fatalf("Couldn't initialize engine: %s", err)
	}

	devices, err := inventory.Load(cfg.Inventory)
	if err != nil {
		vardr.Fatalf("Couldn't load inventory: %s", err)
	}
	if device != "" {
		var match []inventory.Device
		for _, d := range devices {
			if d.Name == device {
				match = append(match, d)
			}
		}
		if len(match) == 0 {
			vardr.Fatalf("device %s not in inventory", device)
		}
		devices = match
	}
	vardr.Logf("Loaded %d devices", len(devices))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		vardr.Logf("Got %v, finishing current sweep then exiting", s)
		cancel()
	}()

	if _, err := e.Collect(ctx, devices); err != nil {
		vardr.Fatalf("sweep failed: %s", err)
	}
	if once {
		return
	}

	ticker := time.NewTicker(cfg.CollectionInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Collect(ctx, devices); err != nil {
				vardr.Logf("sweep failed: %s", err)
			}
		}
	}
}
