/*
 * vardr collection engine
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

/*
Package collect is the orchestrator: it fans a device list out over a
worker pool, drives each device through session, rib parsing, change
detection and persistence, and keeps one device's failure from
touching any other device's run.
*/
package collect

import (
	"context"
	"fmt"
	"time"

	"github.com/telenornms/skogul"
	sconfig "github.com/telenornms/skogul/config"
	"github.com/telenornms/vardr"
	"github.com/telenornms/vardr/detect"
	"github.com/telenornms/vardr/inventory"
	"github.com/telenornms/vardr/mib"
	"github.com/telenornms/vardr/probe"
	"github.com/telenornms/vardr/rib"
	"github.com/telenornms/vardr/session"
	"github.com/telenornms/vardr/store"
)

// Conn is what the engine needs from a device session: run commands,
// then tear down.
type Conn interface {
	vardr.Runner
	Finalize()
}

// Dialer opens a session to a device. Swapped out in tests for a fake
// that replays canned CLI output.
type Dialer func(target, user, password string, timeout time.Duration) (Conn, error)

// Engine is semi-global state for collection: config, store, the
// session dialer and the optional skogul output.
type Engine struct {
	Config *vardr.Config
	Store  *store.Store
	Dial   Dialer
	Mib    *mib.Config
	output *sconfig.Config
}

// Failure describes one device that didn't complete.
type Failure struct {
	Device string
	Reason string
	Err    error
}

// Report sums up one collection sweep.
type Report struct {
	Succeeded   int
	Failed      []Failure
	TotalRoutes int
	Elapsed     time.Duration
}

// New builds an engine: opens nothing, but loads the skogul output
// config and the MIBs up front so misconfiguration surfaces at
// startup, not mid-sweep.
func New(cfg *vardr.Config, st *store.Store) (*Engine, error) {
	e := &Engine{
		Config: cfg,
		Store:  st,
		Dial: func(target, user, password string, timeout time.Duration) (Conn, error) {
			return session.New(target, user, password, timeout)
		},
		Mib: &mib.Config{Modules: cfg.MibModules, Paths: cfg.MibPaths},
	}
	if cfg.OutputConfig != "" {
		var err error
		e.output, err = sconfig.Path(cfg.OutputConfig)
		if err != nil {
			return nil, fmt.Errorf("skogul-config failed loading: %w", err)
		}
		if e.output.Handlers["vardr"] == nil {
			return nil, fmt.Errorf("missing vardr handler in skogul config")
		}
	}
	if err := e.Mib.Init(); err != nil {
		return nil, fmt.Errorf("failed to load mibs: %w", err)
	}
	return e, nil
}

// Collect runs one sweep over the device list. Device failures are
// collected in the report; only systemic problems (a dead store) come
// back as an error.
func (e *Engine) Collect(ctx context.Context, devices []inventory.Device) (*Report, error) {
	start := time.Now()
	if err := e.Store.Ping(ctx); err != nil {
		return nil, err
	}
	rep := &Report{}
	workers := e.Config.Workers
	if workers > len(devices) {
		workers = len(devices)
	}
	if workers < 1 {
		workers = 1
	}

	ch := make(chan inventory.Device, len(devices))
	results := make(chan Failure, len(devices))
	routes := make(chan int, len(devices))
	for i := 0; i < workers; i++ {
		go e.worker(ctx, fmt.Sprintf("%2d", i), ch, results, routes)
	}
	for _, d := range devices {
		ch <- d
	}
	close(ch)
	for range devices {
		select {
		case f := <-results:
			rep.Failed = append(rep.Failed, f)
		case n := <-routes:
			rep.Succeeded++
			rep.TotalRoutes += n
		}
	}
	rep.Elapsed = time.Since(start)
	vardr.Logf("sweep done: %d ok, %d failed, %d routes, %v",
		rep.Succeeded, len(rep.Failed), rep.TotalRoutes, rep.Elapsed.Round(time.Millisecond))
	return rep, nil
}

func (e *Engine) worker(ctx context.Context, id string, ch chan inventory.Device, results chan Failure, routes chan int) {
	for d := range ch {
		n, err := e.Device(ctx, d)
		if err != nil {
			vardr.Logf("[%s]: %-15s FAIL: %v", id, d.Name, err)
			results <- Failure{Device: d.Name, Reason: vardr.Reason(err), Err: err}
			continue
		}
		vardr.Logf("[%s]: %-15s OK, %d routes", id, d.Name, n)
		routes <- n
	}
}

// Device collects one device end to end and returns the route count.
// The whole run shares one deadline; whatever it was doing when the
// deadline hits is where it stops.
func (e *Engine) Device(ctx context.Context, d inventory.Device) (int, error) {
	if err := inventory.Lock(d.Name); err != nil {
		return 0, err
	}
	defer inventory.Unlock(d.Name)

	started := time.Now().UTC()
	deviceID, err := e.Store.UpsertDevice(ctx, d)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.Config.DeviceTimeout())
	defer cancel()

	if d.Vendor == "" && d.Platform == "" {
		e.identify(&d)
	}

	snap, err := e.snapshot(ctx, d)
	if err == nil {
		err = e.commit(ctx, deviceID, d, snap)
	}
	if err != nil {
		// The device deadline may already be gone; the failure row
		// must land regardless.
		if _, ferr := e.Store.RecordFailure(context.Background(), deviceID, started, vardr.Reason(err)); ferr != nil {
			vardr.Logf("%s: could not record failure: %v", d.Name, ferr)
		}
		return 0, err
	}
	return len(snap.Routes), nil
}

// identify fills in vendor/platform over SNMP for inventory entries
// that left both blank. Best effort: a probe failure just means the
// driver lookup will fail with a clear message instead.
func (e *Engine) identify(d *inventory.Device) {
	community := d.Data["community"]
	if community == "" {
		community = e.Config.Community
	}
	f, err := probe.Gather(d.Hostname, community, e.Mib)
	if err != nil {
		vardr.Logf("%s: snmp identification failed: %v", d.Name, err)
		return
	}
	d.Vendor = probe.Vendor(f.Descr)
	d.Platform = probe.Platform(f.Descr)
	vardr.Debugf("%s: identified as vendor=%q platform=%q", d.Name, d.Vendor, d.Platform)
}

// snapshot connects and pulls VRFs plus per-VRF route tables. Connect
// attempts retry on transient errors within the device deadline; VRF
// enumeration failure degrades to the default VRF only.
func (e *Engine) snapshot(ctx context.Context, d inventory.Device) (*store.Snapshot, error) {
	driver, err := rib.Lookup(d.Vendor, d.Platform)
	if err != nil {
		return nil, err
	}

	var conn Conn
	for attempt := 0; ; attempt++ {
		conn, err = e.Dial(d.Addr(), d.Username, d.Password, e.Config.DeviceTimeout())
		if err == nil {
			break
		}
		if !vardr.Retryable(err) || attempt >= e.Config.Retries {
			return nil, err
		}
		vardr.Debugf("%s: connect attempt %d failed, retrying: %v", d.Name, attempt+1, err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %s", vardr.ErrCommandTimeout, d.Name, ctx.Err())
		case <-time.After(e.Config.Backoff(attempt)):
		}
	}
	defer conn.Finalize()

	snap := &store.Snapshot{Started: time.Now().UTC()}
	vrfs := []rib.VRF{{Name: rib.DefaultVRF}}
	if out, err := e.run(ctx, d, conn, driver.VRFListCmd()); err != nil {
		vardr.Logf("%s: vrf enumeration failed, collecting default vrf only: %v", d.Name, err)
	} else if parsed, err := driver.ParseVRFs(out); err != nil {
		vardr.Logf("%s: vrf list parse failed, collecting default vrf only: %v", d.Name, err)
	} else {
		vrfs = parsed
	}
	snap.VRFs = vrfs

	for _, v := range vrfs {
		out, err := e.run(ctx, d, conn, driver.RouteCmd(v.Name))
		if err != nil {
			return nil, err
		}
		parsed, err := driver.ParseRoutes(out, v.Name)
		if err != nil {
			return nil, err
		}
		snap.Routes = append(snap.Routes, parsed...)
	}
	return snap, nil
}

// run executes one command with the same retry rules as connecting:
// transient errors get the retry budget, everything else fails at
// once.
func (e *Engine) run(ctx context.Context, d inventory.Device, conn Conn, cmd string) (string, error) {
	for attempt := 0; ; attempt++ {
		out, err := conn.Run(ctx, cmd)
		if err == nil {
			return out, nil
		}
		if !vardr.Retryable(err) || attempt >= e.Config.Retries || ctx.Err() != nil {
			return "", err
		}
		vardr.Debugf("%s: %q attempt %d failed, retrying: %v", d.Name, cmd, attempt+1, err)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s: %s", vardr.ErrCommandTimeout, d.Name, ctx.Err())
		case <-time.After(e.Config.Backoff(attempt)):
		}
	}
}

// commit diffs against the previous snapshot, then persists the new
// one. Previous routes are read BEFORE the new snapshot lands, so the
// comparison baseline is always the run before this one.
func (e *Engine) commit(ctx context.Context, deviceID string, d inventory.Device, snap *store.Snapshot) error {
	var changes []detect.Change
	prevTotal := 0
	if e.Config.DetectChanges {
		names := make([]string, 0, len(snap.VRFs))
		seen := map[string]bool{}
		for _, v := range snap.VRFs {
			names = append(names, v.Name)
			seen[v.Name] = true
		}
		// A VRF deconfigured since the last run still has to produce
		// removed entries for the routes it held, so the comparison
		// covers the union of current and previous VRFs.
		prevNames, err := e.Store.LastCompletedVRFNames(ctx, deviceID)
		if err != nil {
			return err
		}
		for _, n := range prevNames {
			if !seen[n] {
				names = append(names, n)
			}
		}
		for _, name := range names {
			prev, err := e.Store.LastCompletedRoutes(ctx, deviceID, name)
			if err != nil {
				return err
			}
			prevTotal += len(prev)
			cur := make([]vardr.Route, 0, len(snap.Routes))
			for _, r := range snap.Routes {
				if r.VRF == name {
					cur = append(cur, r)
				}
			}
			changes = append(changes, detect.Changes(prev, cur)...)
		}
	}

	runID, err := e.Store.SaveSnapshot(ctx, deviceID, snap)
	if err != nil {
		return err
	}

	added, removed, modified := 0, 0, 0
	for _, c := range changes {
		switch c.Type {
		case detect.Added:
			added++
		case detect.Removed:
			removed++
		case detect.Modified:
			modified++
		}
	}
	significant := detect.Significant(len(changes), prevTotal, e.Config.ChangeThreshold)
	if significant {
		vardr.Logf("%s: significant change: %d changes against %d previous routes",
			d.Name, len(changes), prevTotal)
	}
	if len(changes) > 0 {
		if err := e.Store.AppendChanges(ctx, deviceID, changes); err != nil {
			return err
		}
	}
	if err := e.Store.RecordChangeStats(ctx, runID, added, removed, modified, significant); err != nil {
		return err
	}
	return e.emit(d, runID, snap, added, removed, modified, significant)
}

// emit sends the per-run summary metric through skogul, when an output
// is configured.
func (e *Engine) emit(d inventory.Device, runID string, snap *store.Snapshot, added, removed, modified int, significant bool) error {
	if e.output == nil {
		return nil
	}
	now := time.Now()
	m := skogul.Metric{Time: &now}
	m.Metadata = make(map[string]interface{})
	m.Metadata["target"] = d.Name
	m.Metadata["run"] = runID
	m.Data = make(map[string]interface{})
	m.Data["routes"] = len(snap.Routes)
	m.Data["vrfs"] = len(snap.VRFs)
	m.Data["added"] = added
	m.Data["removed"] = removed
	m.Data["modified"] = modified
	m.Data["significant"] = significant

	c := skogul.Container{}
	c.Metrics = append(c.Metrics, &m)
	if err := e.output.Handlers["vardr"].Handler.TransformAndSend(&c); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}
