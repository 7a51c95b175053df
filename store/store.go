/*
 * vardr store
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
Package store persists devices, VRFs, route snapshots, collection
runs and change logs in sqlite.

The one invariant everything else leans on: a run only ever becomes
"completed" in the same transaction that wrote its full route set, so
readers of the latest completed run can never observe a partial
snapshot. Failed runs are recorded, but leave no route rows behind.
*/
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/telenornms/vardr"
	"github.com/telenornms/vardr/detect"
	"github.com/telenornms/vardr/inventory"
	"github.com/telenornms/vardr/rib"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Store wraps one sqlite database. Each collector task runs its own
// transaction on the shared pool; nothing here is per-device state.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %s", vardr.ErrPersistence, err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %s", vardr.ErrPersistence, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %s", vardr.ErrPersistence, err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the store is reachable. The orchestrator calls it
// before fanning out: a dead store is a systemic failure, not a
// per-device one.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %s", vardr.ErrPersistence, err)
	}
	return nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			hostname TEXT NOT NULL UNIQUE,
			address TEXT NOT NULL DEFAULT '',
			vendor TEXT NOT NULL DEFAULT '',
			platform TEXT NOT NULL DEFAULT '',
			groups TEXT NOT NULL DEFAULT '[]',
			data TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			last_seen TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS vrfs (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			name TEXT NOT NULL,
			rd TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE CASCADE,
			UNIQUE (device_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS collection_runs (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			status TEXT NOT NULL DEFAULT 'running',
			error TEXT NOT NULL DEFAULT '',
			total_routes INTEGER NOT NULL DEFAULT 0,
			total_vrfs INTEGER NOT NULL DEFAULT 0,
			routes_added INTEGER NOT NULL DEFAULT 0,
			routes_removed INTEGER NOT NULL DEFAULT 0,
			routes_modified INTEGER NOT NULL DEFAULT 0,
			significant INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS routes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			vrf_id TEXT NOT NULL,
			destination TEXT NOT NULL,
			prefix_length INTEGER NOT NULL,
			next_hop TEXT NOT NULL DEFAULT '',
			protocol TEXT NOT NULL,
			metric INTEGER NOT NULL DEFAULT -1,
			distance INTEGER NOT NULL DEFAULT -1,
			interface TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (run_id) REFERENCES collection_runs(id) ON DELETE CASCADE,
			FOREIGN KEY (vrf_id) REFERENCES vrfs(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS change_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			vrf_name TEXT NOT NULL,
			change_type TEXT NOT NULL,
			route_network TEXT NOT NULL,
			previous_value TEXT NOT NULL DEFAULT '',
			new_value TEXT NOT NULL DEFAULT '',
			detected_at TIMESTAMP NOT NULL,
			FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_device_status ON collection_runs(device_id, status, completed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_routes_run ON routes(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_vrfs_device ON vrfs(device_id, name)`,
		`CREATE INDEX IF NOT EXISTS idx_changes_device_time ON change_logs(device_id, detected_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: create tables: %s", vardr.ErrPersistence, err)
		}
	}
	return nil
}

// Run is one collection run row.
type Run struct {
	ID             string
	DeviceID       string
	StartedAt      time.Time
	CompletedAt    *time.Time
	Status         string
	Error          string
	TotalRoutes    int
	TotalVRFs      int
	RoutesAdded    int
	RoutesRemoved  int
	RoutesModified int
	Significant    bool
}

// ChangeRow is one persisted change log entry. Append-only: nothing
// in here ever updates or deletes one.
type ChangeRow struct {
	ID            int64
	DeviceID      string
	VRFName       string
	ChangeType    string
	RouteNetwork  string
	PreviousValue string
	NewValue      string
	DetectedAt    time.Time
}

// Snapshot is the full parsed state of one device at one run, ready
// to be committed.
type Snapshot struct {
	VRFs    []rib.VRF
	Routes  []vardr.Route
	Started time.Time
}

// UpsertDevice creates or refreshes the device row from inventory and
// returns its id. Inventory wins for vendor/platform and the opaque
// fields; last_seen is bumped on every call.
func (s *Store) UpsertDevice(ctx context.Context, dev inventory.Device) (string, error) {
	groups, _ := json.Marshal(dev.Groups)
	data, _ := json.Marshal(dev.Data)
	now := time.Now().UTC()

	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM devices WHERE hostname = ?`, dev.Name).Scan(&id)
	if err == sql.ErrNoRows {
		id = uuid.NewString()
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO devices (id, hostname, address, vendor, platform, groups, data, created_at, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, dev.Name, dev.Hostname, dev.Vendor, dev.Platform, string(groups), string(data), now, now)
		if err != nil {
			return "", fmt.Errorf("%w: insert device %s: %s", vardr.ErrPersistence, dev.Name, err)
		}
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: lookup device %s: %s", vardr.ErrPersistence, dev.Name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE devices SET address = ?, vendor = ?, platform = ?, groups = ?, data = ?, last_seen = ?
		WHERE id = ?`,
		dev.Hostname, dev.Vendor, dev.Platform, string(groups), string(data), now, id)
	if err != nil {
		return "", fmt.Errorf("%w: update device %s: %s", vardr.ErrPersistence, dev.Name, err)
	}
	return id, nil
}

// SaveSnapshot writes one completed collection run: run row, any new
// VRF rows, and all route rows, in a single transaction. Either the
// whole snapshot lands with status completed, or nothing does.
func (s *Store) SaveSnapshot(ctx context.Context, deviceID string, snap *Snapshot) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: begin: %s", vardr.ErrPersistence, err)
	}
	defer tx.Rollback()

	vrfIDs := map[string]string{}
	for _, v := range snap.VRFs {
		id, err := ensureVRF(ctx, tx, deviceID, v)
		if err != nil {
			return "", err
		}
		vrfIDs[v.Name] = id
	}

	runID := uuid.NewString()
	started := snap.Started
	if started.IsZero() {
		started = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO collection_runs (id, device_id, started_at, status)
		VALUES (?, ?, ?, ?)`,
		runID, deviceID, started, StatusRunning)
	if err != nil {
		return "", fmt.Errorf("%w: insert run: %s", vardr.ErrPersistence, err)
	}

	ins, err := tx.PrepareContext(ctx, `
		INSERT INTO routes (run_id, vrf_id, destination, prefix_length, next_hop, protocol, metric, distance, interface)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("%w: prepare route insert: %s", vardr.ErrPersistence, err)
	}
	defer ins.Close()
	for _, r := range snap.Routes {
		vrfID, ok := vrfIDs[r.VRF]
		if !ok {
			// Route in a VRF the enumeration didn't list. Create the
			// row anyway; first sighting is first sighting.
			vrfID, err = ensureVRF(ctx, tx, deviceID, rib.VRF{Name: r.VRF})
			if err != nil {
				return "", err
			}
			vrfIDs[r.VRF] = vrfID
		}
		nh := ""
		if r.NextHop.IsValid() {
			nh = r.NextHop.String()
		}
		_, err = ins.ExecContext(ctx, runID, vrfID,
			r.Destination.Addr().String(), r.Destination.Bits(), nh,
			r.Protocol, r.Metric, r.Distance, r.Interface)
		if err != nil {
			return "", fmt.Errorf("%w: insert route %s: %s", vardr.ErrPersistence, r.Network(), err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE collection_runs
		SET status = ?, completed_at = ?, total_routes = ?, total_vrfs = ?
		WHERE id = ?`,
		StatusCompleted, time.Now().UTC(), len(snap.Routes), len(vrfIDs), runID)
	if err != nil {
		return "", fmt.Errorf("%w: complete run: %s", vardr.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: commit run: %s", vardr.ErrPersistence, err)
	}
	return runID, nil
}

func ensureVRF(ctx context.Context, tx *sql.Tx, deviceID string, v rib.VRF) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM vrfs WHERE device_id = ? AND name = ?`, deviceID, v.Name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("%w: lookup vrf %s: %s", vardr.ErrPersistence, v.Name, err)
	}
	id = uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO vrfs (id, device_id, name, rd, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, deviceID, v.Name, v.RD, v.Description, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("%w: insert vrf %s: %s", vardr.ErrPersistence, v.Name, err)
	}
	return id, nil
}

// RecordFailure writes a failed run row. Deliberately its own little
// transaction: it must land even when the snapshot write just rolled
// back or the device deadline already expired.
func (s *Store) RecordFailure(ctx context.Context, deviceID string, started time.Time, reason string) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collection_runs (id, device_id, started_at, completed_at, status, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, deviceID, started, time.Now().UTC(), StatusFailed, reason)
	if err != nil {
		return "", fmt.Errorf("%w: record failure: %s", vardr.ErrPersistence, err)
	}
	return runID, nil
}

// LastCompletedRoutes returns the routes of the given VRF as of the
// device's most recent completed run, or nil when the device has no
// completed run yet. Only completed runs are ever considered, so
// overlapping or failed runs can't leak partial state into a diff.
func (s *Store) LastCompletedRoutes(ctx context.Context, deviceID, vrfName string) ([]vardr.Route, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM collection_runs
		WHERE device_id = ? AND status = ?
		ORDER BY completed_at DESC LIMIT 1`,
		deviceID, StatusCompleted).Scan(&runID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: last completed run: %s", vardr.ErrPersistence, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.destination, r.prefix_length, r.next_hop, r.protocol, r.metric, r.distance, r.interface
		FROM routes r JOIN vrfs v ON r.vrf_id = v.id
		WHERE r.run_id = ? AND v.name = ?`,
		runID, vrfName)
	if err != nil {
		return nil, fmt.Errorf("%w: load routes: %s", vardr.ErrPersistence, err)
	}
	defer rows.Close()

	var routes []vardr.Route
	for rows.Next() {
		var dst, nh string
		var bits int
		r := vardr.Route{VRF: vrfName}
		if err := rows.Scan(&dst, &bits, &nh, &r.Protocol, &r.Metric, &r.Distance, &r.Interface); err != nil {
			return nil, fmt.Errorf("%w: scan route: %s", vardr.ErrPersistence, err)
		}
		prefix, err := netip.ParsePrefix(fmt.Sprintf("%s/%d", dst, bits))
		if err != nil {
			return nil, fmt.Errorf("%w: stored destination %s/%d: %s", vardr.ErrPersistence, dst, bits, err)
		}
		r.Destination = prefix
		if nh != "" {
			addr, err := netip.ParseAddr(nh)
			if err != nil {
				return nil, fmt.Errorf("%w: stored next hop %s: %s", vardr.ErrPersistence, nh, err)
			}
			r.NextHop = addr
		}
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate routes: %s", vardr.ErrPersistence, err)
	}
	return routes, nil
}

// LastCompletedVRFNames returns the names of the VRFs that held
// routes in the device's most recent completed run, or nil when no
// completed run exists. This is what lets change detection notice a
// VRF that was deconfigured since the last run.
func (s *Store) LastCompletedVRFNames(ctx context.Context, deviceID string) ([]string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM collection_runs
		WHERE device_id = ? AND status = ?
		ORDER BY completed_at DESC LIMIT 1`,
		deviceID, StatusCompleted).Scan(&runID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: last completed run: %s", vardr.ErrPersistence, err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT v.name
		FROM routes r JOIN vrfs v ON r.vrf_id = v.id
		WHERE r.run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: load vrf names: %s", vardr.ErrPersistence, err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scan vrf name: %s", vardr.ErrPersistence, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate vrf names: %s", vardr.ErrPersistence, err)
	}
	return names, nil
}

// AppendChanges writes the detected deltas to the change log in one
// transaction.
func (s *Store) AppendChanges(ctx context.Context, deviceID string, changes []detect.Change) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %s", vardr.ErrPersistence, err)
	}
	defer tx.Rollback()
	ins, err := tx.PrepareContext(ctx, `
		INSERT INTO change_logs (device_id, vrf_name, change_type, route_network, previous_value, new_value, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare change insert: %s", vardr.ErrPersistence, err)
	}
	defer ins.Close()
	now := time.Now().UTC()
	for _, c := range changes {
		_, err := ins.ExecContext(ctx, deviceID, c.VRF, c.Type, c.Network,
			routeJSON(c.Previous), routeJSON(c.New), now)
		if err != nil {
			return fmt.Errorf("%w: insert change %s %s: %s", vardr.ErrPersistence, c.Type, c.Network, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit changes: %s", vardr.ErrPersistence, err)
	}
	return nil
}

// RecordChangeStats stamps the per-run change counters and the
// significance flag onto an already-completed run.
func (s *Store) RecordChangeStats(ctx context.Context, runID string, added, removed, modified int, significant bool) error {
	sig := 0
	if significant {
		sig = 1
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE collection_runs
		SET routes_added = ?, routes_removed = ?, routes_modified = ?, significant = ?
		WHERE id = ?`,
		added, removed, modified, sig, runID)
	if err != nil {
		return fmt.Errorf("%w: record change stats: %s", vardr.ErrPersistence, err)
	}
	return nil
}

// Run fetches one run row by id.
func (s *Store) Run(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, started_at, completed_at, status, error,
		       total_routes, total_vrfs, routes_added, routes_removed, routes_modified, significant
		FROM collection_runs WHERE id = ?`, runID)
	var r Run
	var completed sql.NullTime
	var sig int
	err := row.Scan(&r.ID, &r.DeviceID, &r.StartedAt, &completed, &r.Status, &r.Error,
		&r.TotalRoutes, &r.TotalVRFs, &r.RoutesAdded, &r.RoutesRemoved, &r.RoutesModified, &sig)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load run: %s", vardr.ErrPersistence, err)
	}
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	r.Significant = sig != 0
	return &r, nil
}

// Changes returns the newest change log rows for a device, newest
// first. This is the surface exporters read from.
func (s *Store) Changes(ctx context.Context, deviceID string, limit int) ([]ChangeRow, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, vrf_name, change_type, route_network, previous_value, new_value, detected_at
		FROM change_logs WHERE device_id = ?
		ORDER BY detected_at DESC, id DESC LIMIT ?`,
		deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: load changes: %s", vardr.ErrPersistence, err)
	}
	defer rows.Close()
	var out []ChangeRow
	for rows.Next() {
		var c ChangeRow
		if err := rows.Scan(&c.ID, &c.DeviceID, &c.VRFName, &c.ChangeType, &c.RouteNetwork,
			&c.PreviousValue, &c.NewValue, &c.DetectedAt); err != nil {
			return nil, fmt.Errorf("%w: scan change: %s", vardr.ErrPersistence, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate changes: %s", vardr.ErrPersistence, err)
	}
	return out, nil
}

func routeJSON(r *vardr.Route) string {
	if r == nil {
		return ""
	}
	nh := ""
	if r.NextHop.IsValid() {
		nh = r.NextHop.String()
	}
	b, _ := json.Marshal(map[string]any{
		"protocol":  r.Protocol,
		"next_hop":  nh,
		"metric":    r.Metric,
		"distance":  r.Distance,
		"interface": r.Interface,
	})
	return string(b)
}
