/*
 * vardr error taxonomy
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
package vardr

import (
	"errors"
	"fmt"
)

// The failure classes a device run can end in. Wrap these with %w and
// match with errors.Is; the extra context goes in the message.
var (
	// ErrConnection is a transport-level failure: dial, handshake,
	// broken channel. Transient, worth retrying.
	ErrConnection = errors.New("connection failed")
	// ErrAuthentication means the device rejected our credentials.
	// Retrying would just repeat the rejection (and trip lockouts).
	ErrAuthentication = errors.New("authentication failed")
	// ErrCommandTimeout means a command (or the whole device run)
	// hit its deadline.
	ErrCommandTimeout = errors.New("command timeout")
	// ErrCommandFailed means the device ran the command and rejected
	// it (non-zero exit, "% Invalid input"). Deterministic, so never
	// retried: the device will reject it the same way again.
	ErrCommandFailed = errors.New("command failed")
	// ErrPersistence is a failure writing or reading the store. The
	// surrounding transaction is rolled back entirely.
	ErrPersistence = errors.New("persistence failed")
)

// ParseError means vendor output didn't match the expected grammar.
// Deterministic, so never retried: the same output parses the same
// way every time.
type ParseError struct {
	Vendor string
	Line   string // the offending line, as received
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failed (%s): %s: %q", e.Vendor, e.Reason, e.Line)
}

// Retryable reports whether a failed attempt is worth repeating.
func Retryable(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrCommandTimeout)
}

// Reason maps an error to the short failure keyword recorded on a
// CollectionRun and in reports.
func Reason(err error) string {
	var pe *ParseError
	switch {
	case errors.As(err, &pe):
		return "parse"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrCommandTimeout):
		return "timeout"
	case errors.Is(err, ErrCommandFailed):
		return "command"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "error"
	}
}
