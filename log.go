/*
 * vardr log-wrappers
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

/*
log.go is largely a wrapper around log for now, mainly so we can keep
doing regular calls to log without having to worry about
future-proofing it.

Add wrappers on demand.

The one concession it has is that it adds Debug/Debugf which evaluates
whether debugging is turned on. This makes calls to vardr.Debug() very
fast when it's disabled, so it's unproblematic to add debug-logging in
high-traffic code that would otherwise risk slowing down regular
non-debugging code.
*/

import (
	"fmt"
	"log"
	"os"
)

var debugging bool

// Init sets up log flags and the debug gate. Call it once at startup,
// after configuration is parsed.
func Init(debug bool) {
	debugging = debug
	d := log.Default()
	if debug {
		d.SetFlags(log.Ltime | log.Lshortfile)
	} else {
		d.SetFlags(log.Ltime)
	}
}

func Log(v ...any) {
	log.Output(2, fmt.Sprint(v...))
}

func Logf(format string, v ...any) {
	log.Output(2, fmt.Sprintf(format, v...))
}

func Logln(v ...any) {
	log.Output(2, fmt.Sprintln(v...))
}

func Fatal(v ...any) {
	log.Output(2, fmt.Sprint(v...))
	os.Exit(1)
}

func Fatalf(format string, v ...any) {
	log.Output(2, fmt.Sprintf(format, v...))
	os.Exit(1)
}

func Fatalln(v ...any) {
	log.Output(2, fmt.Sprintln(v...))
	os.Exit(1)
}

func Debug(v ...any) {
	if debugging {
		log.Output(2, fmt.Sprint(v...))
	}
}

func Debugf(format string, v ...any) {
	if debugging {
		log.Output(2, fmt.Sprintf(format, v...))
	}
}

func Debugln(v ...any) {
	if debugging {
		log.Output(2, fmt.Sprintln(v...))
	}
}
