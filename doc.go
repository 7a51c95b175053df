/*
 * vardr documentation-dummy
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
Package vardr is a library and toolset for collecting routing tables
from large amounts of network devices over their CLI, normalizing the
vendor-specific output into canonical per-VRF route records, and
detecting what changed between successive collections.

It works through an inventory of devices which are polled in parallel
by largely independent workers, either on a timer or through a central
work-distribution queue. Snapshots and change logs are persisted
locally, and per-run summaries can be reported using Skogul.
*/
package vardr
