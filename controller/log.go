package controller

// --------------------------------------------------------------------------
//
//	Gurux Ltd
//
// Filename:        $HeadURL$
//
// Version:         $Revision$,
//
//	$Date$
//	$Author$
//
// # Copyright (c) Gurux Ltd
//
// ---------------------------------------------------------------------------
//
//	DESCRIPTION
//
// This file is a part of Gurux Device Framework.
//
// Gurux Device Framework is Open Source software; you can redistribute it
// and/or modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2 of the License.
// Gurux Device Framework is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU General Public License for more details.
//
// More information of Gurux products: https://www.gurux.org
//
// This code is licensed under the GNU General Public License v2.
// Full text may be retrieved at http://www.gnu.org/licenses/gpl-2.0.txt
// ---------------------------------------------------------------------------

import (
	"strings"
	"time"
)

// Direction tags a log entry.
type Direction int

const (
	// DirectionStatus is a connection or error notice.
	DirectionStatus Direction = iota
	// DirectionSent is data written to the port.
	DirectionSent
	// DirectionReceived is data read from the port.
	DirectionReceived
	// DirectionReceivedASCII is the printable rendering of received data.
	DirectionReceivedASCII
)

// String returns the tag printed in front of the payload.
func (d Direction) String() string {
	switch d {
	case DirectionSent:
		return "TX"
	case DirectionReceived:
		return "RX"
	case DirectionReceivedASCII:
		return "RX (ASCII)"
	default:
		return ""
	}
}

// TimeFormat is the layout of the entry timestamp.
const TimeFormat = "15:04:05.000"

// Entry is one line of the session log.
type Entry struct {
	Time      time.Time
	Direction Direction
	Payload   string
}

// String renders the entry as "[15:04:05.000] RX: 01 02".
func (e Entry) String() string {
	tag := e.Direction.String()
	if tag == "" {
		return "[" + e.Time.Format(TimeFormat) + "] " + e.Payload
	}
	return "[" + e.Time.Format(TimeFormat) + "] " + tag + ": " + e.Payload
}

// Log is the append-only activity log shown to the user.
// It is owned by the UI context and is not safe for concurrent use.
type Log struct {
	entries []Entry
	max     int
}

// NewLog returns an empty log. When max is positive the oldest entries are
// dropped once the log holds more than max entries; zero keeps everything.
func NewLog(max int) *Log {
	return &Log{max: max}
}

// Append adds e to the end of the log.
func (l *Log) Append(e Entry) {
	l.entries = append(l.entries, e)
	if l.max > 0 && len(l.entries) > l.max {
		l.entries = append(l.entries[:0], l.entries[len(l.entries)-l.max:]...)
	}
}

// Entries returns a copy of the entries in insertion order.
func (l *Log) Entries() []Entry {
	ret := make([]Entry, len(l.entries))
	copy(ret, l.entries)
	return ret
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Clear removes every entry.
func (l *Log) Clear() {
	l.entries = nil
}

// String returns all entries, one per line.
func (l *Log) String() string {
	var sb strings.Builder
	for i, e := range l.entries {
		if i != 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.String())
	}
	return sb.String()
}
