// Package logging builds the diagnostic slog logger and forwards media events to it.
package logging

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
	"io"
	"log/slog"
	"os"

	"github.com/Gurux/gxcommon-go"
	"github.com/phsym/console-slog"
)

// New returns a logger writing to w. A colored console handler is used when
// ENV is "development", JSON lines otherwise.
func New(w io.Writer, level slog.Level) *slog.Logger {
	var handler slog.Handler
	if os.Getenv("ENV") == "development" {
		handler = console.NewHandler(w, &console.HandlerOptions{
			AddSource: true,
			Level:     level,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					a.Key = "ts"
				}
				return a
			},
		})
	}
	return slog.New(handler)
}

// Open appends log records to the file at path.
// The returned closer must be closed when the program ends.
func Open(path string, level slog.Level) (*slog.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return New(f, level), f, nil
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(s))
	return level, err
}

// TraceHandler forwards media trace events to l at debug level.
func TraceHandler(l *slog.Logger) gxcommon.TraceEventHandler {
	return func(m gxcommon.IGXMedia, e gxcommon.TraceEventArgs) {
		l.Debug("trace", "media", m.GetName(), "event", e.String())
	}
}

// StateHandler logs media state changes.
func StateHandler(l *slog.Logger) gxcommon.MediaStateHandler {
	return func(m gxcommon.IGXMedia, e gxcommon.MediaStateEventArgs) {
		l.Info("media state", "media", m.GetName(), "state", e.State().String())
	}
}
