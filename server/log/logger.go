// Copyright (C) 2025 Christian Rößner
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package log holds the process-wide structured logger. Every log line
// carries the instance name; ban and throttle events additionally mark
// themselves through the definitions.LogKey* fields.
package log

import (
	"os"
	"sync"

	"github.com/croessner/secenh/server/definitions"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-kit/log/term"
)

var (
	mu sync.Mutex

	// Logger is the process-wide logger. Tests and early startup paths may
	// log before SetupLogging ran; until then everything is discarded.
	Logger log.Logger = log.NewNopLogger()
)

// levelColors is the terminal palette. Enforcement events log at warn
// level, so warnings are the lines an operator scans for.
var levelColors = map[any]term.FgBgColor{
	level.DebugValue(): {Fg: term.Cyan},
	level.WarnValue():  {Fg: term.Yellow},
	level.ErrorValue(): {Fg: term.Red},
}

// SetupLogging initializes the global Logger.
func SetupLogging(configLogLevel int, formatJSON, useColor bool, instance string) {
	mu.Lock()

	defer mu.Unlock()

	newLogger := log.NewLogfmtLogger
	if formatJSON {
		newLogger = log.NewJSONLogger
	}

	if useColor {
		Logger = term.NewLogger(os.Stdout, newLogger, levelColor)
	} else {
		Logger = newLogger(log.NewSyncWriter(os.Stdout))
	}

	Logger = level.NewFilter(Logger, allowedLevel(configLogLevel))
	Logger = log.With(Logger, "ts", log.DefaultTimestampUTC, definitions.LogKeyInstance, instance)

	// Callers are only worth the line noise while debugging.
	if configLogLevel >= definitions.LogLevelDebug {
		Logger = log.With(Logger, "caller", log.DefaultCaller)
	}
}

// levelColor selects the terminal color for one log line.
func levelColor(keyvals ...any) term.FgBgColor {
	for i := 0; i < len(keyvals)-1; i += 2 {
		if keyvals[i] == level.Key() {
			return levelColors[keyvals[i+1]]
		}
	}

	return term.FgBgColor{}
}

// allowedLevel maps the configured level to a filter option.
func allowedLevel(configLogLevel int) level.Option {
	switch configLogLevel {
	case definitions.LogLevelNone:
		return level.AllowNone()
	case definitions.LogLevelError:
		return level.AllowError()
	case definitions.LogLevelWarn:
		return level.AllowWarn()
	case definitions.LogLevelDebug:
		return level.AllowDebug()
	default:
		return level.AllowInfo()
	}
}
