// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides nscon's structured logger. It wraps logrus behind a
// small call surface (Infof, Debugf, Warningf) and renders entries in the
// "[<tag> <LEVEL> <file>:<line>] <message>" wire format.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// Tag identifies the binary emitting the log line.
var Tag = "nscon"

var base = newLogger(os.Stderr)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&googleFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetTarget redirects log output to w.
func SetTarget(w io.Writer) {
	base.SetOutput(w)
}

// SetLevel sets the minimum level that will be emitted. Debug enables
// verbose output the way runsc's --debug flag does.
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

// Levels re-exported for callers that don't want to import logrus directly.
const (
	Debug = logrus.DebugLevel
	Info  = logrus.InfoLevel
	Warn  = logrus.WarnLevel
)

type googleFormatter struct{}

func (*googleFormatter) Format(e *logrus.Entry) ([]byte, error) {
	level := "I"
	switch e.Level {
	case logrus.DebugLevel:
		level = "D"
	case logrus.WarnLevel:
		level = "W"
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		level = "E"
	}
	file, line := callerLoc()
	return []byte(fmt.Sprintf("[%s %s %s:%d] %s\n", Tag, level, file, line, e.Message)), nil
}

// callerLoc walks the stack past this package's frames to find the first
// call site outside of log.go.
func callerLoc() (string, int) {
	for skip := 2; skip < 10; skip++ {
		_, file, line, ok := runtime.Caller(skip)
		if !ok {
			break
		}
		if filepath.Base(filepath.Dir(file)) == "log" && filepath.Base(file) == "log.go" {
			continue
		}
		return filepath.Base(file), line
	}
	return "???", 0
}

// Infof logs at info level.
func Infof(format string, args ...any) { base.Infof(format, args...) }

// Debugf logs at debug level.
func Debugf(format string, args ...any) { base.Debugf(format, args...) }

// Warningf logs at warning level.
func Warningf(format string, args ...any) { base.Warnf(format, args...) }

var (
	silencerMu    sync.Mutex
	silencerCount int
)

// Silence increments the process-wide silencer count. While it is positive,
// WarningfBestEffort messages are demoted to debug; Warningf is not
// affected. The counter is
// never reset automatically; callers that call Silence must call Unsilence.
func Silence() {
	silencerMu.Lock()
	silencerCount++
	silencerMu.Unlock()
}

// Unsilence decrements the silencer count set up by Silence.
func Unsilence() {
	silencerMu.Lock()
	if silencerCount > 0 {
		silencerCount--
	}
	silencerMu.Unlock()
}

func silenced() bool {
	silencerMu.Lock()
	defer silencerMu.Unlock()
	return silencerCount > 0
}

// WarningfBestEffort logs a warning unless the calling scope has silenced
// best-effort diagnostics via Silence.
func WarningfBestEffort(format string, args ...any) {
	if silenced() {
		base.Debugf(format, args...)
		return
	}
	base.Warnf(format, args...)
}
