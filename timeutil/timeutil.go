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

// Package timeutil provides the microseconds clock used to derive
// unique names for IpcAgent UDS paths and pivot_root temp directories.
package timeutil

import "time"

// TimeUtils is the clock façade; tests substitute a fake with a fixed or
// stepped clock so that generated names are deterministic.
type TimeUtils interface {
	// MonotonicMicros returns a microsecond timestamp suitable for
	// disambiguating generated filenames.
	MonotonicMicros() int64
}

// Prod is the production TimeUtils backed by the wall clock: microseconds
// since the Unix epoch from time.Now().UnixMicro(), which can step backwards
// if the system clock is changed.
type Prod struct{}

var _ TimeUtils = Prod{}

func (Prod) MonotonicMicros() int64 {
	return time.Now().UnixMicro()
}
