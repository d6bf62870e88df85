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

package procutil

import (
	"fmt"
	"strconv"
	"strings"
)

// deletedSuffix is appended by the kernel to the mountpoint field of
// /proc/mounts when the mountpoint directory itself has been removed.
const deletedSuffix = "\\040(deleted)"

// MountObject is one line of /proc/[pid/]mounts.
type MountObject struct {
	Device     string
	Mountpoint string
	Type       string
	Options    []string
	FsFreq     int
	FsPassno   int
}

// ParseMountLine parses a single /proc/mounts line. It returns ok=false for
// lines that don't have exactly 6 whitespace-separated fields, so a
// malformed line is skipped rather than aborting the whole scan.
func ParseMountLine(line string) (MountObject, bool) {
	fields := strings.Fields(line)
	if len(fields) != 6 {
		return MountObject{}, false
	}
	freq, err := strconv.Atoi(fields[4])
	if err != nil {
		return MountObject{}, false
	}
	passno, err := strconv.Atoi(fields[5])
	if err != nil {
		return MountObject{}, false
	}
	mountpoint := strings.TrimSuffix(fields[1], deletedSuffix)
	mountpoint = strings.TrimSuffix(mountpoint, "\t(deleted)")
	return MountObject{
		Device:     fields[0],
		Mountpoint: mountpoint,
		Type:       fields[2],
		Options:    strings.Split(fields[3], ","),
		FsFreq:     freq,
		FsPassno:   passno,
	}, true
}

// ReadMounts reads all mount entries from path (typically /proc/mounts,
// /proc/self/mounts, or /proc/<pid>/mounts).
func ReadMounts(path string) ([]MountObject, error) {
	return NewFileLines(path, ParseMountLine).ReadAll()
}

// ProcMountsPath returns the /proc/mounts path for pid, or the global
// /proc/mounts if pid is 0.
func ProcMountsPath(pid int) string {
	if pid == 0 {
		return "/proc/mounts"
	}
	return fmt.Sprintf("/proc/%d/mounts", pid)
}
