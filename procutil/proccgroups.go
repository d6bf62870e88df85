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
	"strconv"
	"strings"
)

// ProcCgroupsEntry is one line of /proc/cgroups: name, hierarchy_id,
// num_cgroups, enabled.
type ProcCgroupsEntry struct {
	Name        string
	HierarchyID int
	NumCgroups  int
	Enabled     bool
}

// ParseCgroupsLine parses a single /proc/cgroups line. Lines starting with
// '#' (the header) are skipped.
func ParseCgroupsLine(line string) (ProcCgroupsEntry, bool) {
	if strings.HasPrefix(line, "#") {
		return ProcCgroupsEntry{}, false
	}
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return ProcCgroupsEntry{}, false
	}
	hid, err := strconv.Atoi(fields[1])
	if err != nil {
		return ProcCgroupsEntry{}, false
	}
	num, err := strconv.Atoi(fields[2])
	if err != nil {
		return ProcCgroupsEntry{}, false
	}
	enabled, err := strconv.Atoi(fields[3])
	if err != nil {
		return ProcCgroupsEntry{}, false
	}
	return ProcCgroupsEntry{
		Name:        fields[0],
		HierarchyID: hid,
		NumCgroups:  num,
		Enabled:     enabled == 1,
	}, true
}

// ReadProcCgroups reads /proc/cgroups.
func ReadProcCgroups() ([]ProcCgroupsEntry, error) {
	return NewFileLines("/proc/cgroups", ParseCgroupsLine).ReadAll()
}
