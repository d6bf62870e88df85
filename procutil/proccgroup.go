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

// ProcCgroupData is one line of /proc/<pid>/cgroup:
// hierarchy_id:subsystems:hierarchy_path
type ProcCgroupData struct {
	HierarchyID int
	Subsystems  []string
	Path        string
}

// ParseCgroupLine parses a single /proc/<pid>/cgroup line.
func ParseCgroupLine(line string) (ProcCgroupData, bool) {
	line = strings.TrimSuffix(line, "\n")
	parts := strings.SplitN(line, ":", 3)
	if len(parts) != 3 {
		return ProcCgroupData{}, false
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return ProcCgroupData{}, false
	}
	var subsystems []string
	if parts[1] != "" {
		subsystems = strings.Split(parts[1], ",")
	}
	return ProcCgroupData{HierarchyID: id, Subsystems: subsystems, Path: parts[2]}, true
}

// ReadProcCgroup reads /proc/<pid>/cgroup for the given pid.
func ReadProcCgroup(pid int) ([]ProcCgroupData, error) {
	path := fmt.Sprintf("/proc/%d/cgroup", pid)
	return NewFileLines(path, ParseCgroupLine).ReadAll()
}

// FindHierarchyPath returns the hierarchy_path of the line whose subsystem
// list contains hierarchyName, used by CgroupFactory.DetectCgroupPath.
func FindHierarchyPath(entries []ProcCgroupData, hierarchyName string) (string, bool) {
	for _, e := range entries {
		for _, s := range e.Subsystems {
			if s == hierarchyName {
				return e.Path, true
			}
		}
	}
	return "", false
}
