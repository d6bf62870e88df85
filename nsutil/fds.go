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

package nsutil

import (
	"fmt"
	"strconv"

	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/sysops"
)

// GetOpenFDs enumerates the open file descriptors of pid (0 meaning self) by
// reading /proc/<pid>/fd. Entries that aren't decimal numbers are skipped.
func GetOpenFDs(fs sysops.FsOps, pid int) ([]int, error) {
	dir := fmt.Sprintf("/proc/%d/fd", pid)
	if pid <= 0 {
		dir = "/proc/self/fd"
	}
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, nserror.Wrap(nserror.Internal, err, "reading %s", dir)
	}
	var out []int
	for _, e := range entries {
		n, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
