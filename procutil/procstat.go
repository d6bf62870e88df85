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
	"os"
	"strconv"
	"strings"
)

// StartTime reads /proc/<pid>/stat and returns field 22 (process start
// time, in clock ticks since boot), used as the NsHandle cookie source.
//
// The second field (comm, the process name) is parenthesized and may itself
// contain spaces or parentheses, so fields are counted from the last ')' in
// the line rather than by naive whitespace splitting.
func StartTime(pid int) (int64, error) {
	path := fmt.Sprintf("/proc/%d/stat", pid)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	line := strings.TrimSuffix(string(data), "\n")

	end := strings.LastIndexByte(line, ')')
	if end < 0 {
		return 0, fmt.Errorf("procutil: malformed stat line for pid %d", pid)
	}
	rest := strings.Fields(line[end+1:])
	// rest[0] is field 3 (state); field 22 is therefore rest[22-3] = rest[19].
	const startTimeRestIndex = 19
	if len(rest) <= startTimeRestIndex {
		return 0, fmt.Errorf("procutil: stat line for pid %d has too few fields", pid)
	}
	return strconv.ParseInt(rest[startTimeRestIndex], 10, 64)
}
