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

// Package procutil provides a lazy line iterator over text files plus
// parametric parsers for the /proc files nscon reads: /proc/mounts,
// /proc/<pid>/cgroup, /proc/cgroups, and /proc/<pid>/stat.
package procutil

import (
	"bufio"
	"io"
	"os"
)

// FileLines lazily iterates the lines of a file, applying parse to each.
// Parse returns ok=false to skip a malformed line without aborting the scan.
type FileLines[T any] struct {
	path  string
	parse func(line string) (T, bool)
}

// NewFileLines creates a FileLines reader for path using parse to convert
// each line.
func NewFileLines[T any](path string, parse func(string) (T, bool)) *FileLines[T] {
	return &FileLines[T]{path: path, parse: parse}
}

// ReadAll reads every line of the file, returning the successfully parsed
// records in order. An empty file yields an empty, non-nil slice and no
// error.
func (f *FileLines[T]) ReadAll() ([]T, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []T
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		rec, ok := f.parse(scanner.Text())
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
