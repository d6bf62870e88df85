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

// Package fsutil provides idempotent filesystem helpers: ensure-dir with a
// mode, and stat-as-dir/stat-as-file checks. It is an interface with one
// production implementation (backed by sysops.FsOps) so tests can substitute
// an in-memory fake.
package fsutil

import (
	"os"

	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/sysops"
)

// FsUtils is an idempotent filesystem helper surface; no other package in
// this module uses it.
type FsUtils interface {
	// EnsureDir creates path and any missing parents with the given mode if
	// it doesn't exist; it is a no-op (not an error) if path already exists
	// and is a directory.
	EnsureDir(path string, mode os.FileMode) error
	// IsDir reports whether path exists and is a directory.
	IsDir(path string) bool
	// IsFile reports whether path exists and is a regular file.
	IsFile(path string) bool
}

// Prod is the production FsUtils, backed by the real filesystem via
// os.MkdirAll and sysops.FsOps.Stat.
type Prod struct {
	Fs sysops.FsOps
}

// NewProd creates a production FsUtils.
func NewProd(fs sysops.FsOps) *Prod {
	return &Prod{Fs: fs}
}

var _ FsUtils = (*Prod)(nil)

func (p *Prod) EnsureDir(path string, mode os.FileMode) error {
	info, err := p.Fs.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return nserror.E(nserror.FailedPrecondition, "%s exists and is not a directory", path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return nserror.Wrap(nserror.Internal, err, "stat %s", path)
	}
	if err := os.MkdirAll(path, mode); err != nil {
		return nserror.Wrap(nserror.Internal, err, "mkdir -p %s", path)
	}
	return nil
}

func (p *Prod) IsDir(path string) bool {
	info, err := p.Fs.Stat(path)
	return err == nil && info.IsDir()
}

func (p *Prod) IsFile(path string) bool {
	info, err := p.Fs.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
