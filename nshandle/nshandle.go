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

// Package nshandle implements the opaque container reference: the pair
// (cookie, pid) where cookie is derived from the process start time, giving
// PID-reuse resistance without kernel cooperation.
package nshandle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/procutil"
)

// handleRE matches the handle wire format: c<decimal-start-time>-<decimal-pid>.
var handleRE = regexp.MustCompile(`^c(\d+)-(\d+)$`)

// Handle is the pair (cookie, pid) identifying a container. Handles are
// created once on successful container creation and never mutated.
type Handle struct {
	Cookie string
	Pid    int
}

// Generator derives a container cookie for a pid. Production code uses
// CookieGenerator; tests substitute a fake.
type Generator interface {
	Generate(pid int) (string, error)
}

// CookieGenerator derives the cookie for a pid from its process start time
// (field 22 of /proc/<pid>/stat), prefixed with "c".
type CookieGenerator struct{}

var _ Generator = CookieGenerator{}

// Generate returns the cookie for pid, or an error if the pid's stat file
// cannot be read (pid gone).
func (CookieGenerator) Generate(pid int) (string, error) {
	start, err := procutil.StartTime(pid)
	if err != nil {
		return "", nserror.Wrap(nserror.NotFound, err, "reading start time for pid %d", pid)
	}
	return fmt.Sprintf("c%d", start), nil
}

// New builds a handle for a freshly created container's init pid by reading
// its current cookie.
func New(pid int, gen Generator) (Handle, error) {
	cookie, err := gen.Generate(pid)
	if err != nil {
		return Handle{}, err
	}
	return Handle{Cookie: cookie, Pid: pid}, nil
}

// ToString renders the handle as "<cookie>-<pid>".
func (h Handle) ToString() string {
	return fmt.Sprintf("%s-%d", h.Cookie, h.Pid)
}

// ToPid returns the handle's pid.
func (h Handle) ToPid() int { return h.Pid }

// ToContainerName renders the handle's string form, tolerating (and
// stripping) a leading slash the way container names are sometimes passed
// with one.
func (h Handle) ToContainerName() string {
	return strings.TrimPrefix(h.ToString(), "/")
}

// IsValid reports whether the process with h.Pid still exists and its
// regenerated cookie equals h.Cookie.
func (h Handle) IsValid(gen Generator) bool {
	cur, err := gen.Generate(h.Pid)
	if err != nil {
		return false
	}
	return cur == h.Cookie
}

// Parse parses a handle string of the form "c<start>-<pid>" and validates it
// against the current cookie of that pid. Returns InvalidArgument if the
// string doesn't match the wire format, NotFound if the pid is gone, and
// InvalidArgument("stale nshandle") if the cookie doesn't match -- the pid
// was reused by an unrelated process since the handle was issued.
func Parse(s string, gen Generator) (Handle, error) {
	m := handleRE.FindStringSubmatch(s)
	if m == nil {
		return Handle{}, nserror.E(nserror.InvalidArgument, "malformed nshandle %q", s)
	}
	pid, err := strconv.Atoi(m[2])
	if err != nil {
		return Handle{}, nserror.E(nserror.InvalidArgument, "malformed nshandle %q", s)
	}
	cur, err := gen.Generate(pid)
	if err != nil {
		return Handle{}, nserror.Wrap(nserror.NotFound, err, "pid %d from nshandle %q not found", pid, s)
	}
	if cur != "c"+m[1] {
		return Handle{}, nserror.E(nserror.InvalidArgument, "stale nshandle %q", s)
	}
	return Handle{Cookie: "c" + m[1], Pid: pid}, nil
}
