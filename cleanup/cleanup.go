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

// Package cleanup provides a scoped-cleanup guard: a RAII-style helper that
// runs a cleanup function unless the caller explicitly releases it. This
// replaces goto-unwind or ad-hoc error-path teardown when a function creates
// several resources that must all be torn down if a later step fails.
package cleanup

// Cleanup runs a function unless it is released. Use it to revert partially
// created state if a function returns an error after creating some of it:
//
//	c := cleanup.Make(func() { os.Remove(path) })
//	defer c.Clean()
//	... more fallible steps ...
//	c.Release()
//	return nil
type Cleanup struct {
	cleanup func()
}

// Make creates a new Cleanup object.
func Make(cleanup func()) Cleanup {
	return Cleanup{cleanup: cleanup}
}

// Add associates an additional cleanup step, run before any previously added
// ones (LIFO) when Clean is called.
func (c *Cleanup) Add(cleanup func()) {
	if c.cleanup == nil {
		c.cleanup = cleanup
		return
	}
	prev := c.cleanup
	c.cleanup = func() {
		cleanup()
		prev()
	}
}

// Clean calls the cleanup function unless Release was previously called.
func (c *Cleanup) Clean() {
	if c.cleanup != nil {
		c.cleanup()
	}
	c.cleanup = nil
}

// Release releases the cleanup from its duties, i.e. makes Clean a no-op.
func (c *Cleanup) Release() {
	c.cleanup = nil
}
