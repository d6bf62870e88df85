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

package nshandler

import (
	"math"
	"testing"

	"github.com/nscon/nscon/containerspec"
)

func TestIsVirtualHost(t *testing.T) {
	cases := []struct {
		name string
		spec *containerspec.ContainerSpec
		want bool
	}{
		{"pid namespace requested", &containerspec.ContainerSpec{Namespaces: containerspec.NamespaceSpec{Pid: true}}, true},
		{"no pid namespace", &containerspec.ContainerSpec{Namespaces: containerspec.NamespaceSpec{Mnt: true}}, false},
		{"empty spec", &containerspec.ContainerSpec{}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsVirtualHost(c.spec); got != c.want {
				t.Errorf("IsVirtualHost() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestReadChildrenMissingPidIsEmptyNotError(t *testing.T) {
	// A pid this high cannot exist (max pid is far below MaxInt32 on any
	// real kernel), so /proc/<pid>/task/<pid>/children is absent: the
	// walk treats that as "no children", not a failure, since a container
	// whose process already exited should simply drop out of the tree.
	children, err := readChildren(math.MaxInt32 - 1)
	if err != nil {
		t.Fatalf("readChildren() error = %v, want nil", err)
	}
	if len(children) != 0 {
		t.Errorf("readChildren() = %v, want empty", children)
	}
}

func TestPidTreeContainsSelf(t *testing.T) {
	found, err := pidTreeContains(1, 1)
	if err != nil {
		t.Fatalf("pidTreeContains(1, 1) error = %v", err)
	}
	if !found {
		t.Errorf("pidTreeContains(1, 1) = false, want true (root always contains itself)")
	}
}
