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

// Binary nscon implements namespace_controller_cli, the create/run/exec/
// update command line tool spec.md §6 describes.
package main

import (
	"os"

	"github.com/nscon/nscon/cli"
	"github.com/nscon/nscon/configurator"
	"github.com/nscon/nscon/containerspec"
	"github.com/nscon/nscon/controller"
	"github.com/nscon/nscon/launcher"
	"github.com/nscon/nscon/mountutil"
	"github.com/nscon/nscon/sysops"
	"github.com/nscon/nscon/timeutil"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == launcher.ReexecSentinel {
		proc := sysops.Linux{}
		fs := sysops.Linux{}
		ctrl := controller.New(proc, fs, sysops.Linux{}, mountutil.NewProd(fs), timeutil.Prod{})
		launcher.ChildMain(func(spec *containerspec.ContainerSpec) []configurator.NsConfigurator {
			inside, _ := ctrl.ConfiguratorsFor(spec)
			return inside
		}, proc)
		return
	}
	os.Exit(cli.Main(os.Args))
}
