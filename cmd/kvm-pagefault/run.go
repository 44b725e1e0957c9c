// Copyright 2026 The ltp Authors.
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

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/chunfuwen/ltp/pkg/guest"
	"github.com/chunfuwen/ltp/pkg/pagefault"
	"github.com/chunfuwen/ltp/pkg/vmsim"
)

// Test metadata, mirroring the LTP tag block of the original test.
var testTags = [][2]string{
	{"linux-git", "b1bd5cba3306"},
	{"CVE", "2021-38198"},
}

// runCmd implements subcommands.Command for the "run" command.
type runCmd struct {
	shadowBug  bool
	noLongMode bool
	metadata   bool
}

// Name implements subcommands.Command.Name.
func (*runCmd) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*runCmd) Synopsis() string {
	return "execute the page-fault payload on the simulated guest machine"
}

// Usage implements subcommands.Command.Usage.
func (*runCmd) Usage() string {
	return `run [flags]
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.shadowBug, "shadow-bug", false, "model the shadow-paging permission inheritance defect (CVE-2021-38198)")
	f.BoolVar(&c.noLongMode, "no-long-mode", false, "boot the machine without 64-bit paging enabled")
	f.BoolVar(&c.metadata, "metadata", false, "print test metadata and exit")
}

// Execute implements subcommands.Command.Execute.
func (c *runCmd) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if c.metadata {
		for _, tag := range testTags {
			fmt.Printf("%s: %s\n", tag[0], tag[1])
		}
		return subcommands.ExitSuccess
	}

	machine := vmsim.New(vmsim.Config{
		ShadowInheritanceBug: c.shadowBug,
		DisableLongMode:      c.noLongMode,
	})
	res := machine.Run(pagefault.Main)

	log := logrus.WithField("status", res.Status.String())
	switch res.Status {
	case guest.Pass:
		log.Info(res.Message)
		return subcommands.ExitSuccess
	case guest.Conf:
		log.Warn(res.Message)
		return subcommands.ExitSuccess
	default:
		log.Error(res.Message)
		return subcommands.ExitFailure
	}
}
