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
	"os"
	"os/exec"
	"strings"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Hardware-assisted paging (TDP) hides the shadow-MMU code path under test,
// so a meaningful run needs these module parameters off.
const (
	tdpAMDParam   = "/sys/module/kvm_amd/parameters/npt"
	tdpIntelParam = "/sys/module/kvm_intel/parameters/ept"
	tdpMMUParam   = "/sys/module/kvm/parameters/tdp_mmu"
)

// checkCmd implements subcommands.Command for the "check" command.
type checkCmd struct {
	reload bool
}

// Name implements subcommands.Command.Name.
func (*checkCmd) Name() string {
	return "check"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*checkCmd) Synopsis() string {
	return "inspect the host for conditions that would mask the defect"
}

// Usage implements subcommands.Command.Usage.
func (*checkCmd) Usage() string {
	return `check [-reload]
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *checkCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.reload, "reload", false, "reload KVM modules with hardware-assisted paging disabled (needs root)")
}

// Execute implements subcommands.Command.Execute.
func (c *checkCmd) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		logrus.WithError(err).Error("reading machine architecture")
		return subcommands.ExitFailure
	}
	if arch := unix.ByteSliceToString(uts.Machine[:]); arch != "x86_64" {
		logrus.WithField("status", "TCONF").Warnf("test supported only on x86_64, host is %s", arch)
		return subcommands.ExitSuccess
	}

	for _, tdp := range []struct {
		module string
		path   string
		off    string
	}{
		{"kvm_amd", tdpAMDParam, "npt=0"},
		{"kvm_intel", tdpIntelParam, "ept=0"},
	} {
		enabled, err := readBoolSysParam(tdp.path)
		if err != nil {
			logrus.WithError(err).Warnf("reading %s", tdp.path)
			continue
		}
		if enabled <= 0 {
			continue
		}
		if !c.reload {
			logrus.Warnf("%s has hardware-assisted paging enabled; rerun with -reload to disable it", tdp.module)
			continue
		}
		if err := reloadModule(tdp.module, tdp.off); err != nil {
			logrus.WithError(err).Errorf("reloading %s", tdp.module)
			return subcommands.ExitFailure
		}
		logrus.Infof("reloaded %s with %s", tdp.module, tdp.off)
	}

	if enabled, err := readBoolSysParam(tdpMMUParam); err == nil && enabled > 0 {
		logrus.Warn("tdp_mmu is enabled, beware of false negatives")
	}
	return subcommands.ExitSuccess
}

// readBoolSysParam reads a kernel boolean parameter from sysfs. It returns
// -1 without error when the file does not exist (module not loaded).
func readBoolSysParam(path string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	switch val := strings.TrimSpace(string(data)); val {
	case "Y", "y", "1":
		return 1, nil
	case "N", "n", "0":
		return 0, nil
	default:
		return -1, fmt.Errorf("%s: unexpected boolean value %q", path, val)
	}
}

// reloadModule reloads a kernel module with the given parameters.
func reloadModule(name string, params ...string) error {
	if out, err := exec.Command("rmmod", name).CombinedOutput(); err != nil {
		return fmt.Errorf("rmmod %s: %v: %s", name, err, strings.TrimSpace(string(out)))
	}
	args := append([]string{name}, params...)
	if out, err := exec.Command("modprobe", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("modprobe %s: %v: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
