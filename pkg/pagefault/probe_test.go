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

package pagefault

import (
	"strings"
	"testing"

	"github.com/chunfuwen/ltp/pkg/guest"
	"github.com/chunfuwen/ltp/pkg/vmsim"
)

// TestEnforcedPermissions is the fixed-hypervisor scenario: the probing
// write faults at exactly the read-only target and the payload passes.
func TestEnforcedPermissions(t *testing.T) {
	res := vmsim.New(vmsim.Config{}).Run(Main)
	if res.Status != guest.Pass {
		t.Fatalf("result = %v %q, want TPASS", res.Status, res.Message)
	}
	if res.Message != passMessage {
		t.Errorf("message = %q, want %q", res.Message, passMessage)
	}
}

// TestVulnerableShadowPaging is the defective-hypervisor scenario: the write
// through the read-only alias silently succeeds and the payload reports the
// defect.
func TestVulnerableShadowPaging(t *testing.T) {
	res := vmsim.New(vmsim.Config{ShadowInheritanceBug: true}).Run(Main)
	if res.Status != guest.Fail {
		t.Fatalf("result = %v %q, want TFAIL", res.Status, res.Message)
	}
	if res.Message != failMessage {
		t.Errorf("message = %q, want %q", res.Message, failMessage)
	}
}

// TestNoLongMode is the unsupported-environment scenario: the payload must
// abort before probing anything.
func TestNoLongMode(t *testing.T) {
	res := vmsim.New(vmsim.Config{DisableLongMode: true}).Run(Main)
	if res.Status != guest.Broken {
		t.Fatalf("result = %v %q, want TBROK", res.Status, res.Message)
	}
	if !strings.Contains(res.Message, "64-bit paging") {
		t.Errorf("message = %q, want a bootstrap paging diagnostic", res.Message)
	}
}

// TestUnexpectedFaultEscalates checks the tie-break policy: a fault at any
// address other than the probe target must not be treated as a pass, it
// falls through to default fault handling.
func TestUnexpectedFaultEscalates(t *testing.T) {
	res := vmsim.New(vmsim.Config{}).Run(func(env *guest.Env) {
		m, err := buildAliasedMappings(env)
		if err != nil {
			t.Errorf("buildAliasedMappings: %v", err)
			env.Test.Exit()
		}
		p := &prober{env: env}
		env.Interrupts.Register(guest.PageFault, p.handlePageFault, m.readOnlyTarget)

		// Fault somewhere the handler does not expect: the unmapped
		// third GiB.
		env.Memory.Load32(0x80000000)
		t.Error("access to unmapped address fell through")
	})
	if res.Status != guest.Broken {
		t.Fatalf("result = %v %q, want TBROK via default fault handling", res.Status, res.Message)
	}
	if !strings.Contains(res.Message, "unexpected page fault") {
		t.Errorf("message = %q, want unexpected-fault diagnostic", res.Message)
	}
}

// TestWarmingReadsRequired reruns the probe without the cache-warming
// accesses on a defective machine. The defect path must NOT be reachable:
// the write faults, confirming that the property under test is permission
// checking after cache population through the alternate alias, not plain
// permission checking.
func TestWarmingReadsRequired(t *testing.T) {
	res := vmsim.New(vmsim.Config{ShadowInheritanceBug: true}).Run(func(env *guest.Env) {
		m, err := buildAliasedMappings(env)
		if err != nil {
			t.Errorf("buildAliasedMappings: %v", err)
			env.Test.Exit()
		}
		p := &prober{env: env}
		env.Interrupts.Register(guest.PageFault, p.handlePageFault, m.readOnlyTarget)

		// Probing write with no warming: steps 1-3 omitted.
		env.Memory.Store32(m.readOnlyTarget, 1)

		env.Test.Res(guest.Fail, failMessage)
	})
	// The expected fault fires and the handler recognizes its address.
	if res.Status != guest.Pass {
		t.Fatalf("result = %v %q, want the fault path (TPASS)", res.Status, res.Message)
	}
}

// TestProbeFaultAddress pins the faulting address seen by the handler to the
// read-only target.
func TestProbeFaultAddress(t *testing.T) {
	machine := vmsim.New(vmsim.Config{})
	res := machine.Run(Main)
	if res.Status != guest.Pass {
		t.Fatalf("result = %v %q, want TPASS", res.Status, res.Message)
	}
	if got := machine.CRegs().CR2; got != 0x140200000 {
		t.Errorf("CR2 = %#x, want 0x140200000 (read-only target)", got)
	}
}
