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
	"github.com/chunfuwen/ltp/pkg/guest"
	"github.com/chunfuwen/ltp/pkg/guestarch"
)

// Result messages, fixed strings matched by the host-side harness.
const (
	passMessage = "KVM enforces memory write permissions"
	failMessage = "write to read-only address did not page fault"
)

type prober struct {
	env *guest.Env
}

// handlePageFault resolves only the fault expected from the probing write.
// Any other faulting address means a setup or environment bug; declining the
// event lets default fault handling surface it instead of masking it as a
// pass.
func (p *prober) handlePageFault(userdata any, _ *guest.FaultFrame, _ uint64) bool {
	target := userdata.(guestarch.Vaddr)
	if guestarch.Vaddr(p.env.CPU.CRegs().CR2) == target {
		p.env.Test.Res(guest.Pass, passMessage)
		p.env.Test.Exit()
	}
	return false
}

// runProbe issues the adversarial access sequence. The order is load-bearing:
// the reads and the permitted write populate the paging-structure caches for
// both aliased windows before the probing write goes through the restrictive
// one.
func runProbe(env *guest.Env, m *mappings) {
	p := &prober{env: env}
	env.Interrupts.Register(guest.PageFault, p.handlePageFault, m.readOnlyTarget)

	// Fill the page table cache.
	val := env.Memory.Load32(m.cache1)
	env.Memory.Store32(m.writeTarget, val)
	val = env.Memory.Load32(m.cache2)

	// Trigger the page fault (unless the hypervisor is vulnerable).
	env.Memory.Store32(m.readOnlyTarget, val)

	// This line should be unreachable.
	env.Test.Res(guest.Fail, failMessage)
}
