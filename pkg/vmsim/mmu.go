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

package vmsim

import (
	"fmt"

	"github.com/chunfuwen/ltp/pkg/guest"
	"github.com/chunfuwen/ltp/pkg/guestarch"
	"github.com/chunfuwen/ltp/pkg/pagetables"
)

// shadowEntry is one paging-structure cache record: the write permission
// accumulated above a table when it was first walked through.
type shadowEntry struct {
	writable bool
}

// translate walks the 4-level tree for va as a supervisor access. ok is
// false when the walk faults; errCode then carries the page-fault error
// code. The user/supervisor bit is not enforced: the payload runs in ring 0
// and the model has no SMAP.
func (m *Machine) translate(va guestarch.Vaddr, write bool) (pa guestarch.Paddr, errCode uint64, ok bool) {
	if write {
		errCode |= guest.PFErrWrite
	}
	table := m.root
	writeAllowed := true
	for level := pagetables.LevelPGD; ; level-- {
		if table != m.root {
			// Paging-structure cache. A correct MMU recomputes the
			// permissions inherited from the levels above on every
			// walk; the defective shadow MMU reuses whatever was
			// recorded when the table was first shadowed, keyed by
			// frame alone (CVE-2021-38198).
			f := table.Frame()
			if prev, cached := m.shadow[f]; cached {
				if m.cfg.ShadowInheritanceBug {
					writeAllowed = prev.writable
				}
			} else {
				m.shadow[f] = shadowEntry{writable: writeAllowed}
			}
		}
		entry := m.Table(table)[pagetables.Index(va, level)]
		if !entry.Present() {
			return 0, errCode, false
		}
		if !entry.Writable() {
			writeAllowed = false
		}
		if entry.Super() || level == pagetables.LevelPTE {
			if write && !writeAllowed {
				return 0, errCode | guest.PFErrPresent, false
			}
			mask := level.MapSize() - 1
			return entry.Address() + guestarch.Paddr(uint64(va)&mask), 0, true
		}
		table = entry.Address()
	}
}

// deliverPageFault hands the fault to the registered handler. An unhandled
// fault takes the default action: the guest terminates with diagnostic
// state. It is never silently swallowed.
func (m *Machine) deliverPageFault(va guestarch.Vaddr, errCode uint64) {
	m.cregs.CR2 = uint64(va)
	frame := &guest.FaultFrame{
		RIP:    syntheticRIP,
		CS:     kernelCS,
		RFLAGS: rflagsFixed,
		RSP:    syntheticRSP,
		SS:     kernelSS,
	}
	if reg, registered := m.handlers[guest.PageFault]; registered {
		if reg.handler(reg.userdata, frame, errCode) {
			// Resolved; resume after the faulting access.
			return
		}
	}
	m.Brk(guest.Broken, fmt.Sprintf("unexpected page fault, cr2=%#x, error code %#x", uint64(va), errCode))
}
