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

// Package vmsim is a software model of the guest machine the page-fault
// payload runs on: one virtual CPU in 4-level long mode, sparse physical
// RAM, and an MMU with a paging-structure cache.
//
// It is not a general paging simulator. It models exactly what the payload
// exercises: 4 KiB pages plus 2 MiB/1 GiB super pages, supervisor accesses,
// page-fault delivery, and one defect knob — the shadow-paging permission
// inheritance bug of CVE-2021-38198.
package vmsim

import (
	"github.com/chunfuwen/ltp/pkg/guest"
	"github.com/chunfuwen/ltp/pkg/guestarch"
	"github.com/chunfuwen/ltp/pkg/pagetables"
)

// Config selects the machine model variant.
type Config struct {
	// ShadowInheritanceBug makes the MMU derive effective write
	// permissions from stale paging-structure cache entries, reproducing
	// the hypervisor defect under test.
	ShadowInheritanceBug bool

	// DisableLongMode boots the machine without EFER.LMA, modeling a
	// bootstrap that failed to enable 64-bit paging.
	DisableLongMode bool
}

// Fixed physical layout established by the simulated bootstrap. The guest
// entry contract: the first two 1 GiB regions are identity mapped, the third
// is unmapped, and only the last page of the fourth is identity mapped.
const (
	pml4Base guestarch.Paddr = 0x1000
	pdptBase guestarch.Paddr = 0x2000
	pdBase   guestarch.Paddr = 0x3000
	ptBase   guestarch.Paddr = 0x4000

	lastIdentityPage guestarch.Paddr = 0xfffff000

	heapBase  guestarch.Paddr = 0x100000
	heapLimit guestarch.Paddr = 0x40000000
)

// Synthetic saved execution state delivered with faults. The model does not
// track an instruction stream.
const (
	syntheticRIP = 0x401000
	syntheticRSP = 0x9f000
	kernelCS     = 0x08
	kernelSS     = 0x10
	rflagsFixed  = 0x2
)

type registration struct {
	handler  guest.FaultHandler
	userdata any
}

// Machine is one simulated guest. It implements every service in guest.Env.
type Machine struct {
	cfg Config

	frames    map[guestarch.Frame]*pagetables.PTEs
	allocNext guestarch.Paddr

	root  guestarch.Paddr
	cregs guest.CRegs
	msrs  map[uint32]uint64

	handlers map[guest.Vector]registration
	shadow   map[guestarch.Frame]shadowEntry

	result *guest.Result
}

// New returns a machine booted per the guest entry contract.
func New(cfg Config) *Machine {
	m := &Machine{
		cfg:       cfg,
		frames:    make(map[guestarch.Frame]*pagetables.PTEs),
		allocNext: heapBase,
		root:      pml4Base,
		msrs:      make(map[uint32]uint64),
		handlers:  make(map[guest.Vector]registration),
		shadow:    make(map[guestarch.Frame]shadowEntry),
	}

	efer := uint64(guest.EFERSCE | guest.EFERLME | guest.EFERNXE)
	if !cfg.DisableLongMode {
		efer |= guest.EFERLMA
	}
	m.msrs[guest.MSREFER] = efer
	m.cregs = guest.CRegs{
		CR0: cr0PE | cr0PG,
		CR3: uint64(pml4Base),
		CR4: cr4PAE,
	}

	// Bootstrap page tables.
	pml4 := m.Table(pml4Base)
	pml4[0].Set(pdptBase.Frame(), pagetables.MapOpts{Writable: true})

	pdpt := m.Table(pdptBase)
	pdpt[0].SetSuper(0, pagetables.MapOpts{Writable: true})
	pdpt[1].SetSuper(guestarch.Paddr(1<<30).Frame(), pagetables.MapOpts{Writable: true})
	pdpt[3].Set(pdBase.Frame(), pagetables.MapOpts{Writable: true})

	pd := m.Table(pdBase)
	pd[pagetables.EntriesPerTable-1].Set(ptBase.Frame(), pagetables.MapOpts{Writable: true})

	pt := m.Table(ptBase)
	pt[pagetables.EntriesPerTable-1].Set(lastIdentityPage.Frame(), pagetables.MapOpts{Writable: true})

	return m
}

// Control register bits.
const (
	cr0PE  = 1 << 0
	cr0PG  = 1 << 31
	cr4PAE = 1 << 5
)

// Env returns the service context handed to a payload.
func (m *Machine) Env() *guest.Env {
	return &guest.Env{
		Memory:     m,
		CPU:        m,
		Heap:       m,
		Interrupts: m,
		Test:       m,
	}
}

// guestExit unwinds the payload stack when the guest terminates. Recovered
// only by Run.
type guestExit struct{}

// Run executes payload on the machine and returns the recorded result.
// Guest termination is non-local: once the payload exits the guest, no
// further payload code executes.
func (m *Machine) Run(payload func(*guest.Env)) (res guest.Result) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(guestExit); !ok {
				panic(r)
			}
		}
		if m.result == nil {
			res = guest.Result{Status: guest.Broken, Message: "guest exited without reporting a result"}
			return
		}
		res = *m.result
	}()
	payload(m.Env())
	return
}

// Res implements guest.Test.
func (m *Machine) Res(s guest.Status, msg string) {
	m.result = &guest.Result{Status: s, Message: msg}
}

// Brk implements guest.Test.
func (m *Machine) Brk(s guest.Status, msg string) {
	m.Res(s, msg)
	m.Exit()
}

// Exit implements guest.Test.
func (m *Machine) Exit() {
	panic(guestExit{})
}

// ReadMSR implements guest.CPU.
func (m *Machine) ReadMSR(reg uint32) uint64 {
	return m.msrs[reg]
}

// CRegs implements guest.CPU.
func (m *Machine) CRegs() guest.CRegs {
	return m.cregs
}

// PageTableRoot implements guest.CPU.
func (m *Machine) PageTableRoot() guestarch.Paddr {
	return m.root
}

// Register implements guest.Interrupts.
func (m *Machine) Register(v guest.Vector, handler guest.FaultHandler, userdata any) {
	m.handlers[v] = registration{handler: handler, userdata: userdata}
}
