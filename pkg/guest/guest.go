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

// Package guest defines the services a test payload consumes from its
// execution environment: translated memory access, CPU state, heap
// allocation, exception registration and result reporting.
//
// The services are interfaces so the payload can run against a real guest
// harness or against an injected machine model. All ambient hardware state
// (page-table root, paging mode) is threaded through Env explicitly.
package guest

import (
	"github.com/chunfuwen/ltp/pkg/guestarch"
	"github.com/chunfuwen/ltp/pkg/pagetables"
)

// Status is a test verdict, following the LTP result taxonomy.
type Status int

// Test verdicts.
const (
	// Pass indicates the tested behavior was observed.
	Pass Status = iota

	// Fail indicates the defect under test was reproduced.
	Fail

	// Broken indicates a test infrastructure failure; not a verdict on
	// the defect itself.
	Broken

	// Conf indicates the environment cannot run the test.
	Conf

	// Info is a diagnostic message, not a verdict.
	Info
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Pass:
		return "TPASS"
	case Fail:
		return "TFAIL"
	case Broken:
		return "TBROK"
	case Conf:
		return "TCONF"
	case Info:
		return "TINFO"
	default:
		return "UNKNOWN"
	}
}

// Result is the single outcome reported by a payload run.
type Result struct {
	Status  Status
	Message string
}

// CRegs is a snapshot of the control registers. CR2 holds the faulting
// virtual address after a page fault.
type CRegs struct {
	CR0 uint64
	CR2 uint64
	CR3 uint64
	CR4 uint64
}

// Memory is translated and physical guest memory access.
//
// Load32 and Store32 go through the MMU and may deliver a page fault to the
// registered handler instead of completing; if the fault is handled without
// terminating the guest, the access is skipped and the call returns.
type Memory interface {
	// Load32 reads a 32-bit value through the MMU.
	Load32(va guestarch.Vaddr) uint32

	// Store32 writes a 32-bit value through the MMU.
	Store32(va guestarch.Vaddr, val uint32)

	// Table returns a table view of the physical frame at pa. The frame
	// must lie in identity-mapped RAM.
	Table(pa guestarch.Paddr) *pagetables.PTEs

	// Zero clears size bytes of physical memory starting at pa.
	Zero(pa guestarch.Paddr, size uint64)
}

// CPU exposes the virtual CPU state the payload depends on.
type CPU interface {
	// ReadMSR reads a model-specific register.
	ReadMSR(reg uint32) uint64

	// CRegs returns the current control register values.
	CRegs() CRegs

	// PageTableRoot returns the physical address of the active top-level
	// page table (the CR3 frame).
	PageTableRoot() guestarch.Paddr
}

// Heap allocates guest memory with test lifetime.
type Heap interface {
	// AllocAligned returns a physically contiguous, identity-mapped
	// block. The block is NOT guaranteed to be zeroed.
	AllocAligned(size, align uint64) (guestarch.Paddr, error)
}

// FaultHandler is invoked when a registered exception is delivered. It
// returns true iff it fully resolved the event; returning false propagates
// the event to the default action, which terminates the guest with
// diagnostic state.
type FaultHandler func(userdata any, frame *FaultFrame, errCode uint64) bool

// Interrupts registers exception handlers.
type Interrupts interface {
	// Register installs handler for the given vector, replacing any
	// previous registration. userdata is passed through verbatim.
	Register(v Vector, handler FaultHandler, userdata any)
}

// Test reports results to the external harness.
type Test interface {
	// Res records a test result. It returns; the guest keeps running.
	Res(s Status, msg string)

	// Brk records an infrastructure failure and terminates the guest.
	// It does not return.
	Brk(s Status, msg string)

	// Exit terminates the guest. It does not return; no further payload
	// instructions execute.
	Exit()
}

// Env threads every service a payload needs through one explicit context.
type Env struct {
	Memory     Memory
	CPU        CPU
	Heap       Heap
	Interrupts Interrupts
	Test       Test
}
