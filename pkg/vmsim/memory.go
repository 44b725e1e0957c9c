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

	"github.com/chunfuwen/ltp/pkg/guestarch"
	"github.com/chunfuwen/ltp/pkg/pagetables"
)

// Physical frames are stored as raw 512-word pages; the same representation
// backs page tables and data, so a table view is just the frame itself.
// Frames materialize zeroed on first touch; RAM is sparse.
func (m *Machine) frame(f guestarch.Frame) *pagetables.PTEs {
	if p, ok := m.frames[f]; ok {
		return p
	}
	p := new(pagetables.PTEs)
	m.frames[f] = p
	return p
}

// Table implements guest.Memory.
func (m *Machine) Table(pa guestarch.Paddr) *pagetables.PTEs {
	return m.frame(pa.Frame())
}

// Load32 implements guest.Memory. The access is translated by the MMU; a
// fault is delivered to the registered handler and, if the handler resolves
// it without terminating the guest, the load is skipped and zero returned.
func (m *Machine) Load32(va guestarch.Vaddr) uint32 {
	pa, errCode, ok := m.translate(va, false)
	if !ok {
		m.deliverPageFault(va, errCode)
		return 0
	}
	return m.load32(pa)
}

// Store32 implements guest.Memory.
func (m *Machine) Store32(va guestarch.Vaddr, val uint32) {
	pa, errCode, ok := m.translate(va, true)
	if !ok {
		m.deliverPageFault(va, errCode)
		return
	}
	m.store32(pa, val)
}

// Accesses are 4-byte aligned; the payload only issues aligned word
// accesses.
func (m *Machine) load32(pa guestarch.Paddr) uint32 {
	f := m.frame(pa.Frame())
	word := uint64(f[pa.PageOffset()>>3])
	if pa.PageOffset()&4 != 0 {
		return uint32(word >> 32)
	}
	return uint32(word)
}

func (m *Machine) store32(pa guestarch.Paddr, val uint32) {
	f := m.frame(pa.Frame())
	i := pa.PageOffset() >> 3
	word := uint64(f[i])
	if pa.PageOffset()&4 != 0 {
		word = word&0x00000000ffffffff | uint64(val)<<32
	} else {
		word = word&^0xffffffff | uint64(val)
	}
	f[i] = pagetables.PTE(word)
}

// Zero implements guest.Memory. pa and size must be 8-byte granular.
func (m *Machine) Zero(pa guestarch.Paddr, size uint64) {
	for off := uint64(0); off < size; off += 8 {
		p := pa + guestarch.Paddr(off)
		m.frame(p.Frame())[p.PageOffset()>>3] = 0
	}
}

// allocPoison fills freshly allocated heap pages so that callers relying on
// zeroed memory without zeroing it themselves are caught by tests.
const allocPoison pagetables.PTE = 0xcccccccccccccccc

// AllocAligned implements guest.Heap. The returned block is physically
// contiguous and lies in identity-mapped low RAM.
func (m *Machine) AllocAligned(size, align uint64) (guestarch.Paddr, error) {
	if size == 0 {
		return 0, fmt.Errorf("zero-sized allocation")
	}
	if align == 0 || align&(align-1) != 0 {
		return 0, fmt.Errorf("alignment %#x is not a power of two", align)
	}
	base := (uint64(m.allocNext) + align - 1) &^ (align - 1)
	end := base + size
	if guestarch.Paddr(end) > heapLimit {
		return 0, fmt.Errorf("guest heap exhausted: need %#x bytes at %#x", size, base)
	}
	m.allocNext = guestarch.Paddr(end)

	first := guestarch.Paddr(base).RoundDown()
	for pa := first; pa < guestarch.Paddr(end); pa = pa.AddPages(1) {
		f := m.frame(pa.Frame())
		for i := range f {
			f[i] = allocPoison
		}
	}
	return guestarch.Paddr(base), nil
}
