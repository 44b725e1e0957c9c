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

package pagetables

import (
	"github.com/chunfuwen/ltp/pkg/guestarch"
)

// Bits in page table entries (Intel SDM Vol 3, Table 4-19).
const (
	present      = 0x001
	writable     = 0x002
	user         = 0x004
	writeThrough = 0x008
	cacheDisable = 0x010
	accessed     = 0x020
	dirty        = 0x040
	super        = 0x080
	global       = 0x100

	executeDisable = 1 << 63
	optionMask     = executeDisable | 0xfff
)

// PTE is a page table entry.
type PTE uint64

// MapOpts are the permission bits applied when an entry is set.
type MapOpts struct {
	// Writable is the entry's write permission bit. The effective write
	// permission of a mapping is the conjunction of this bit across every
	// level of the walk.
	Writable bool

	// UserAccessible is the entry's user/supervisor bit.
	UserAccessible bool

	// Global marks the translation as global (not flushed on CR3 load).
	Global bool
}

// Clear clears this PTE, including super page information.
func (p *PTE) Clear() {
	*p = 0
}

// Present returns true iff this entry is present.
func (p PTE) Present() bool {
	return p&present != 0
}

// Writable returns true iff the entry permits writes at this level.
func (p PTE) Writable() bool {
	return p&writable != 0
}

// UserAccessible returns true iff the entry permits user-mode access.
func (p PTE) UserAccessible() bool {
	return p&user != 0
}

// Super returns true iff this entry maps a super page (2 MiB or 1 GiB)
// rather than pointing to a next-level table.
func (p PTE) Super() bool {
	return p&super != 0
}

// Address extracts the physical address. Only meaningful if Present is true.
func (p PTE) Address() guestarch.Paddr {
	return guestarch.Paddr(uint64(p) &^ uint64(optionMask))
}

// Frame extracts the physical frame number. Only meaningful if Present is
// true.
func (p PTE) Frame() guestarch.Frame {
	return p.Address().Frame()
}

// Opts returns the permission bits of this entry.
func (p PTE) Opts() MapOpts {
	return MapOpts{
		Writable:       p.Writable(),
		UserAccessible: p.UserAccessible(),
		Global:         p&global != 0,
	}
}

// Set points this entry at the given frame with the given permissions,
// marking it present. The frame is a next-level table unless SetSuper is
// used instead.
func (p *PTE) Set(f guestarch.Frame, opts MapOpts) {
	v := uint64(f.Base()) | present
	if opts.Writable {
		v |= writable
	}
	if opts.UserAccessible {
		v |= user
	}
	if opts.Global {
		v |= global
	}
	*p = PTE(v)
}

// SetSuper points this entry at a super page of the level's size.
func (p *PTE) SetSuper(f guestarch.Frame, opts MapOpts) {
	p.Set(f, opts)
	*p |= super
}
