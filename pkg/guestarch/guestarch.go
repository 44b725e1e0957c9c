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

// Package guestarch contains address types and paging constants for the
// simulated x86-64 guest.
//
// Virtual and physical addresses are distinct types so that a guest-virtual
// pointer can never be used where a physical frame address is expected. The
// arithmetic surface is deliberately narrow: page rounding, frame number
// extraction and page-granular offsets are the only supported operations.
package guestarch

// Page geometry for 4 KiB base pages.
const (
	PageShift = 12
	PageSize  = 1 << PageShift
)

// Vaddr is a guest-virtual address.
type Vaddr uint64

// Paddr is a guest-physical address.
type Paddr uint64

// Frame is a guest-physical page frame number.
type Frame uint64

// RoundDown returns the address rounded down to the nearest page boundary.
func (v Vaddr) RoundDown() Vaddr {
	return v &^ (PageSize - 1)
}

// PageOffset returns the offset of v within its page.
func (v Vaddr) PageOffset() uint64 {
	return uint64(v) & (PageSize - 1)
}

// IsPageAligned returns true iff v is page aligned.
func (v Vaddr) IsPageAligned() bool {
	return v.PageOffset() == 0
}

// RoundDown returns the address rounded down to the nearest page boundary.
func (p Paddr) RoundDown() Paddr {
	return p &^ (PageSize - 1)
}

// PageOffset returns the offset of p within its page.
func (p Paddr) PageOffset() uint64 {
	return uint64(p) & (PageSize - 1)
}

// IsPageAligned returns true iff p is page aligned.
func (p Paddr) IsPageAligned() bool {
	return p.PageOffset() == 0
}

// Frame returns the page frame number containing p.
func (p Paddr) Frame() Frame {
	return Frame(p >> PageShift)
}

// AddPages returns the address n pages above p.
func (p Paddr) AddPages(n uint64) Paddr {
	return p + Paddr(n*PageSize)
}

// Base returns the physical address of the first byte of the frame.
func (f Frame) Base() Paddr {
	return Paddr(f << PageShift)
}
