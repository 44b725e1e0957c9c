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
	"errors"
	"fmt"

	"github.com/chunfuwen/ltp/pkg/guest"
	"github.com/chunfuwen/ltp/pkg/guestarch"
	"github.com/chunfuwen/ltp/pkg/pagetables"
)

// Branch-level slots used for the two test windows. Slots 0 and 1 carry the
// identity mapping, 2 is unmapped and 3 is partially mapped by bootstrap, so
// 4 and 5 are the first two free 1 GiB windows — both above the 32-bit
// address space, where nothing else (not even instruction fetch) can evict
// the paging-structure cache entries under test.
const (
	permissiveSlot  = 4
	restrictiveSlot = 5
)

var errLayout = errors.New("initial page-table layout does not match the bootstrap contract")

// mappings are the four probe pointers. Each cache/target pair lives in its
// own 1 GiB window; the pairs alias the same physical frames and differ only
// in the branch-level writable bit.
type mappings struct {
	cache1         guestarch.Vaddr
	writeTarget    guestarch.Vaddr
	cache2         guestarch.Vaddr
	readOnlyTarget guestarch.Vaddr
}

// findBranchPoint locates the table used as scratch space for the custom
// mappings: starting at the root, descend through entry 0 while entry 1 is
// absent. Bootstrap maps the first two 1 GiB regions, so with the documented
// layout the search stops at the 1 GiB-granule level. The walk is depth
// bounded; running out of levels means the precondition does not hold.
func findBranchPoint(env *guest.Env) (guestarch.Paddr, pagetables.Level, error) {
	table := env.CPU.PageTableRoot()
	for level := pagetables.LevelPGD; level >= pagetables.LevelPTE; level-- {
		t := env.Memory.Table(table)
		if t[1].Present() {
			return table, level, nil
		}
		if !t[0].Present() || t[0].Super() {
			return 0, 0, fmt.Errorf("%w: no branch below level %v", errLayout, level)
		}
		table = t[0].Address()
	}
	return 0, 0, fmt.Errorf("%w: branch search walked past the leaf level", errLayout)
}

// buildAliasedMappings allocates one block of 3 table pages plus 2 data
// pages and hangs it twice off the branch table: slot 4 fully writable,
// slot 5 identical but read-only. Beneath the shared sub-tree, the first
// 2 MiB range is read-only at the directory level and the second writable,
// each with its own data page, giving:
//
//	cache1      = slot4 base          -> data page 1 (read path)
//	writeTarget = slot4 base + 2 MiB  -> data page 2 (every level writable)
//	cache2      = slot5 base          -> data page 1 (read path)
//	readOnly    = slot5 base + 2 MiB  -> data page 2 (read-only at the top)
//
// The cache and target pointers are 2 MiB apart so the warming accesses
// cannot touch the hardware cache lines used by the probing write.
func buildAliasedMappings(env *guest.Env) (*mappings, error) {
	branch, level, err := findBranchPoint(env)
	if err != nil {
		return nil, err
	}
	if level != pagetables.LevelPUD {
		return nil, fmt.Errorf("%w: branch point at %v, want pud", errLayout, level)
	}

	bt := env.Memory.Table(branch)
	if bt[permissiveSlot].Present() || bt[restrictiveSlot].Present() {
		return nil, fmt.Errorf("%w: branch slots %d/%d already in use", errLayout, permissiveSlot, restrictiveSlot)
	}

	// 3 page-table pages + 2 data pages, physically contiguous. Stale
	// bytes must never be interpreted as valid entries, so zero the whole
	// block before linking it in.
	block, err := env.Heap.AllocAligned(5*guestarch.PageSize, guestarch.PageSize)
	if err != nil {
		return nil, fmt.Errorf("allocating test pages: %w", err)
	}
	env.Memory.Zero(block, 5*guestarch.PageSize)

	user := pagetables.MapOpts{UserAccessible: true}
	userRW := pagetables.MapOpts{Writable: true, UserAccessible: true}

	bt[permissiveSlot].Set(block.Frame(), userRW)
	bt[restrictiveSlot].Set(block.Frame(), user)

	// Shared page directory: first 2 MiB read-only, second writable.
	pd := env.Memory.Table(block)
	pd[0].Set(block.AddPages(1).Frame(), user)
	pd[1].Set(block.AddPages(2).Frame(), userRW)

	// Leaf tables, one data page each.
	env.Memory.Table(block.AddPages(1))[0].Set(block.AddPages(3).Frame(), userRW)
	env.Memory.Table(block.AddPages(2))[0].Set(block.AddPages(4).Frame(), userRW)

	// The branch table was reached through entry 0 at every level above,
	// so the windows' virtual bases are just the slot indexes scaled by
	// the branch level.
	win1 := guestarch.Vaddr(permissiveSlot << level.Shift())
	win2 := guestarch.Vaddr(restrictiveSlot << level.Shift())
	targetOffset := guestarch.Vaddr(pagetables.LevelPMD.MapSize())

	return &mappings{
		cache1:         win1,
		writeTarget:    win1 + targetOffset,
		cache2:         win2,
		readOnlyTarget: win2 + targetOffset,
	}, nil
}
