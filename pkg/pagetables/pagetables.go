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

// Package pagetables provides bit-exact x86-64 long-mode page-table entry
// records and the level geometry of the 4-level translation tree.
//
// Entries are plain integers manipulated with mask/shift accessors; there is
// no atomicity because the test payload runs a single virtual CPU and tables
// are only mutated during setup.
package pagetables

import (
	"github.com/chunfuwen/ltp/pkg/guestarch"
)

// EntriesPerTable is the number of entries in one table page.
const EntriesPerTable = 512

// PTEs is a single table page of the translation tree.
type PTEs [EntriesPerTable]PTE

// Level identifies one level of the 4-level translation tree, numbered from
// the leaf up. The names follow the Linux convention used for x86-64:
// pte (4 KiB), pmd (2 MiB), pud (1 GiB), pgd (512 GiB).
type Level int

// Tree levels, leaf first.
const (
	LevelPTE Level = iota
	LevelPMD
	LevelPUD
	LevelPGD

	// NumLevels is the depth of the tree in 4-level long mode.
	NumLevels = 4
)

// Shift returns the position of the level's index bits within a virtual
// address (12, 21, 30 or 39).
func (l Level) Shift() uint {
	return guestarch.PageShift + 9*uint(l)
}

// MapSize returns the size of the region mapped by one entry at this level.
func (l Level) MapSize() uint64 {
	return 1 << l.Shift()
}

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelPTE:
		return "pte"
	case LevelPMD:
		return "pmd"
	case LevelPUD:
		return "pud"
	case LevelPGD:
		return "pgd"
	default:
		return "invalid"
	}
}

// Index extracts the table index for va at the given level.
func Index(va guestarch.Vaddr, l Level) uint16 {
	return uint16((uint64(va) >> l.Shift()) & (EntriesPerTable - 1))
}
