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
	"testing"

	"github.com/chunfuwen/ltp/pkg/guest"
	"github.com/chunfuwen/ltp/pkg/guestarch"
	"github.com/chunfuwen/ltp/pkg/pagetables"
)

const (
	testWin4 guestarch.Vaddr = 0x100000000 // fifth 1 GiB slot, writable chain
	testWin5 guestarch.Vaddr = 0x140000000 // sixth 1 GiB slot, read-only at the top
)

// installAliasedWindows hand-builds two 1 GiB windows above 4 GiB that share
// one page-directory subtree; only the top-level writable bit differs.
func installAliasedWindows(t *testing.T, m *Machine) {
	t.Helper()

	const (
		pdPA   guestarch.Paddr = 0x200000
		ptPA   guestarch.Paddr = 0x201000
		dataPA guestarch.Paddr = 0x202000
	)

	pml4 := m.Table(m.PageTableRoot())
	pdpt := m.Table(pml4[0].Address())
	pdpt[4].Set(pdPA.Frame(), pagetables.MapOpts{Writable: true, UserAccessible: true})
	pdpt[5].Set(pdPA.Frame(), pagetables.MapOpts{UserAccessible: true})

	m.Table(pdPA)[0].Set(ptPA.Frame(), pagetables.MapOpts{Writable: true, UserAccessible: true})
	m.Table(ptPA)[0].Set(dataPA.Frame(), pagetables.MapOpts{Writable: true, UserAccessible: true})
}

func TestAliasedWindowsShareFrames(t *testing.T) {
	m := New(Config{})
	installAliasedWindows(t, m)

	pa4, _, ok := m.translate(testWin4, false)
	if !ok {
		t.Fatal("read translation through writable window faulted")
	}
	pa5, _, ok := m.translate(testWin5, false)
	if !ok {
		t.Fatal("read translation through read-only window faulted")
	}
	if pa4 != pa5 {
		t.Errorf("aliases resolve to %#x and %#x, want identical frames", uint64(pa4), uint64(pa5))
	}
}

// TestShadowInheritance exercises the permission-inheritance defect model.
// The write through the restrictive alias must fault unless the machine is
// configured with the bug AND the paging-structure cache was populated
// through the permissive alias first.
func TestShadowInheritance(t *testing.T) {
	for _, tc := range []struct {
		name      string
		bug       bool
		warm      bool
		wantFault bool
	}{
		{"correct mmu, warmed", false, true, true},
		{"correct mmu, cold", false, false, true},
		{"buggy mmu, warmed", true, true, false},
		// Without cache population through the permissive alias the
		// defect path is not reachable even on a buggy MMU.
		{"buggy mmu, cold", true, false, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := New(Config{ShadowInheritanceBug: tc.bug})
			installAliasedWindows(t, m)

			if tc.warm {
				if _, _, ok := m.translate(testWin4, false); !ok {
					t.Fatal("warming read faulted")
				}
				if _, _, ok := m.translate(testWin4, true); !ok {
					t.Fatal("warming write faulted")
				}
				if _, _, ok := m.translate(testWin5, false); !ok {
					t.Fatal("warming read through restrictive alias faulted")
				}
			}

			_, errCode, ok := m.translate(testWin5, true)
			if gotFault := !ok; gotFault != tc.wantFault {
				t.Fatalf("probe write fault = %v, want %v", gotFault, tc.wantFault)
			}
			if tc.wantFault {
				want := uint64(guest.PFErrPresent | guest.PFErrWrite)
				if errCode != want {
					t.Errorf("error code = %#x, want %#x", errCode, want)
				}
			}
		})
	}
}
