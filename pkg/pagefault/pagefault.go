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

// Package pagefault is the guest payload for the KVM write-permission
// regression test (CVE-2021-38198).
//
// It builds two physically aliased virtual windows above 4 GiB that differ
// only in a top-level writable bit, populates the hardware paging-structure
// cache through the permissive window, then writes through the read-only one.
// A correct hypervisor raises a page fault; a defective shadow MMU derives
// the write permission from the stale cached walk and lets the write through.
//
// Fixed in kernel commit b1bd5cba3306 ("KVM: X86: MMU: Use the correct
// inherited permissions to get shadow page").
package pagefault

import (
	"fmt"

	"github.com/chunfuwen/ltp/pkg/guest"
)

// Main is the payload entry point. The environment must provide long-mode
// paging and the documented bootstrap mapping layout; anything else is an
// infrastructure failure, not a verdict.
func Main(env *guest.Env) {
	if env.CPU.ReadMSR(guest.MSREFER)&guest.EFERLMA == 0 {
		env.Test.Brk(guest.Broken, "bootstrap did not enable 64-bit paging")
	}

	m, err := buildAliasedMappings(env)
	if err != nil {
		env.Test.Brk(guest.Broken, fmt.Sprintf("aliased mapping setup: %v", err))
	}

	runProbe(env, m)
}
