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

package guest

// Vector is an exception vector.
type Vector uint64

// Exception vectors (Intel SDM Vol 3, Table 6-1).
const (
	DivideByZero Vector = iota
	Debug
	NMI
	Breakpoint
	Overflow
	BoundRangeExceeded
	InvalidOpcode
	DeviceNotAvailable
	DoubleFault
	CoprocessorSegmentOverrun
	InvalidTSS
	SegmentNotPresent
	StackSegmentFault
	GeneralProtectionFault
	PageFault
	_
	X87FloatingPointException
	AlignmentCheck
	MachineCheck
	SIMDFloatingPointException
	VirtualizationException
)

// FaultFrame is the saved execution state delivered with a trapped
// exception. It is owned by the handler invocation and must not be retained.
type FaultFrame struct {
	RIP    uint64
	CS     uint64
	RFLAGS uint64
	RSP    uint64
	SS     uint64
}

// Model-specific registers.
const (
	// MSREFER is the extended feature enable register.
	MSREFER uint32 = 0xc0000080
)

// EFER bits.
const (
	EFERSCE = 1 << 0
	EFERLME = 1 << 8
	EFERLMA = 1 << 10
	EFERNXE = 1 << 11
)

// Page-fault error code bits (Intel SDM Vol 3, Table 4-12).
const (
	// PFErrPresent is set when the fault was a permission violation on
	// a present page, clear when the page was not present.
	PFErrPresent = 1 << 0

	// PFErrWrite is set when the faulting access was a write.
	PFErrWrite = 1 << 1

	// PFErrUser is set when the fault occurred in user mode.
	PFErrUser = 1 << 2
)
