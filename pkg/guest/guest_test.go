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

import (
	"testing"
)

func TestStatusString(t *testing.T) {
	for _, tc := range []struct {
		s    Status
		want string
	}{
		{Pass, "TPASS"},
		{Fail, "TFAIL"},
		{Broken, "TBROK"},
		{Conf, "TCONF"},
		{Info, "TINFO"},
		{Status(99), "UNKNOWN"},
	} {
		if got := tc.s.String(); got != tc.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tc.s), got, tc.want)
		}
	}
}

func TestVectorValues(t *testing.T) {
	// The payload depends on the hardware-defined vector numbers.
	if PageFault != 14 {
		t.Errorf("PageFault = %d, want 14", PageFault)
	}
	if GeneralProtectionFault != 13 {
		t.Errorf("GeneralProtectionFault = %d, want 13", GeneralProtectionFault)
	}
	if DoubleFault != 8 {
		t.Errorf("DoubleFault = %d, want 8", DoubleFault)
	}
}
