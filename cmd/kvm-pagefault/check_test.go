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

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadBoolSysParam(t *testing.T) {
	dir := t.TempDir()
	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(dir, "param")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	for _, tc := range []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"enabled digit", "1\n", 1, false},
		{"disabled digit", "0\n", 0, false},
		{"enabled letter", "Y\n", 1, false},
		{"disabled letter", "N\n", 0, false},
		{"no trailing newline", "Y", 1, false},
		{"garbage", "maybe\n", -1, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := readBoolSysParam(write(t, tc.content))
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("readBoolSysParam = %d, want %d", got, tc.want)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		got, err := readBoolSysParam(filepath.Join(dir, "does-not-exist"))
		if err != nil {
			t.Fatalf("missing file: err = %v, want nil", err)
		}
		if got != -1 {
			t.Errorf("readBoolSysParam = %d, want -1 for a missing parameter", got)
		}
	})
}
