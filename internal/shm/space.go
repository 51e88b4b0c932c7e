/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

// CanCreate reports whether a region of size bytes fits on the shm mount.
// Only checked on Linux for paths under /dev/shm; other mounts and
// platforms always report true.
func CanCreate(size uint64, path string) bool {
	if runtime.GOOS != "linux" {
		return true
	}
	if !strings.HasPrefix(filepath.Clean(path), DevShmDir) {
		return true
	}
	stat, err := disk.Usage(DevShmDir)
	if err != nil {
		// unknown: let ftruncate report the real error
		return true
	}
	return stat.Free >= size
}

// RegionPath returns the filesystem path backing the named region.
func RegionPath(name string) string {
	return filepath.Join(DevShmDir, strings.TrimPrefix(name, "/"))
}
