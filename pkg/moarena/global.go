// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moarena

import (
	"sync"
	"unsafe"
)

// The process default pool, for callers that want one pool for the whole
// program.  Created on first use and never closed.

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// Default returns the process-wide default pool.
func Default() *Pool {
	defaultPoolOnce.Do(func() {
		p, err := NewPool("global")
		if err != nil {
			// only fails on id exhaustion; first use reserves an id early
			panic(err)
		}
		defaultPool = p
	})
	return defaultPool
}

// Malloc allocates from the default pool's current generation.
func Malloc(size, align uintptr) unsafe.Pointer {
	return Default().Alloc(size, align)
}

// MallocTemp allocates scratch memory from the default pool.
func MallocTemp(size, align uintptr) unsafe.Pointer {
	return Default().AllocTemp(size, align)
}

// RegisterCopyHook sets the default pool's copy hook.
func RegisterCopyHook(hook func() error) {
	Default().RegisterCopyHook(hook)
}

// GC runs the generation flip on the default pool.
func GC() error {
	return Default().GC()
}

// Clean drains the default pool.
func Clean() {
	Default().Clean()
}

// CleanTemp drains the default pool's opposite generation.
func CleanTemp() {
	Default().CleanTemp()
}
