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
	"unsafe"
)

// Typed layer over the byte-level pool API.  Values placed in a pool are
// invisible to the Go garbage collector: they may point at each other,
// but must not be the only reference keeping a Go-heap object alive.

// New allocates a zeroed T in p's current generation.
func New[T any](p *Pool) *T {
	var v T
	return (*T)(p.Alloc(unsafe.Sizeof(v), unsafe.Alignof(v)))
}

// NewTemp allocates a zeroed T in the opposite generation.
func NewTemp[T any](p *Pool) *T {
	var v T
	return (*T)(p.AllocTemp(unsafe.Sizeof(v), unsafe.Alignof(v)))
}

// NewSlice allocates a zeroed []T of length n backed by p's current
// generation.
func NewSlice[T any](p *Pool, n int) []T {
	if n == 0 {
		return nil
	}
	var v T
	ptr := p.Alloc(unsafe.Sizeof(v)*uintptr(n), unsafe.Alignof(v))
	return unsafe.Slice((*T)(ptr), n)
}

// NewTempSlice allocates a zeroed []T of length n in the opposite
// generation.
func NewTempSlice[T any](p *Pool, n int) []T {
	if n == 0 {
		return nil
	}
	var v T
	ptr := p.AllocTemp(unsafe.Sizeof(v)*uintptr(n), unsafe.Alignof(v))
	return unsafe.Slice((*T)(ptr), n)
}

// Clone copies v into p's current generation.  Copy hooks use it to
// migrate values into the fresh generation during GC.
func Clone[T any](p *Pool, v T) *T {
	ptr := New[T](p)
	*ptr = v
	return ptr
}

// Free is a no-op kept for API symmetry; pool memory is reclaimed only
// in bulk.
func Free[T any](p *Pool, v *T) {}

// Allocator adapts a pool generation to a byte-slice allocator shape for
// growable containers.  Free never returns memory; the backing
// bytes live until the pool is drained.
type Allocator struct {
	pool *Pool
	temp bool
}

// Allocator returns an adaptor bound to p's current generation.
func (p *Pool) Allocator() Allocator {
	return Allocator{pool: p}
}

// TempAllocator returns an adaptor bound to the opposite generation.
func (p *Pool) TempAllocator() Allocator {
	return Allocator{pool: p, temp: true}
}

const allocatorAlign = unsafe.Alignof(float64(0))

// Alloc returns a zeroed byte slice of length n.
func (a Allocator) Alloc(n int) []byte {
	if n == 0 {
		return nil
	}
	var ptr unsafe.Pointer
	if a.temp {
		ptr = a.pool.AllocTemp(uintptr(n), allocatorAlign)
	} else {
		ptr = a.pool.Alloc(uintptr(n), allocatorAlign)
	}
	return unsafe.Slice((*byte)(ptr), n)
}

// Free is a no-op.
func (a Allocator) Free([]byte) {}
