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

// Package arena implements a monotonic bump allocator.  Allocations are
// served by advancing a cursor inside mmap-backed blocks; there is no
// per-allocation free.  Reset unmaps every block at once.
//
// An Arena is not safe for concurrent use.  Callers serialize access; in
// moarena each (shard, pool, generation) slot guards its arena with the
// slot mutex.
//
// Memory handed out is zeroed: blocks come straight from anonymous mmap
// and are never recycled after Reset.  Values stored in an arena are
// invisible to the Go garbage collector, so they must not be the only
// reference to Go-heap-allocated objects.
package arena

import (
	"unsafe"

	"github.com/matrixorigin/moarena/pkg/common/moerr"
	"golang.org/x/sys/unix"
)

const (
	// DefaultBlockSize is the size of the first backing block.
	DefaultBlockSize = 64 << 10
	// DefaultMaxBlockSize caps the geometric block growth.
	DefaultMaxBlockSize = 1 << 20
)

type block struct {
	data []byte
	off  uintptr
}

// alloc bumps the cursor.  Block bases are page aligned, so aligning the
// offset is enough for any align up to the page size.
func (b *block) alloc(size, align uintptr) (unsafe.Pointer, bool) {
	off := (b.off + align - 1) &^ (align - 1)
	if off+size > uintptr(len(b.data)) {
		return nil, false
	}
	b.off = off + size
	return unsafe.Pointer(unsafe.SliceData(b.data[off:])), true
}

// Arena is a chain of backing blocks with monotonically increasing
// cursors.  The zero value is not usable; call New.
type Arena struct {
	blocks    []*block
	blockSize int
	maxSize   int
	nextSize  int
	inuse     uint64
}

// Option configures an Arena.
type Option func(*Arena)

// WithBlockSize sets the size of the first backing block.
func WithBlockSize(n int) Option {
	return func(a *Arena) {
		a.blockSize = n
	}
}

// WithMaxBlockSize caps the block growth.
func WithMaxBlockSize(n int) Option {
	return func(a *Arena) {
		a.maxSize = n
	}
}

func New(opts ...Option) *Arena {
	a := &Arena{
		blockSize: DefaultBlockSize,
		maxSize:   DefaultMaxBlockSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxSize < a.blockSize {
		a.maxSize = a.blockSize
	}
	a.nextSize = a.blockSize
	return a
}

// Alloc returns a pointer to size bytes aligned to align.  align must be a
// power of two no larger than the page size.  Alloc never returns nil;
// failure to grow the arena is fatal.
func (a *Arena) Alloc(size, align uintptr) unsafe.Pointer {
	if align == 0 || align&(align-1) != 0 {
		panic(moerr.NewInvalidArg(moerr.Context(), "align", align))
	}
	if n := len(a.blocks); n > 0 {
		b := a.blocks[n-1]
		off := b.off
		if ptr, ok := b.alloc(size, align); ok {
			a.inuse += uint64(b.off - off)
			return ptr
		}
	}
	b := a.grow(int(size + align))
	ptr, ok := b.alloc(size, align)
	if !ok {
		panic(moerr.NewInternalError(moerr.Context(), "fresh block of %d cannot hold %d bytes", len(b.data), size))
	}
	a.inuse += uint64(b.off)
	return ptr
}

// grow maps a new block of at least min bytes and appends it.
func (a *Arena) grow(min int) *block {
	size := a.nextSize
	if min > size {
		size = min
	}
	if a.nextSize < a.maxSize {
		a.nextSize = min(a.nextSize*2, a.maxSize)
	}
	data, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		// The system allocator refused to grow the arena.  The allocate
		// contract is non-nullable, so this is fatal.
		panic(moerr.NewOOM(moerr.Context()).WithDetail(err.Error()))
	}
	b := &block{data: data}
	a.blocks = append(a.blocks, b)
	return b
}

// Reset unmaps every backing block, returning the arena to its empty
// state.  O(blocks).  The arena remains usable; growth restarts at the
// configured block size.
func (a *Arena) Reset() {
	for _, b := range a.blocks {
		if err := unix.Munmap(b.data); err != nil {
			panic(err)
		}
	}
	a.blocks = nil
	a.nextSize = a.blockSize
	a.inuse = 0
}

// Free is a no-op kept for API symmetry; arena memory is reclaimed only
// in bulk by Reset.
func (a *Arena) Free(unsafe.Pointer) {}

// InuseBytes returns the sum of cursor offsets over all blocks.
func (a *Arena) InuseBytes() uint64 {
	return a.inuse
}

// MappedBytes returns the total size of the backing blocks.
func (a *Arena) MappedBytes() uint64 {
	var n uint64
	for _, b := range a.blocks {
		n += uint64(len(b.data))
	}
	return n
}

// NumBlocks returns the number of live backing blocks.
func (a *Arena) NumBlocks() int {
	return len(a.blocks)
}

// Contains reports whether ptr points into one of the arena's blocks.
func (a *Arena) Contains(ptr unsafe.Pointer) bool {
	u := uintptr(ptr)
	for _, b := range a.blocks {
		base := uintptr(unsafe.Pointer(unsafe.SliceData(b.data)))
		if u >= base && u < base+uintptr(len(b.data)) {
			return true
		}
	}
	return false
}
