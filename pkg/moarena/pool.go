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

// Package moarena provides process-wide generational arena pools.  A Pool
// hands out bump-allocated memory from per-shard arenas with no
// per-allocation free; memory is reclaimed in bulk by GC, Clean or Close,
// from any goroutine.  Each pool keeps two generations per shard and GC
// flips between them, letting a registered copy hook migrate live data
// into the fresh generation before the old one is released.
package moarena

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/matrixorigin/moarena/pkg/common/arena"
	"github.com/matrixorigin/moarena/pkg/common/moerr"
	"github.com/matrixorigin/moarena/pkg/logutil"
	"go.uber.org/zap"
)

// Stats are per-pool counters in the style of a memory pool high water
// accounting.  All fields are updated atomically.
type Stats struct {
	NumAlloc      atomic.Int64
	NumTempAlloc  atomic.Int64
	NumGC         atomic.Int64
	AllocBytes    atomic.Int64
	InuseBytes    atomic.Int64
	HighWaterMark atomic.Int64
}

func (s *Stats) updatePeak(n int64) {
	for {
		old := s.HighWaterMark.Load()
		if n <= old {
			return
		}
		if s.HighWaterMark.CompareAndSwap(old, n) {
			return
		}
	}
}

// Pool is a user-facing handle over one pool id.  Allocation picks the
// calling P's shard slot for that id; the current generation bit selects
// which of the slot's two arenas serves it.
type Pool struct {
	name     string
	id       uint32
	curGen   atomic.Uint32
	closed   atomic.Bool
	copyHook atomic.Pointer[func() error]
	cfg      Config
	stats    Stats
}

var livePools struct {
	sync.RWMutex
	m map[uint32]*Pool
}

func init() {
	livePools.m = make(map[uint32]*Pool, MaxPools)
}

// NewPool creates a pool.  Fails with an ErrTooManyPools error when
// MaxPools pools are already live.
func NewPool(name string, opts ...Option) (*Pool, error) {
	p := &Pool{name: name}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	id, err := poolIDs.acquire()
	if err != nil {
		return nil, err
	}
	p.id = id

	livePools.Lock()
	livePools.m[id] = p
	livePools.Unlock()
	livePoolsGauge.Inc()

	logutil.Debug("moarena: pool created",
		zap.String("name", name),
		zap.Uint32("id", id))
	return p, nil
}

// ID returns the pool id, in [0, MaxPools).
func (p *Pool) ID() uint32 {
	return p.id
}

// Name returns the pool name given at construction.
func (p *Pool) Name() string {
	return p.name
}

// Stats returns the pool counters.
func (p *Pool) Stats() *Stats {
	return &p.stats
}

// InuseBytes returns the bytes currently held by the pool's arenas
// across all shards and both generations.
func (p *Pool) InuseBytes() uint64 {
	n := p.stats.InuseBytes.Load()
	if n < 0 {
		return 0
	}
	return uint64(n)
}

// Alloc returns size bytes aligned to align from the current generation
// of the calling P's arena.  Never nil; see arena.Arena.Alloc for the
// fatal exhaustion contract.  Must not be called while GC is in progress
// on this pool.
func (p *Pool) Alloc(size, align uintptr) unsafe.Pointer {
	p.stats.NumAlloc.Add(1)
	return p.allocate(p.curGen.Load(), size, align)
}

// AllocTemp allocates from the opposite generation: scratch memory that
// the next GC discards without entering the copy hook's reachable set.
func (p *Pool) AllocTemp(size, align uintptr) unsafe.Pointer {
	p.stats.NumTempAlloc.Add(1)
	return p.allocate(1-p.curGen.Load(), size, align)
}

func (p *Pool) allocate(gen uint32, size, align uintptr) unsafe.Pointer {
	if p.closed.Load() {
		panic(moerr.NewPoolClosed(moerr.Context(), p.name, p.id))
	}
	s := &currentShard().slots[p.id]

	s.mu.Lock()
	a := s.gens[gen]
	if a == nil {
		a = arena.New(p.cfg.arenaOptions()...)
		s.gens[gen] = a
	}
	before := a.InuseBytes()
	ptr := a.Alloc(size, align)
	advance := int64(a.InuseBytes() - before)
	s.mu.Unlock()

	p.stats.AllocBytes.Add(advance)
	p.stats.updatePeak(p.stats.InuseBytes.Add(advance))
	allocateBytesCounter.Add(float64(advance))
	return ptr
}

// RegisterCopyHook stores the callable invoked during GC to migrate live
// data into the fresh generation.  Replaces any previous hook; nil
// clears it.
func (p *Pool) RegisterCopyHook(hook func() error) {
	if hook == nil {
		p.copyHook.Store(nil)
		return
	}
	p.copyHook.Store(&hook)
}

// drain resets the given generation's arena in every shard slot of this
// pool and returns the reclaimed bytes.  With drop set the empty arena
// handles are released too; otherwise they stay for reuse.
func (p *Pool) drain(gen uint32, drop bool) uint64 {
	var reclaimed uint64
	forEachShard(func(t *shardTable) {
		s := &t.slots[p.id]
		s.mu.Lock()
		if a := s.gens[gen]; a != nil {
			reclaimed += a.InuseBytes()
			a.Reset()
			if drop {
				s.gens[gen] = nil
			}
		}
		s.mu.Unlock()
	})
	p.stats.InuseBytes.Add(-int64(reclaimed))
	return reclaimed
}

// Clean drains both generations across every shard.  Must not run
// concurrently with any allocation on this pool.
func (p *Pool) Clean() {
	p.drain(0, false)
	p.drain(1, false)
}

// CleanTemp drains the opposite generation across every shard.  Must not
// run concurrently with AllocTemp on this pool.
func (p *Pool) CleanTemp() {
	p.drain(1-p.curGen.Load(), false)
}

// Close drains both generations, releases the pool id and unregisters
// the pool.  Idempotent.  Allocation on a closed pool panics.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	reclaimed := p.drain(0, true) + p.drain(1, true)

	livePools.Lock()
	delete(livePools.m, p.id)
	livePools.Unlock()
	livePoolsGauge.Dec()
	poolIDs.release(p.id)

	logutil.Debug("moarena: pool closed",
		zap.String("name", p.name),
		zap.Uint32("id", p.id),
		zap.Uint64("reclaimed bytes", reclaimed))
	return nil
}
