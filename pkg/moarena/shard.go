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
	"sync/atomic"
	_ "unsafe"

	"github.com/matrixorigin/moarena/pkg/common/arena"
)

// slot is the per-(shard, pool) cell holding one arena per generation.
// The mutex serializes lazy arena creation and cursor advances by the
// owning shard against cross-shard drains during GC, Clean and Close.
type slot struct {
	mu   sync.Mutex
	gens [2]*arena.Arena
}

// shardTable holds one slot per pool id.  A table is owned by one P; the
// shard registry makes it reachable from every goroutine so that any
// caller can drain arenas created on other Ps.
type shardTable struct {
	slots [MaxPools]slot
}

var shardRegistry struct {
	mu     sync.Mutex
	tables atomic.Pointer[[]*shardTable]
}

//go:linkname runtime_procPin runtime.procPin
func runtime_procPin() int

//go:linkname runtime_procUnpin runtime.procUnpin
func runtime_procUnpin()

// shardID returns the id of the P the calling goroutine runs on.  Two
// goroutines may observe the same id; the slot mutex makes that safe.
func shardID() int {
	pid := runtime_procPin()
	runtime_procUnpin()
	return pid
}

// currentShard returns the calling P's shard table, creating and
// registering it on first touch.
func currentShard() *shardTable {
	pid := shardID()
	if tables := shardRegistry.tables.Load(); tables != nil && pid < len(*tables) {
		return (*tables)[pid]
	}
	return growShards(pid)
}

// growShards extends the registry to cover pid.  Grow-only: tables are
// never removed, Ps do not exit.
func growShards(pid int) *shardTable {
	shardRegistry.mu.Lock()
	defer shardRegistry.mu.Unlock()

	var cur []*shardTable
	if p := shardRegistry.tables.Load(); p != nil {
		cur = *p
	}
	if pid < len(cur) {
		return cur[pid]
	}

	grown := make([]*shardTable, pid+1)
	copy(grown, cur)
	for i := len(cur); i < len(grown); i++ {
		grown[i] = new(shardTable)
	}
	shardRegistry.tables.Store(&grown)
	return grown[pid]
}

// forEachShard visits a snapshot of all registered shard tables.  Tables
// created after the snapshot was taken hold no arenas for any generation
// a concurrent drain could be interested in, because arena creation on a
// fresh table happens-after the registry store.
func forEachShard(fn func(*shardTable)) {
	tables := shardRegistry.tables.Load()
	if tables == nil {
		return
	}
	for _, t := range *tables {
		fn(t)
	}
}

// numShards returns the number of registered shard tables.
func numShards() int {
	tables := shardRegistry.tables.Load()
	if tables == nil {
		return 0
	}
	return len(*tables)
}
