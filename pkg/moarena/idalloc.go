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

	"github.com/RoaringBitmap/roaring"
	"github.com/matrixorigin/moarena/pkg/common/moerr"
)

// idAllocator hands out pool ids from [0, MaxPools).  The smallest free
// id wins, so long-running processes with pool churn keep the shard slot
// arrays densely populated near index 0.
type idAllocator struct {
	mu   sync.Mutex
	free *roaring.Bitmap
}

func newIDAllocator() *idAllocator {
	free := roaring.New()
	free.AddRange(0, MaxPools)
	return &idAllocator{free: free}
}

var poolIDs = newIDAllocator()

func (z *idAllocator) acquire() (uint32, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.free.IsEmpty() {
		return 0, moerr.NewTooManyPools(moerr.Context(), MaxPools)
	}
	id := z.free.Minimum()
	z.free.Remove(id)
	return id, nil
}

// release returns id to the free set.  Releasing an id that is already
// free, or one outside [0, MaxPools), is a no-op.
func (z *idAllocator) release(id uint32) {
	if id >= MaxPools {
		return
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	z.free.Add(id)
}

func (z *idAllocator) numFree() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return int(z.free.GetCardinality())
}
