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
	"testing"

	"github.com/lni/goutils/leaktest"
	"github.com/stretchr/testify/require"
)

func TestCurrentShard(t *testing.T) {
	s := currentShard()
	require.NotNil(t, s)
	require.GreaterOrEqual(t, numShards(), 1)

	// the table is advertised in the registry
	found := false
	forEachShard(func(tab *shardTable) {
		if tab == s {
			found = true
		}
	})
	require.True(t, found)
}

func TestGrowShardsIdempotent(t *testing.T) {
	a := growShards(3)
	b := growShards(3)
	require.Same(t, a, b)
	require.GreaterOrEqual(t, numShards(), 4)

	// growth keeps earlier tables
	c := growShards(10)
	require.NotNil(t, c)
	require.Same(t, a, (*shardRegistry.tables.Load())[3])
}

func TestCurrentShardConcurrent(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var wg sync.WaitGroup
	tables := make([]*shardTable, 64)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tables[i] = currentShard()
		}(i)
	}
	wg.Wait()
	for _, tab := range tables {
		require.NotNil(t, tab)
	}
}

func TestForEachShardSnapshot(t *testing.T) {
	before := 0
	forEachShard(func(*shardTable) { before++ })
	require.Equal(t, numShards(), before)
}
