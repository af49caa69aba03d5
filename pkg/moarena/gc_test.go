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
	"testing"

	"github.com/matrixorigin/moarena/pkg/common/moerr"
	"github.com/stretchr/testify/require"
)

func TestGCWithoutHookReleasesEverything(t *testing.T) {
	p, err := NewPool("gc-no-hook")
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 100; i++ {
		p.Alloc(512, 8)
		p.AllocTemp(512, 8)
	}
	require.NotZero(t, p.InuseBytes())

	gen := p.curGen.Load()
	require.NoError(t, p.GC())
	require.Zero(t, p.InuseBytes())
	require.Equal(t, gen, p.curGen.Load())
	require.Equal(t, int64(1), p.Stats().NumGC.Load())
}

func TestGCCopyHook(t *testing.T) {
	type node struct {
		val  uint64
		next *node
	}

	p, err := NewPool("gc-hook")
	require.NoError(t, err)
	defer p.Close()

	old := New[node](p)
	old.val = 42
	inuseBefore := p.InuseBytes()

	var fresh *node
	p.RegisterCopyHook(func() error {
		// runs after the flip and before the old generation drain, so
		// reading the old node here is legal
		fresh = Clone(p, *old)
		return nil
	})

	gen := p.curGen.Load()
	require.NoError(t, p.GC())

	require.Equal(t, 1-gen, p.curGen.Load())
	require.NotNil(t, fresh)
	require.Equal(t, uint64(42), fresh.val)
	// only the migrated node survives
	require.Equal(t, inuseBefore, p.InuseBytes())
}

func TestGCHookErrorStillDrains(t *testing.T) {
	p, err := NewPool("gc-err")
	require.NoError(t, err)
	defer p.Close()

	p.Alloc(4096, 8)
	boom := moerr.NewInvalidState(moerr.Context(), "copy failed")
	p.RegisterCopyHook(func() error {
		return boom
	})

	gen := p.curGen.Load()
	err = p.GC()
	require.Equal(t, error(boom), err)
	// the old generation must not leak even when the hook fails
	require.Zero(t, p.InuseBytes())
	require.Equal(t, 1-gen, p.curGen.Load())
}

func TestGCHookPanicStillDrains(t *testing.T) {
	p, err := NewPool("gc-panic")
	require.NoError(t, err)
	defer p.Close()

	p.Alloc(4096, 8)
	p.RegisterCopyHook(func() error {
		panic("hook exploded")
	})

	err = p.GC()
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
	require.Zero(t, p.InuseBytes())
}

func TestGCOnClosedPool(t *testing.T) {
	p, err := NewPool("gc-closed")
	require.NoError(t, err)
	require.NoError(t, p.Close())

	err = p.GC()
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrPoolClosed))
}

func TestGCHookReplaced(t *testing.T) {
	p, err := NewPool("gc-replace")
	require.NoError(t, err)
	defer p.Close()

	var first, second int
	p.RegisterCopyHook(func() error { first++; return nil })
	p.RegisterCopyHook(func() error { second++; return nil })
	require.NoError(t, p.GC())
	require.Zero(t, first)
	require.Equal(t, 1, second)

	// clearing the hook turns GC back into a plain drain
	p.RegisterCopyHook(nil)
	gen := p.curGen.Load()
	require.NoError(t, p.GC())
	require.Equal(t, 1, second)
	require.Equal(t, gen, p.curGen.Load())
}

// A linked list migrated over several generation cycles keeps its
// content and drops the abandoned tail each round.
func TestGCCycles(t *testing.T) {
	type node struct {
		val  uint64
		next *node
	}

	p, err := NewPool("gc-cycles")
	require.NoError(t, err)
	defer p.Close()

	var head *node
	for i := uint64(1); i <= 8; i++ {
		n := New[node](p)
		n.val = i
		n.next = head
		head = n
	}

	p.RegisterCopyHook(func() error {
		var fresh *node
		for old := head; old != nil; old = old.next {
			n := New[node](p)
			n.val = old.val
			// rebuild in reverse to keep the original order simple to check
			n.next = fresh
			fresh = n
		}
		// reverse back
		var rev *node
		for n := fresh; n != nil; {
			next := n.next
			n.next = rev
			rev = n
			n = next
		}
		head = rev
		return nil
	})

	for round := 0; round < 5; round++ {
		require.NoError(t, p.GC())
		var got []uint64
		for n := head; n != nil; n = n.next {
			got = append(got, n.val)
		}
		require.Equal(t, []uint64{8, 7, 6, 5, 4, 3, 2, 1}, got)
	}
}
