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
	"time"

	"github.com/matrixorigin/moarena/pkg/common/moerr"
	"github.com/matrixorigin/moarena/pkg/logutil"
	"go.uber.org/zap"
)

// GC runs the generation flip on this pool:
//
//  1. drain the opposite (temporary) generation in every shard,
//  2. flip the generation bit, so new allocations land in the empty
//     generation and temporary allocations in the full one,
//  3. run the copy hook, whose allocations deep-copy live data into the
//     fresh generation,
//  4. drain the prior generation in every shard.
//
// With no hook registered GC collapses to Clean: both generations are
// drained and the bit is left alone.
//
// The caller must ensure no goroutine allocates on this pool while GC is
// in progress.  A hook error (or panic, converted to an error) is
// returned only after step 4, so the old generation never leaks.
func (p *Pool) GC() error {
	if p.closed.Load() {
		return moerr.NewPoolClosed(moerr.Context(), p.name, p.id)
	}
	start := time.Now()
	p.stats.NumGC.Add(1)
	defer func() {
		gcDurationHistogram.Observe(time.Since(start).Seconds())
	}()

	hook := p.copyHook.Load()
	if hook == nil {
		p.Clean()
		return nil
	}

	g := p.curGen.Load()
	dropped := p.drain(1-g, false)
	p.curGen.Store(1 - g)
	err := runCopyHook(*hook)
	reclaimed := p.drain(g, false)

	logutil.Debug("moarena: gc done",
		zap.String("name", p.name),
		zap.Uint32("id", p.id),
		zap.Uint32("generation", 1-g),
		zap.Uint64("temp bytes", dropped),
		zap.Uint64("reclaimed bytes", reclaimed),
		zap.Error(err))
	return err
}

// runCopyHook shields the coordinator from hook panics so the old
// generation drain always runs.
func runCopyHook(hook func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = moerr.ConvertPanicError(moerr.Context(), v)
		}
	}()
	return hook()
}
