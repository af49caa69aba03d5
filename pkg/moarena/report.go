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
	"encoding/json"
	"sort"
)

type poolMemUsage struct {
	Name          string `json:"name"`
	ID            uint32 `json:"id"`
	InuseBytes    uint64 `json:"inuse_bytes"`
	AllocBytes    int64  `json:"alloc_bytes"`
	NumAlloc      int64  `json:"num_alloc"`
	NumTempAlloc  int64  `json:"num_temp_alloc"`
	NumGC         int64  `json:"num_gc"`
	HighWaterMark int64  `json:"high_water_mark"`
}

func (p *Pool) memUsage() poolMemUsage {
	return poolMemUsage{
		Name:          p.name,
		ID:            p.id,
		InuseBytes:    p.InuseBytes(),
		AllocBytes:    p.stats.AllocBytes.Load(),
		NumAlloc:      p.stats.NumAlloc.Load(),
		NumTempAlloc:  p.stats.NumTempAlloc.Load(),
		NumGC:         p.stats.NumGC.Load(),
		HighWaterMark: p.stats.HighWaterMark.Load(),
	}
}

// ReportMemUsage returns a json description of the live pools matching
// name.  Empty name reports every live pool.
func ReportMemUsage(name string) string {
	var usages []poolMemUsage
	livePools.RLock()
	for _, p := range livePools.m {
		if name == "" || p.name == name {
			usages = append(usages, p.memUsage())
		}
	}
	livePools.RUnlock()

	sort.Slice(usages, func(i, j int) bool {
		return usages[i].ID < usages[j].ID
	})
	data, err := json.Marshal(usages)
	if err != nil {
		return err.Error()
	}
	return string(data)
}
