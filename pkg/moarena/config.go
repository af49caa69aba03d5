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
	"github.com/BurntSushi/toml"
	"github.com/matrixorigin/moarena/pkg/common/arena"
	"github.com/matrixorigin/moarena/pkg/common/moerr"
	"github.com/matrixorigin/moarena/pkg/logutil"
)

// MaxPools is the upper bound on concurrently-live pools.  Pool ids index
// the fixed-size shard slot arrays, so this is a build-time constant.
const MaxPools = 64

// Config carries the tunables of a pool.  The zero value is valid and
// picks the arena defaults.
type Config struct {
	// BlockSize is the size in bytes of the first backing block of each
	// per-shard arena.
	BlockSize int `toml:"block-size"`
	// MaxBlockSize caps the geometric block growth of each arena.
	MaxBlockSize int `toml:"max-block-size"`
	// Log configures the global logger.  Only applied by LoadConfig.
	Log logutil.LogConfig `toml:"log"`
}

// Validate fills defaults and rejects inconsistent settings.
func (c *Config) Validate() error {
	if c.BlockSize == 0 {
		c.BlockSize = arena.DefaultBlockSize
	}
	if c.MaxBlockSize == 0 {
		c.MaxBlockSize = arena.DefaultMaxBlockSize
	}
	if c.BlockSize < 0 || c.MaxBlockSize < 0 {
		return moerr.NewBadConfig(moerr.Context(), "negative block size")
	}
	if c.MaxBlockSize < c.BlockSize {
		return moerr.NewBadConfig(moerr.Context(),
			"max-block-size %d smaller than block-size %d", c.MaxBlockSize, c.BlockSize)
	}
	return nil
}

// LoadConfig reads a toml file, validates it and applies the log section.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, moerr.ConvertGoError(moerr.Context(), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logutil.SetupMOLogger(&cfg.Log)
	return &cfg, nil
}

func (c *Config) arenaOptions() []arena.Option {
	return []arena.Option{
		arena.WithBlockSize(c.BlockSize),
		arena.WithMaxBlockSize(c.MaxBlockSize),
	}
}

// Option configures a pool at construction time.
type Option func(*Pool)

// WithBlockSize sets the first backing block size of the pool's arenas.
func WithBlockSize(n int) Option {
	return func(p *Pool) {
		p.cfg.BlockSize = n
	}
}

// WithMaxBlockSize caps the arena block growth.
func WithMaxBlockSize(n int) Option {
	return func(p *Pool) {
		p.cfg.MaxBlockSize = n
	}
}

// WithConfig replaces the whole pool config.
func WithConfig(cfg Config) Option {
	return func(p *Pool) {
		p.cfg = cfg
	}
}
