// Copyright 2025 go-colorrecon Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package colorrecon

import (
	"sync"

	"github.com/ajroetker/go-colorrecon/bilateral"
)

// GridCache holds the grid of the most recent preview reconstruction,
// tagged with the hash of the pipeline state that produced it. A full
// pipeline that only sees part of the image can reuse it in place of a
// grid built from its own, truncated, input.
//
// A nil *GridCache is a valid, always empty cache.
type GridCache struct {
	mu   sync.Mutex
	snap *bilateral.Snapshot
	hash uint64
}

// NewGridCache returns an empty cache.
func NewGridCache() *GridCache {
	return &GridCache{}
}

// Store replaces the cached grid.
func (c *GridCache) Store(snap *bilateral.Snapshot, hash uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
	c.hash = hash
}

// Load returns the cached grid and its hash. ok is false if the cache is
// empty.
func (c *GridCache) Load() (snap *bilateral.Snapshot, hash uint64, ok bool) {
	if c == nil {
		return nil, 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap, c.hash, c.snap != nil
}

// Clear drops the cached grid.
func (c *GridCache) Clear() {
	c.Store(nil, 0)
}
