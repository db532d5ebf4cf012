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

package bilateral

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/ajroetker/go-highway/hwy/contrib/vec"
	"golang.org/x/sys/cpu"

	"github.com/ajroetker/go-colorrecon/workerpool"
)

// Accumulator implements the concurrent "+=" of the splat stage. Several
// source pixels may hit the same cell from different workers; an
// Accumulator decides how those updates are combined. Additions are
// associative and commutative, so any strategy yields the same grid up to
// floating-point summation order.
type Accumulator interface {
	// Begin prepares accumulation into g from up to workers slots.
	Begin(g *Grid, workers int) error
	// Add accumulates weight w and chrominance (w*a, w*b) into cell index
	// on behalf of worker slot worker.
	Add(worker, index int, w, a, b float32)
	// End makes all additions visible in the grid passed to Begin.
	End(pool *workerpool.Pool)
}

// AccumulatorKind names the built-in accumulation strategies.
type AccumulatorKind int

const (
	// PartialKind gives each worker a private grid, reduced after splatting.
	PartialKind AccumulatorKind = iota
	// AtomicKind adds into the shared grid with compare-and-swap loops.
	AtomicKind
)

// String implements fmt.Stringer.
func (k AccumulatorKind) String() string {
	switch k {
	case PartialKind:
		return "partial"
	case AtomicKind:
		return "atomic"
	default:
		return "unknown"
	}
}

// ParseAccumulatorKind parses the String form of an AccumulatorKind.
func ParseAccumulatorKind(s string) (AccumulatorKind, error) {
	switch s {
	case "partial", "":
		return PartialKind, nil
	case "atomic":
		return AtomicKind, nil
	}
	return 0, fmt.Errorf("bilateral: unknown accumulator %q", s)
}

// NewAccumulator returns a fresh accumulator of the given kind.
func NewAccumulator(kind AccumulatorKind) Accumulator {
	if kind == AtomicKind {
		return &AtomicAccumulator{}
	}
	return &PartialAccumulator{}
}

// AtomicAccumulator adds directly into the shared grid. Each field of a
// cell is updated with its own lock-free float32 add, so no extra memory is
// needed, but the summation order (and therefore the last bits of the
// result) depends on scheduling.
type AtomicAccumulator struct {
	cells []Cell
}

// Begin implements Accumulator.
func (acc *AtomicAccumulator) Begin(g *Grid, workers int) error {
	acc.cells = g.cells
	return nil
}

// Add implements Accumulator.
func (acc *AtomicAccumulator) Add(_, index int, w, a, b float32) {
	c := &acc.cells[index]
	addFloat32(&c.Weight, w)
	addFloat32(&c.A, w*a)
	addFloat32(&c.B, w*b)
}

// End implements Accumulator.
func (acc *AtomicAccumulator) End(*workerpool.Pool) {
	acc.cells = nil
}

// addFloat32 atomically performs *addr += delta.
func addFloat32(addr *float32, delta float32) {
	if delta == 0 {
		return
	}
	p := (*uint32)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint32(p)
		sum := math.Float32bits(math.Float32frombits(old) + delta)
		if atomic.CompareAndSwapUint32(p, old, sum) {
			return
		}
	}
}

// PartialAccumulator gives every worker slot a private grid. Slot 0 writes
// straight into the target grid; End adds the other slots into it in slot
// order. Since workerpool chunks are fixed for a given size, the result is
// bit-identical from run to run.
type PartialAccumulator struct {
	target []Cell
	slots  []partialSlot
}

type partialSlot struct {
	cells []Cell
	_     cpu.CacheLinePad
}

// Begin implements Accumulator. The extra workers-1 grids count against the
// grid's memory budget together with the grid itself.
func (acc *PartialAccumulator) Begin(g *Grid, workers int) error {
	workers = max(workers, 1)
	if err := checkBudget(int64(workers)*g.Bytes(), g.budget, "partial grids"); err != nil {
		return err
	}
	acc.target = g.cells
	acc.slots = make([]partialSlot, workers)
	acc.slots[0].cells = g.cells
	for i := 1; i < workers; i++ {
		acc.slots[i].cells = make([]Cell, len(g.cells))
	}
	return nil
}

// Add implements Accumulator.
func (acc *PartialAccumulator) Add(worker, index int, w, a, b float32) {
	c := &acc.slots[worker].cells[index]
	c.Weight += w
	c.A += w * a
	c.B += w * b
}

// End implements Accumulator.
func (acc *PartialAccumulator) End(pool *workerpool.Pool) {
	if len(acc.slots) > 1 {
		target := cellFloats(acc.target)
		slots := acc.slots[1:]
		pool.ParallelFor(len(acc.target), func(start, end int) {
			dst := target[start*cellFloatCount : end*cellFloatCount]
			for _, s := range slots {
				vec.Add(dst, cellFloats(s.cells)[start*cellFloatCount:end*cellFloatCount])
			}
		})
	}
	acc.target = nil
	acc.slots = nil
}
