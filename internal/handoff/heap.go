// Package handoff models the deferred Lottie load that the generated
// firmware performs at runtime.
//
// The decoder needs far more call stack than the LVGL task has, so each
// load runs on its own task whose stack lives in PSRAM. The sequence is
// allocate buffer, params, stack, control block, then start the task; any
// failure releases what was acquired so far in reverse order. The task
// waits briefly, decodes, attaches the buffer to the widget, frees the
// params and exits. Its stack and control block are never reclaimed: one
// stack region and one control block leak per load, which is bounded by the
// number of Lottie widgets and reloads over the firmware's lifetime.
package handoff

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Caps mirrors the ESP-IDF MALLOC_CAP_* flags the generated code uses.
type Caps uint8

const (
	CapSPIRAM Caps = 1 << iota
	CapInternal
	Cap8Bit
)

func (c Caps) String() string {
	var parts []string
	if c&CapSPIRAM != 0 {
		parts = append(parts, "SPIRAM")
	}
	if c&CapInternal != 0 {
		parts = append(parts, "INTERNAL")
	}
	if c&Cap8Bit != 0 {
		parts = append(parts, "8BIT")
	}
	if len(parts) == 0 {
		return "DEFAULT"
	}
	return strings.Join(parts, "|")
}

// Region is the physical pool an allocation is served from.
type Region int

const (
	// RegionInternal is on-chip SRAM: small, fast, always available.
	RegionInternal Region = iota
	// RegionSPIRAM is external PSRAM: large, higher latency.
	RegionSPIRAM
)

func (r Region) String() string {
	if r == RegionSPIRAM {
		return "psram"
	}
	return "internal"
}

// RegionOf picks the pool for a capability set.
func RegionOf(caps Caps) Region {
	if caps&CapSPIRAM != 0 {
		return RegionSPIRAM
	}
	return RegionInternal
}

// ErrOutOfMemory is returned when a region cannot satisfy an allocation.
var ErrOutOfMemory = errors.New("out of memory")

// Block is one live allocation.
type Block struct {
	ID    uint64
	Size  int
	Caps  Caps
	Label string
}

// Heap is a capability-tagged allocator (heap_caps_malloc / heap_caps_free).
type Heap interface {
	Alloc(label string, size int, caps Caps) (*Block, error)
	Free(b *Block)
}

// RegionUsage summarises one pool.
type RegionUsage struct {
	Capacity int `json:"capacity"`
	Used     int `json:"used"`
	Peak     int `json:"peak"`
	Live     int `json:"live"` // live block count
}

// ArenaHeap is an in-memory Heap with a fixed capacity per region. It only
// does bookkeeping; no memory is reserved. Safe for concurrent use.
type ArenaHeap struct {
	mu       sync.Mutex
	capacity map[Region]int
	used     map[Region]int
	peak     map[Region]int
	live     map[uint64]*Block
	nextID   uint64
	allocs   int
	frees    int
}

// NewArenaHeap creates a heap with the given PSRAM and internal capacities.
func NewArenaHeap(psramBytes, internalBytes int) *ArenaHeap {
	return &ArenaHeap{
		capacity: map[Region]int{RegionSPIRAM: psramBytes, RegionInternal: internalBytes},
		used:     make(map[Region]int),
		peak:     make(map[Region]int),
		live:     make(map[uint64]*Block),
	}
}

// Alloc reserves size bytes from the region selected by caps.
func (h *ArenaHeap) Alloc(label string, size int, caps Caps) (*Block, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid allocation size %d for %s", size, label)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	region := RegionOf(caps)
	if h.used[region]+size > h.capacity[region] {
		return nil, fmt.Errorf("%s: %d bytes from %s (%d of %d used): %w",
			label, size, region, h.used[region], h.capacity[region], ErrOutOfMemory)
	}

	h.nextID++
	b := &Block{ID: h.nextID, Size: size, Caps: caps, Label: label}
	h.live[b.ID] = b
	h.used[region] += size
	if h.used[region] > h.peak[region] {
		h.peak[region] = h.used[region]
	}
	h.allocs++
	return b, nil
}

// Free releases b. Freeing nil or an already freed block is a no-op.
func (h *ArenaHeap) Free(b *Block) {
	if b == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.live[b.ID]; !ok {
		return
	}
	delete(h.live, b.ID)
	h.used[RegionOf(b.Caps)] -= b.Size
	h.frees++
}

// Usage reports the state of one region.
func (h *ArenaHeap) Usage(r Region) RegionUsage {
	h.mu.Lock()
	defer h.mu.Unlock()

	live := 0
	for _, b := range h.live {
		if RegionOf(b.Caps) == r {
			live++
		}
	}
	return RegionUsage{
		Capacity: h.capacity[r],
		Used:     h.used[r],
		Peak:     h.peak[r],
		Live:     live,
	}
}

// LiveLabels returns the labels of all live blocks, for diagnostics.
func (h *ArenaHeap) LiveLabels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	labels := make([]string, 0, len(h.live))
	for _, b := range h.live {
		labels = append(labels, b.Label)
	}
	return labels
}

// Counts returns the number of successful allocations and frees.
func (h *ArenaHeap) Counts() (allocs, frees int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.allocs, h.frees
}
