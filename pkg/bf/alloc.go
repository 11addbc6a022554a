package bf

import (
	"fmt"
	"sort"
)

// Region is a live allocation of Len cells starting at Addr.
type Region struct {
	Addr int
	Len  int
}

func (r Region) End() int { return r.Addr + r.Len }

// Allocator is a first-fit linear allocator over the address space
// [0, limit). Live regions are kept sorted by address.
type Allocator struct {
	limit   int
	regions []Region
}

func NewAllocator(limit int) *Allocator {
	return &Allocator{limit: limit}
}

func (a *Allocator) Limit() int { return a.limit }

// Live reports the number of live allocations.
func (a *Allocator) Live() int { return len(a.regions) }

// Regions returns a sorted copy of the live allocations.
func (a *Allocator) Regions() []Region {
	out := make([]Region, len(a.regions))
	copy(out, a.regions)
	return out
}

// Malloc reserves the first run of size free cells, scanning upward from
// address 0 and skipping every live region whole.
func (a *Allocator) Malloc(size int) (int, error) {
	if size < 1 {
		return 0, newError(KindInvalidArgument, "malloc", "can't allocate %d cells", size)
	}
	addr := 0
	for i, r := range a.regions {
		if r.Addr-addr >= size {
			a.insert(i, Region{Addr: addr, Len: size})
			return addr, nil
		}
		addr = r.End()
	}
	if a.limit-addr >= size {
		a.insert(len(a.regions), Region{Addr: addr, Len: size})
		return addr, nil
	}
	return 0, newError(KindOutOfMemory, "malloc", "no run of %d free cells below %d", size, a.limit)
}

// Dealloc releases the region starting exactly at addr.
func (a *Allocator) Dealloc(addr int) error {
	i, ok := a.find(addr)
	if !ok {
		return newError(KindUnknownAddress, "dealloc", "no allocation starts at %d", addr)
	}
	a.regions = append(a.regions[:i], a.regions[i+1:]...)
	return nil
}

// Covers reports whether addr lies inside a live region.
func (a *Allocator) Covers(addr int) bool {
	i := sort.Search(len(a.regions), func(i int) bool { return a.regions[i].Addr > addr })
	return i > 0 && addr < a.regions[i-1].End()
}

// Check verifies that all regions are in bounds, sorted and disjoint.
func (a *Allocator) Check() error {
	prevEnd := 0
	for i, r := range a.regions {
		if r.Len < 1 {
			return fmt.Errorf("region %d at %d has length %d", i, r.Addr, r.Len)
		}
		if r.Addr < prevEnd {
			return fmt.Errorf("region %d at %d overlaps its predecessor ending at %d", i, r.Addr, prevEnd)
		}
		if r.End() > a.limit {
			return fmt.Errorf("region %d [%d,%d) exceeds limit %d", i, r.Addr, r.End(), a.limit)
		}
		prevEnd = r.End()
	}
	return nil
}

func (a *Allocator) find(addr int) (int, bool) {
	i := sort.Search(len(a.regions), func(i int) bool { return a.regions[i].Addr >= addr })
	return i, i < len(a.regions) && a.regions[i].Addr == addr
}

func (a *Allocator) insert(i int, r Region) {
	a.regions = append(a.regions, Region{})
	copy(a.regions[i+1:], a.regions[i:])
	a.regions[i] = r
}
