package metaspace

import (
	"fmt"
	"sync"
)

// Addr is a byte address inside a reserved region.
type Addr uint64

// Region is a contiguous address range.
type Region struct {
	Base Addr
	Size uint64 // bytes
}

// End returns the first address past the region.
func (r Region) End() Addr {
	return r.Base + Addr(r.Size)
}

func (r Region) contains(sub Region) bool {
	return sub.Base >= r.Base && sub.End() <= r.End()
}

// VirtualSpaceProvider supplies address space to a ChunkManager.
// All calls are made under the ChunkManager lock.
type VirtualSpaceProvider interface {
	// Reserve returns a fresh region of size bytes aligned to size,
	// or an error wrapping ErrOutOfMemory.
	Reserve(size uint64) (Region, error)

	// Commit backs a page aligned sub-range of a reserved region.
	Commit(r Region) error

	// Uncommit gives a committed sub-range back.
	Uncommit(r Region) error

	// Release drops a whole region returned by Reserve.
	Release(r Region) error
}

const (
	pageBytes = 4096

	// vspaceBase keeps address zero out of every region.
	vspaceBase = Addr(RootChunkBytes)
)

// VirtualSpace is an in-process VirtualSpaceProvider. Addresses are
// simulated; nothing is mapped.
type VirtualSpace struct {
	mu sync.Mutex

	name      string
	limit     uint64 // bytes, 0 is unlimited
	top       Addr
	regions   map[Addr]Region
	reserved  uint64
	committed uint64
	pages     map[Addr]struct{}
}

// NewVirtualSpace returns a provider that refuses to reserve more than
// limit bytes in total. Zero means unlimited.
func NewVirtualSpace(name string, limit uint64) *VirtualSpace {
	return &VirtualSpace{
		name:    name,
		limit:   limit,
		top:     vspaceBase,
		regions: make(map[Addr]Region),
		pages:   make(map[Addr]struct{}),
	}
}

// Reserve implements VirtualSpaceProvider.
func (vs *VirtualSpace) Reserve(size uint64) (Region, error) {
	if size < pageBytes || size&(size-1) != 0 {
		return Region{}, fmt.Errorf("vspace %s: reserve size %d not a power of two pages", vs.name, size)
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.limit > 0 && vs.reserved+size > vs.limit {
		return Region{}, fmt.Errorf("%w: vspace %s reserve limit %d", ErrOutOfMemory, vs.name, vs.limit)
	}
	base := alignUp(vs.top, size)
	r := Region{Base: base, Size: size}
	vs.top = r.End()
	vs.regions[base] = r
	vs.reserved += size
	return r, nil
}

// Commit implements VirtualSpaceProvider.
func (vs *VirtualSpace) Commit(r Region) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if err := vs.check(r); err != nil {
		return err
	}
	for page := r.Base; page < r.End(); page += pageBytes {
		if _, ok := vs.pages[page]; !ok {
			vs.pages[page] = struct{}{}
			vs.committed += pageBytes
		}
	}
	return nil
}

// Uncommit implements VirtualSpaceProvider.
func (vs *VirtualSpace) Uncommit(r Region) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if err := vs.check(r); err != nil {
		return err
	}
	vs.uncommit(r)
	return nil
}

// Release implements VirtualSpaceProvider.
func (vs *VirtualSpace) Release(r Region) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	owner, ok := vs.regions[r.Base]
	if !ok || owner != r {
		return fmt.Errorf("vspace %s: release of unknown region %#x+%d", vs.name, r.Base, r.Size)
	}
	vs.uncommit(r)
	delete(vs.regions, r.Base)
	vs.reserved -= r.Size
	return nil
}

// Reserved returns the reserved bytes.
func (vs *VirtualSpace) Reserved() uint64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.reserved
}

// Committed returns the committed bytes.
func (vs *VirtualSpace) Committed() uint64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.committed
}

func (vs *VirtualSpace) uncommit(r Region) {
	for page := r.Base; page < r.End(); page += pageBytes {
		if _, ok := vs.pages[page]; ok {
			delete(vs.pages, page)
			vs.committed -= pageBytes
		}
	}
}

func (vs *VirtualSpace) check(r Region) error {
	if uint64(r.Base)%pageBytes != 0 || r.Size%pageBytes != 0 {
		return fmt.Errorf("vspace %s: range %#x+%d not page aligned", vs.name, r.Base, r.Size)
	}
	for _, owner := range vs.regions {
		if owner.contains(r) {
			return nil
		}
	}
	return fmt.Errorf("vspace %s: range %#x+%d not reserved", vs.name, r.Base, r.Size)
}

func alignUp(addr Addr, alignment uint64) Addr {
	mask := Addr(alignment - 1)
	return (addr + mask) &^ mask
}
