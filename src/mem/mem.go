// Package mem is the physical-frame allocator and kernel heap that the
// tasking core treats as an external collaborator (spec.md §1): fixed-size
// frame allocation/free, physical-to-physical page copy, and a small
// kernel-heap allocator that hands back both a virtual and a physical
// address for the same region.
//
// The teacher's own mem.go manages real amd64 physical memory discovered
// at boot via a hand-modified Go runtime (runtime.Get_phys, a direct map
// installed over PML4 entries in dmap.go). Neither has a meaning for the
// 32-bit, two-level paging this subsystem models, so this package instead
// manages a single pre-allocated "physical memory" arena backed by an
// ordinary Go byte slice, addressed by synthetic Pa_t values — the
// free-list-of-indices-with-refcounts shape is kept faithfully from
// Physmem_t/Refpg_new/Refdown.
package mem

import (
	"sync"
	"sync/atomic"
)

/// PGSHIFT is the base-2 exponent for the frame size.
const PGSHIFT = 12

/// PGSIZE is the size of a single physical frame in bytes (4 KiB, per the
/// x86 protected-mode page size this subsystem models).
const PGSIZE = 1 << PGSHIFT

/// Pa_t is a synthetic physical address: an index into the frame arena,
/// shifted left by PGSHIFT, exactly as a real physical address would be.
type Pa_t uint32

/// PTE access bits, carried verbatim from the x86 PTE/PDE encoding named
/// in spec.md §4.A.
const (
	PTE_P Pa_t = 1 << 0
	PTE_W Pa_t = 1 << 1
	PTE_U Pa_t = 1 << 2
	PTE_A Pa_t = 1 << 5
	PTE_D Pa_t = 1 << 6
)

type frame_t struct {
	refcnt int32
	nexti  uint32 // index of next free frame, or noNext
}

const noNext = ^uint32(0)

/// Physmem_t is the global physical frame allocator: a fixed arena of
/// frames with a singly-linked free list threaded through unused frames
/// and a refcount per frame, mirroring mem.Physmem_t's freei/freelen/Pgs
/// shape without the per-CPU free lists (this module targets a single
/// virtual CPU, per spec.md §5).
type Physmem_t struct {
	sync.Mutex
	arena   []byte
	frames  []frame_t
	freei   uint32
	freelen int32
}

/// Physmem is the global frame allocator instance, sized by Init.
var Physmem = &Physmem_t{}

/// Init reserves nframes frames of backing storage and threads them onto
/// the free list. It must be called exactly once before any allocation.
func (p *Physmem_t) Init(nframes int) {
	p.arena = make([]byte, nframes*PGSIZE)
	p.frames = make([]frame_t, nframes)
	for i := range p.frames {
		p.frames[i].refcnt = 0
		p.frames[i].nexti = uint32(i) + 1
	}
	p.frames[len(p.frames)-1].nexti = noNext
	p.freei = 0
	p.freelen = int32(nframes)
}

func (p *Physmem_t) idx(pa Pa_t) uint32 {
	return uint32(pa) >> PGSHIFT
}

/// Bytes returns the byte slice backing the frame at pa.
func (p *Physmem_t) Bytes(pa Pa_t) []byte {
	i := p.idx(pa)
	return p.arena[int(i)*PGSIZE : (int(i)+1)*PGSIZE]
}

/// allocFrame pops a frame from the free list, zeroes it, and sets its
/// refcount to 1. It returns false if no frames remain (ENOMEM per the
/// fork fault model in spec.md §4.C: the caller turns this into a fatal
/// assertion).
func (p *Physmem_t) allocFrame() (Pa_t, bool) {
	p.Lock()
	defer p.Unlock()
	if p.freei == noNext {
		return 0, false
	}
	i := p.freei
	p.freei = p.frames[i].nexti
	p.freelen--
	p.frames[i].refcnt = 1
	pa := Pa_t(i) << PGSHIFT
	clear(p.Bytes(pa))
	return pa, true
}

/// freeFrame returns a frame to the free list once its refcount drops to
/// zero.
func (p *Physmem_t) freeFrame(pa Pa_t) {
	p.Lock()
	defer p.Unlock()
	i := p.idx(pa)
	p.frames[i].refcnt--
	if p.frames[i].refcnt < 0 {
		panic("frame refcount went negative")
	}
	if p.frames[i].refcnt == 0 {
		p.frames[i].nexti = p.freei
		p.freei = i
		p.freelen++
	}
}

/// Refup increments a frame's reference count.
func (p *Physmem_t) Refup(pa Pa_t) {
	i := p.idx(pa)
	if atomic.AddInt32(&p.frames[i].refcnt, 1) <= 1 {
		panic("refup of free frame")
	}
}

/// Free returns the number of frames currently on the free list.
func (p *Physmem_t) Free() int {
	p.Lock()
	defer p.Unlock()
	return int(p.freelen)
}

/// AllocFrame allocates a single zeroed physical frame with a refcount of
/// 1, or reports false when none remain. It sets no access bits: the
/// caller (vm.CloneTable) ORs the present/rw/user/accessed/dirty bits into
/// the page-table entry it is building.
func AllocFrame() (Pa_t, bool) {
	return Physmem.allocFrame()
}

/// FreeFrame releases a physical frame back to the allocator.
func FreeFrame(pa Pa_t) {
	Physmem.freeFrame(pa)
}

/// CopyPagePhysical performs a blind, full-frame physical-to-physical
/// copy — no copy-on-write, no partial copies, exactly as spec.md §4.A
/// describes ("Frames are copied blindly").
func CopyPagePhysical(src, dst Pa_t) {
	copy(Physmem.Bytes(dst), Physmem.Bytes(src))
}

/// KvmallocP allocates a zeroed kernel-heap region of the requested size
/// (at most one frame — every caller in this subsystem allocates either a
/// single page table or a directory's worth of bookkeeping, neither of
/// which needs more) and returns both a usable Go slice and the synthetic
/// physical address backing it, mirroring the original
/// kvmalloc_p(size, &phys) signature named in spec.md §6.
func KvmallocP(size int) ([]byte, Pa_t) {
	if size > PGSIZE {
		panic("KvmallocP: request exceeds one frame")
	}
	pa, ok := Physmem.allocFrame()
	if !ok {
		return nil, 0
	}
	return Physmem.Bytes(pa)[:size], pa
}

/// Free releases a region obtained from KvmallocP.
func Free(pa Pa_t) {
	Physmem.freeFrame(pa)
}
