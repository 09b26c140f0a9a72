// Package vm implements the address-space cloner named as component A in
// spec.md §4.A: a two-level x86 page directory/page table pair, deep-copied
// frame-by-frame for a forked process and shallow-shared for the kernel's
// own global mappings.
//
// This is a direct port of clone_directory/clone_table/free_directory from
// the original C (_examples/original_source/kernel/sys/task.c), adapted to
// Go's type system in the manner of the teacher's vm/as.go: an embedded
// sync.Mutex, a Lockassert-style invariant check, and named accessor
// methods rather than raw struct-field pokes from outside the package.
package vm

import (
	"sync"

	"defs"
	"mem"
)

const entries = 1024

/// Table_t is a second-level x86 page table: 1024 page-table entries,
/// each either empty (0) or a physical frame address ORed with its access
/// bits.
type Table_t struct {
	Pages [entries]mem.Pa_t
}

/// Directory_t is the top-level x86 paging structure named in spec.md
/// §3: parallel Tables/PhysTables arrays (I1: one is non-nil iff the
/// other is), plus the cached physical address of PhysTables itself —
/// the value that is loaded into the paging base register.
type Directory_t struct {
	sync.Mutex

	Tables     [entries]*Table_t
	PhysTables [entries]mem.Pa_t

	// PhysicalAddress is the value loaded into the paging base register:
	// the synthetic physical address of the directory's backing frame
	// from KvmallocP. No offset for the position of PhysTables within the
	// struct is added to it.
	PhysicalAddress mem.Pa_t

	backing mem.Pa_t
}

/// Lockassert panics if the directory's mutex is not held by the caller;
/// used the same way vm.Vm_t.Lockassert_pmap is used in the teacher to
/// catch missing-lock bugs during development rather than in production
/// builds.
func (d *Directory_t) Lockassert() {
	if !d.TryLock() {
		return
	}
	d.Unlock()
	panic("directory lock must be held")
}

/// empty reports whether slot i is unused (I1: Tables[i] is non-nil iff
/// PhysTables[i] is non-nil, so either array may be consulted).
func (d *Directory_t) empty(i int) bool {
	return d.Tables[i] == nil || uint32(d.PhysTables[i]) == defs.PdeAbsent
}

/// shared reports whether slot i is a kernel-global table linked by
/// reference rather than owned by this directory (I2).
func (d *Directory_t) shared(kernel *Directory_t, i int) bool {
	return kernel != nil && kernel.Tables[i] == d.Tables[i]
}

/// NewDirectory allocates a directory's bookkeeping and mints it a
/// synthetic physical address via the kernel heap, exactly as
/// clone_directory's `kvmalloc_p(sizeof(page_directory_t), &phys)` does.
/// It returns an empty directory (every slot absent); callers that want
/// the kernel's global mappings installed call CloneDirectory instead.
func NewDirectory() *Directory_t {
	_, phys := mem.KvmallocP(mem.PGSIZE)
	d := &Directory_t{}
	for i := range d.PhysTables {
		d.PhysTables[i] = mem.Pa_t(defs.PdeAbsent)
	}
	d.backing = phys
	d.PhysicalAddress = phys
	return d
}

/// CloneTable deep-copies a single page table: for every present frame it
/// allocates a fresh physical frame, mirrors the access bits, and asks
/// the frame allocator to physically copy the source frame's bytes into
/// the new one. Frames are copied blindly — no copy-on-write (spec.md
/// §4.A). It returns the new table and the physical address of the new
/// table's backing frame.
func CloneTable(src *Table_t) (*Table_t, mem.Pa_t, error) {
	buf, phys := mem.KvmallocP(mem.PGSIZE)
	if buf == nil {
		return nil, 0, errOOM
	}
	dst := &Table_t{}
	for i, pte := range src.Pages {
		if pte == 0 {
			continue
		}
		srcFrame := pte &^ (mem.PTE_P | mem.PTE_W | mem.PTE_U | mem.PTE_A | mem.PTE_D)
		newFrame, ok := mem.AllocFrame()
		if !ok {
			freeTable(dst)
			mem.Free(phys)
			return nil, 0, errOOM
		}
		bits := pte & (mem.PTE_P | mem.PTE_W | mem.PTE_U | mem.PTE_A | mem.PTE_D)
		dst.Pages[i] = newFrame | bits
		mem.CopyPagePhysical(srcFrame, newFrame)
	}
	return dst, phys, nil
}

// freeTable returns every present frame listed in t's entries to the
// allocator. It does not free t's own backing frame (the phys CloneTable
// returned) — callers that own that address free it separately, since
// freeTable alone is also used to unwind a partially built clone before
// a phys address has been committed anywhere.
func freeTable(t *Table_t) {
	for _, pte := range t.Pages {
		if pte == 0 {
			continue
		}
		frame := pte &^ (mem.PTE_P | mem.PTE_W | mem.PTE_U | mem.PTE_A | mem.PTE_D)
		mem.FreeFrame(frame)
	}
}

/// errOOM is returned by the table/directory cloner when the frame
/// allocator is exhausted; fork.go turns this into a fatal kernel
/// assertion per spec.md §7 ("Resource exhaustion during fork ... halt"),
/// matching the original's `assert(directory && "Could not allocate...")`.
var errOOM = oomErr{}

type oomErr struct{}

func (oomErr) Error() string { return "vm: out of physical frames" }

/// CloneDirectory deep-copies src: kernel-shared tables (those present,
/// by pointer identity, in kernel's own Tables array) are linked by
/// reference; every other present table is deep-cloned via CloneTable
/// with PDE flags forced to present|writable|user, exactly as
/// clone_directory does in the original.
func CloneDirectory(src, kernel *Directory_t) (*Directory_t, error) {
	dst := NewDirectory()
	for i := 0; i < entries; i++ {
		if src.empty(i) {
			continue
		}
		if src.shared(kernel, i) {
			dst.Tables[i] = src.Tables[i]
			dst.PhysTables[i] = src.PhysTables[i]
			continue
		}
		tbl, phys, err := CloneTable(src.Tables[i])
		if err != nil {
			FreeDirectory(dst, kernel)
			return nil, err
		}
		dst.Tables[i] = tbl
		dst.PhysTables[i] = phys | mem.Pa_t(defs.PdePresentWritableUser)
	}
	return dst, nil
}

/// FreeDirectory releases every table owned (not shared) by dir — first
/// its frames, then the table's own backing frame, exactly the order
/// free_directory follows in the original — then the directory's own
/// backing frame (I2: shared tables are left untouched — they belong to
/// kernel, or whichever directory owns them).
func FreeDirectory(dir, kernel *Directory_t) {
	for i := 0; i < entries; i++ {
		if dir.empty(i) {
			continue
		}
		if dir.shared(kernel, i) {
			continue
		}
		freeTable(dir.Tables[i])
		tableFrame := dir.PhysTables[i] &^ mem.Pa_t(defs.PdePresentWritableUser)
		mem.Free(tableFrame)
		dir.Tables[i] = nil
	}
	mem.Free(dir.backing)
}
