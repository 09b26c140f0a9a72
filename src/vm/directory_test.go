package vm

import (
	"testing"

	"mem"
)

func setup(t *testing.T, frames int) {
	t.Helper()
	mem.Physmem.Init(frames)
}

// B1: an empty source page table yields an empty clone with no frames
// allocated.
func TestCloneTableEmpty(t *testing.T) {
	setup(t, 16)
	src := &Table_t{}
	free0 := mem.Physmem.Free()

	dst, _, err := CloneTable(src)
	if err != nil {
		t.Fatalf("CloneTable: %v", err)
	}
	for i, pte := range dst.Pages {
		if pte != 0 {
			t.Fatalf("slot %d: expected empty clone, got %#x", i, pte)
		}
	}
	if got := mem.Physmem.Free(); got != free0-1 {
		// -1 for the table's own backing frame from KvmallocP.
		t.Fatalf("free frames = %d, want %d (only the table itself)", got, free0-1)
	}
}

// B2: a directory consisting entirely of kernel-shared entries clones
// by reference — no new tables or frames are allocated.
func TestCloneDirectorySharedOnly(t *testing.T) {
	setup(t, 32)

	kernel := NewDirectory()
	tbl := &Table_t{}
	pa, ok := mem.AllocFrame()
	if !ok {
		t.Fatal("out of frames")
	}
	tbl.Pages[0] = pa | mem.PTE_P | mem.PTE_W
	kernel.Tables[0] = tbl
	kernel.PhysTables[0] = pa | mem.Pa_t(0x07)

	free0 := mem.Physmem.Free()

	dst, err := CloneDirectory(kernel, kernel)
	if err != nil {
		t.Fatalf("CloneDirectory: %v", err)
	}
	if dst.Tables[0] != kernel.Tables[0] {
		t.Fatalf("shared slot was deep-copied instead of linked by reference")
	}
	if got := mem.Physmem.Free(); got != free0-1 {
		// -1 for dst's own directory backing frame; no user table cloned.
		t.Fatalf("free frames = %d, want %d (no clone of shared table)", got, free0-1)
	}
}

// R1: clone_directory followed by free_directory returns to the
// allocator exactly the frames and tables it claimed.
func TestCloneFreeDirectoryRoundTrip(t *testing.T) {
	setup(t, 64)

	kernel := NewDirectory()
	src := NewDirectory()

	tbl := &Table_t{}
	for i := 0; i < 4; i++ {
		pa, ok := mem.AllocFrame()
		if !ok {
			t.Fatal("out of frames")
		}
		tbl.Pages[i] = pa | mem.PTE_P | mem.PTE_W | mem.PTE_U
	}
	src.Tables[5] = tbl
	src.PhysTables[5] = mem.Pa_t(0x07)

	free0 := mem.Physmem.Free()

	dst, err := CloneDirectory(src, kernel)
	if err != nil {
		t.Fatalf("CloneDirectory: %v", err)
	}
	if mem.Physmem.Free() == free0 {
		t.Fatal("expected frames to be consumed by the deep clone")
	}

	FreeDirectory(dst, kernel)

	if got := mem.Physmem.Free(); got != free0 {
		t.Fatalf("free frames after round trip = %d, want %d (leak of %d frames)",
			got, free0, free0-got)
	}
}
