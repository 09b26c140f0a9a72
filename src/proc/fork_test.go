package proc

import (
	"sync"
	"testing"

	"defs"
	"fd"
	"mem"
)

// fakeFdops is a minimal fdops.Fdops_i backing a descriptor in tests: it
// counts Reopen/Close calls instead of touching any real resource.
type fakeFdops struct {
	mu      sync.Mutex
	reopens int
	closed  bool
}

func (f *fakeFdops) Reopen() defs.Err_t {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reopens++
	return 0
}

func (f *fakeFdops) Close() defs.Err_t {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return 0
}

// Fork/Clone relocate a non-nil syscall_registers weak reference by the
// signed delta between the two kernel stacks' top addresses (spec.md
// §4.C, I4) — exercised directly here since none of the end-to-end
// scenarios in proc_test.go ever populate a trap frame.
func TestForkRelocatesSyscallRegisters(t *testing.T) {
	mem.Physmem.Init(64)
	s := NewScheduler()
	s.Install()
	parent := s.lookup(0)

	const offsetFromTop = 128
	parent.SyscallRegisters = int64(parent.Thread.Stack) - offsetFromTop

	childPid, err := s.Fork(parent, func() {})
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	child := s.lookup(childPid)

	want := int64(child.Thread.Stack) - offsetFromTop
	if child.SyscallRegisters != want {
		t.Fatalf("child.SyscallRegisters = %#x, want %#x", child.SyscallRegisters, want)
	}
}

// Clone shares the parent's address space instead of deep-cloning it.
func TestCloneSharesAddressSpace(t *testing.T) {
	mem.Physmem.Init(64)
	s := NewScheduler()
	s.Install()
	parent := s.lookup(0)

	childPid, err := s.Clone(parent, func() {})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	child := s.lookup(childPid)

	if child.Thread.PageDirectory != parent.Thread.PageDirectory {
		t.Fatal("clone did not share the parent's address space")
	}
	if &child.Thread.KernelStack[0] == &parent.Thread.KernelStack[0] {
		t.Fatal("clone must still own a distinct kernel stack")
	}
}

// Fork duplicates the parent's descriptor table by reopening each live
// entry (spec.md §3's Process.Fds), leaving closed slots nil.
func TestForkDuplicatesFds(t *testing.T) {
	mem.Physmem.Init(64)
	s := NewScheduler()
	s.Install()
	parent := s.lookup(0)

	open := &fakeFdops{}
	parent.Fds = []*fd.Fd_t{
		{Fops: open, Perms: fd.FD_READ},
		nil,
	}

	childPid, err := s.Fork(parent, func() {})
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	child := s.lookup(childPid)

	if len(child.Fds) != len(parent.Fds) {
		t.Fatalf("len(child.Fds) = %d, want %d", len(child.Fds), len(parent.Fds))
	}
	if child.Fds[1] != nil {
		t.Fatal("closed slot must stay nil across fork")
	}
	if child.Fds[0] == parent.Fds[0] {
		t.Fatal("fork must give the child its own *Fd_t, not share the parent's")
	}
	if open.reopens != 1 {
		t.Fatalf("Reopen called %d times, want 1", open.reopens)
	}
	if child.Fds[0].Perms != fd.FD_READ {
		t.Fatalf("child fd perms = %#x, want %#x", child.Fds[0].Perms, fd.FD_READ)
	}
}
