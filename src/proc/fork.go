package proc

import (
	"fmt"

	"defs"
	"fd"
	"util"
	"vm"
)

// magicOffset is where the stack-sanity cookie lives within a kernel
// stack snapshot (spec.md §4.C). Any offset works since KernelStack is
// an opaque bookkeeping buffer, not real executable memory; the point
// is only that the same bytes survive a full-region copy.
const magicOffset = 0

func writeMagic(stack []byte) {
	util.Writen(stack, 4, magicOffset, int(defs.TaskMagic))
}

func checkMagic(stack []byte) bool {
	return uint32(util.Readn(stack, 4, magicOffset)) == defs.TaskMagic
}

// Fork is fork(): duplicate parent's entire address space via
// vm.CloneDirectory, give the copy its own kernel stack snapshotted from
// parent's, and schedule childEntry to run as the child's control flow.
// Fork itself always returns the child's pid to the caller, synchronously
// — matching "the parent continues" from spec.md §4.C's discrimination
// step, since there is only ever one control flow here, the parent's.
// childEntry runs later, on its own goroutine, standing in for "the
// child path": the code that would see fork() return 0.
func (s *Scheduler) Fork(parent *Process, childEntry func()) (defs.Pid_t, error) {
	s.irqLock.Lock()
	defer s.irqLock.Unlock()

	if !s.limits.Sysprocs.Take() {
		panic("fork: process table exhausted")
	}

	dir, err := vm.CloneDirectory(parent.Thread.PageDirectory, s.kernelDir)
	if err != nil {
		s.limits.Sysprocs.Give()
		// Resource exhaustion during fork is fatal by contract
		// (spec.md §7) — the primitive has no transactional undo.
		panic(fmt.Sprintf("fork: %v", err))
	}

	child := s.forkChild(parent, dir, childEntry)
	return child.Pid, nil
}

// Clone is clone(stack_top, stack_old): identical to Fork except the
// child shares the parent's address space outright instead of receiving
// a deep copy, producing a thread of the same process rather than a
// child process. stack_top/stack_old name the user-stack pivot the
// caller performs around the syscall (spec.md §9's second open
// question); this primitive does not touch the user stack at all, by
// the same reasoning the original leaves the parameters unused here.
func (s *Scheduler) Clone(parent *Process, childEntry func()) (defs.Pid_t, error) {
	s.irqLock.Lock()
	defer s.irqLock.Unlock()

	if !s.limits.Sysprocs.Take() {
		panic("clone: process table exhausted")
	}

	child := s.forkChild(parent, parent.Thread.PageDirectory, childEntry)
	return child.Pid, nil
}

// forkChild is the shared body of Fork/Clone: spawn a process shell
// bound to dir, snapshot the parent's kernel stack into it, relocate the
// syscall-register weak reference by the single signed delta between
// the two stacks' top addresses (unifying the ESP/EBP fixup asymmetry
// spec.md §9 flags as a latent bug — see util.Relocate), and publish the
// child as ready.
func (s *Scheduler) forkChild(parent *Process, dir *vm.Directory_t, childEntry func()) *Process {
	child := s.spawnProcess(dir)
	child.ParentPid = parent.Pid

	writeMagic(parent.Thread.KernelStack)
	copy(child.Thread.KernelStack, parent.Thread.KernelStack)
	if !checkMagic(child.Thread.KernelStack) {
		// Invariant violation: stack relocation arithmetic was wrong.
		panic("fork: stack snapshot magic mismatch")
	}

	if parent.SyscallRegisters >= 0 {
		child.SyscallRegisters = util.Relocate(parent.SyscallRegisters,
			int64(parent.Thread.Stack), int64(child.Thread.Stack))
	}

	duplicateFds(parent, child)

	child.Thread.Eip = resumeEip

	go s.runChild(child, childEntry)
	s.makeReady(child)
	return child
}

// duplicateFds gives child its own copy of parent's descriptor table
// (spec.md §3's Process.Fds), calling fd.Copyfd once per live entry —
// a nil entry is a closed slot and is carried over as nil. A Copyfd
// failure is treated the same as any other fork-time resource
// exhaustion (spec.md §7): fatal, since this primitive has no
// transactional undo once the address space has already been cloned.
func duplicateFds(parent, child *Process) {
	if parent.Fds == nil {
		return
	}
	child.Fds = make([]*fd.Fd_t, len(parent.Fds))
	for i, f := range parent.Fds {
		if f == nil {
			continue
		}
		nf, err := fd.Copyfd(f)
		if err != 0 {
			panic(fmt.Sprintf("fork: duplicating fd %d: %v", i, err))
		}
		child.Fds[i] = nf
	}
}

// runChild is the child's control flow: it blocks until the scheduler
// first hands it the CPU, performs the same post-resumption housekeeping
// every switch-in performs (onResume), and then runs childEntry — the
// code standing in for "returns 0 from fork()".
func (s *Scheduler) runChild(child *Process, childEntry func()) {
	<-child.runGate
	s.onResume(child)
	childEntry()
}
