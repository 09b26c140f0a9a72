package proc

import (
	"runtime"

	"fd"
	"vm"
)

// TaskExit is task_exit(retval): latch the exit status, wake every
// waiter, publish self as reapable, and switch away — permanently. It
// does not free the kernel stack, page directory, or fd table it is
// still running on; reapProcess does that later, from a different
// process's context (spec.md §4.E). runtime.Goexit ends this goroutine
// immediately after the switch, the same way the original never returns
// from the final switch_next call inside task_exit: there is no control
// flow left to resume.
func (s *Scheduler) TaskExit(self *Process, retval int) {
	self.mu.Lock()
	self.status = retval
	self.finished = true
	self.mu.Unlock()

	close(self.done)
	s.makeReapable(self)

	// switchNext's own suspension/hand-off protocol (switch.go) needs no
	// lock held across it; exiting==true means this call never blocks on
	// self.runGate in the first place, since self never resumes.
	s.switchNext(true, self)

	runtime.Goexit()
}

// Kexit is kexit(retval): a thin wrapper that halts if, contrary to
// task_exit's terminal contract, control somehow returns. Because
// TaskExit ends in runtime.Goexit, the panic below is unreachable in
// practice — which is exactly the point: it documents the misuse class
// spec.md §7 names ("kexit returning after task_exit") the same way an
// "unreachable" halt after an iret would in the original.
func (s *Scheduler) Kexit(self *Process, retval int) {
	s.TaskExit(self, retval)
	panic("kexit: task_exit returned, violating its terminal contract")
}

// reapProcess is reap_process: free everything task_exit left behind —
// the wait-queue membership set, the kernel stack, the address space
// (shared kernel tables are left alone by vm.FreeDirectory, I2), and the
// fd table — then remove the record from the process table. Per Design
// Notes §9, waiters are cleared here without being woken again; they
// were already woken by TaskExit's close(self.done) before reaping ever
// runs (spec.md's ordering guarantee, §5).
func (s *Scheduler) reapProcess(p *Process) {
	p.mu.Lock()
	p.waiters = nil
	p.mu.Unlock()

	p.Accounting.Finish(p.spawned)

	p.Thread.KernelStack = nil

	vm.FreeDirectory(p.Thread.PageDirectory, s.kernelDir)
	p.Thread.PageDirectory = nil

	for _, f := range p.Fds {
		if f != nil {
			fd.Close_panic(f)
		}
	}
	p.Fds = nil

	s.limits.Sysprocs.Give()
	s.table.Del(int32(p.Pid))
}
