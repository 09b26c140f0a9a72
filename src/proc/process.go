// Package proc is the multitasking core: process creation, forking,
// cloning, scheduling, context switching, exit/reap, and the ring-3 entry
// trampoline. It plays the role of task.c in the original source
// (_examples/original_source/kernel/sys/task.c) and of the teacher's own
// proc package — left entirely empty in the retrieval pack — built out
// here in the idiom the rest of the pack's process-adjacent packages
// (accnt, fd, hashtable, limits, tinfo, vm) already establish.
//
// The hardest part of the original design is that fork() returns twice:
// one C call site, reached by two different control flows, returns a
// different value to each. Go has no setjmp/longjmp or raw stack
// switching to fake that directly, so this package takes the
// reinterpretation spec.md §9 invites: encapsulate the stack-snapshot
// trick as a single primitive with an explicit ownership contract, and
// give the "child" control flow its own goroutine rather than a second
// return from the same call. Fork/Clone take a childEntry func()
// representing the code that runs with fork's return value conceptually
// 0; the parent's own call returns the child's pid, synchronously, same
// as the original. A one-goroutine-per-process model still needs a
// single-CPU rule enforced somewhere, so Scheduler hands a CPU token
// between process goroutines one at a time — see switch.go.
package proc

import (
	"sync"

	"accnt"
	"defs"
	"fd"
	"tinfo"
	"vm"
)

// kernel text bounds a resumed process's saved eip must fall within
// (I5). Real kernel text starts after the boot sector; the exact values
// don't matter here since nothing actually executes at these addresses,
// only resumeEip is ever stored, but bounds must still bracket it so the
// assertion in switch.go is real rather than vacuous.
const (
	codeStart uint32 = 0x00100000
	codeEnd   uint32 = 0x00400000
)

// resumeEip is the single resumption label every process's thread.eip is
// set to before it becomes ready. Spec.md §4.D: "The resumed task's
// first act — always — is to return from the eip-reading helper inside
// switch_task... This gives a uniform resumption contract regardless of
// how the task was originally suspended." Since every resumption runs
// the identical housekeeping (onResume, see switch.go), every ready
// process genuinely does resume at the same logical label.
const resumeEip uint32 = codeStart + 0x10

// queueState records where a process is among the places named by I3:
// not yet enqueued (new), the ready queue, the running slot, or the
// reapable queue. There is no wait-queue state; a process blocked in Wait
// keeps the state it had.
type queueState int

const (
	stateNew queueState = iota
	stateReady
	stateRunning
	stateReapable
)

// ThreadImage is spec.md §3's "Thread image": the saved continuation and
// owning page directory. Esp/Ebp/Eip are bookkeeping, not live machine
// state — control actually resumes via the per-process runGate channel
// in switch.go — but they are still real fields with real invariants
// (I5 on Eip) checked the same way the original scheduler's assembly
// would check them after a CR3/ESP/EIP reload.
type ThreadImage struct {
	// Stack is the high-water (top) synthetic address of this process's
	// kernel stack; the owned region is [Stack-KernelStackSize, Stack).
	Stack uint32
	Esp   uint32
	Ebp   uint32
	Eip   uint32

	PageDirectory *vm.Directory_t

	// KernelStack backs [Stack-KernelStackSize, Stack) and is what
	// Fork/Clone snapshot byte-for-byte into a child (spec.md §4.C).
	KernelStack []byte
}

// Process is spec.md §3's "Process record".
type Process struct {
	Pid       defs.Pid_t
	ParentPid defs.Pid_t

	mu       sync.Mutex
	status   int
	finished bool
	qstate   queueState

	Thread ThreadImage

	// SyscallRegisters is a weak reference (I4): the synthetic address,
	// not ownership, of the most recent trap frame within this
	// process's own kernel stack. -1 means none recorded yet.
	SyscallRegisters int64

	Fds []*fd.Fd_t

	Accounting accnt.Accnt_t
	// spawned is the timestamp Accounting.Finish measures lifetime-to-reap
	// system time against (set once, by spawnProcess).
	spawned int
	note    tinfo.Tnote_t

	// waiters holds weak references (by pid) to processes blocked on
	// this one's completion — spec.md §3's wait_queue, modeled per
	// Design Notes §9 ("a set of weak references into the process
	// table, keyed by pid") rather than direct pointers, so reaping
	// this process cannot leave a dangling reference inside a waiter.
	waiters map[defs.Pid_t]struct{}

	// done is closed exactly once, by task_exit, to wake every blocked
	// waiter (spec.md §4.E: "wakes the wait queue").
	done chan struct{}

	// runGate is this process's half of the context switch: switchNext
	// sends on it to hand over the CPU, and the process's own goroutine
	// blocks receiving from it whenever it is not running.
	runGate chan struct{}

	// resumeMarker is stamped with defs.ResumeSentinel by switchNext in
	// the instant this process is handed the CPU, and cleared by
	// onResume the one time it is observed — the literal value spec.md
	// §4.D calls "the sentinel `0x10000`", carried as data here rather
	// than as the accumulator value of an inline eip-read (P8).
	resumeMarker uint32
}

// Status returns the exit status and whether the process has finished
// (the one-way finished latch, I3).
func (p *Process) Status() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.finished
}

// Done returns the channel task_exit closes to wake waiters.
func (p *Process) Done() <-chan struct{} {
	return p.done
}
