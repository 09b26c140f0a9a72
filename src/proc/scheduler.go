package proc

import (
	"sync"

	"defs"
	"hashtable"
	"limits"
	"tinfo"
	"vm"
)

// Scheduler owns everything spec.md §1 scopes out as an external
// collaborator — the process table, ready/wait/reapable queues,
// next_ready_process/make_process_ready and friends — because nothing
// else in this module provides them. SPEC_FULL.md §D records the
// decision to make these concrete here rather than leave them as
// unimplemented interfaces: a tasking core with no process tree at all
// cannot be exercised or tested.
type Scheduler struct {
	// irqLock models "interrupts disabled": every critical section
	// spec.md §5 requires to run without preemption (fork, switch_task's
	// register capture, enter_user_jmp) holds this for its duration.
	irqLock sync.Mutex

	installed bool

	table *hashtable.Hashtable_t // defs.Pid_t (as int32) -> *Process
	next  defs.Pid_t

	readyMu sync.Mutex
	readyCv *sync.Cond
	ready   []*Process

	reapableMu sync.Mutex
	reapable   []*Process

	kernelDir *vm.Directory_t

	// currentDir is the page directory installed by the most recent
	// switch_next — the CR3 invariant P7 checks against.
	currentDir *vm.Directory_t

	limits *limits.Syslimit_t

	stackMu  sync.Mutex
	stackTop uint32

	sentinelHits int
}

// NewScheduler constructs an uninstalled scheduler with its own kernel
// page directory (the tables every cloned address space shares, per
// spec.md §4.A).
func NewScheduler() *Scheduler {
	s := &Scheduler{
		table:     hashtable.MkHash(64),
		kernelDir: vm.NewDirectory(),
		limits:    limits.MkSysLimit(),
		stackTop:  0x10000000,
	}
	s.readyCv = sync.NewCond(&s.readyMu)
	return s
}

// Install is tasking_install: spawns process 0 (init), installs it as
// current without going through switch_next (there is no caller to
// resume from yet), and marks the scheduler installed. Spec.md §6:
// "must be called with interrupts disabled; leaves them re-enabled."
// Callers here are expected to already hold no lock; Install takes and
// releases irqLock itself, modeling "disabled for the duration, then
// re-enabled" with the one lock this package has for that purpose.
func (s *Scheduler) Install() defs.Pid_t {
	s.irqLock.Lock()
	defer s.irqLock.Unlock()

	init := s.spawnProcess(s.kernelDir)
	init.Thread.Eip = resumeEip
	init.runGate = make(chan struct{}, 1)
	init.qstate = stateRunning
	// Install is the bootstrap: a current left behind by an earlier
	// scheduler in this process is dropped (ClearCurrent panics when
	// nothing is current, so that case is recovered) before init takes
	// the CPU.
	func() {
		defer func() { _ = recover() }()
		tinfo.ClearCurrent()
	}()
	tinfo.SetCurrent(&init.note)
	s.currentDir = init.Thread.PageDirectory
	s.installed = true
	return init.Pid
}

// Getpid returns the pid of whoever currently holds the CPU.
func (s *Scheduler) Getpid() defs.Pid_t {
	return processOf(tinfo.Current()).Pid
}

// allocKernelStack hands out a non-overlapping KernelStackSize region
// (I6, P4): a bump allocator over a synthetic address space, since there
// is no real memory map to carve regions out of.
func (s *Scheduler) allocKernelStack() (uint32, []byte) {
	s.stackMu.Lock()
	defer s.stackMu.Unlock()
	s.stackTop += defs.KernelStackSize
	return s.stackTop, make([]byte, defs.KernelStackSize)
}

// spawnProcess is spawn_process: a zeroed process record with a fresh
// kernel stack and a new unique pid, not yet enqueued anywhere
// (spec.md §4.B). set_process_environment's contract — installing dir
// without copying it, transferring ownership — is folded in here since
// every caller in this package supplies dir at construction time.
func (s *Scheduler) spawnProcess(dir *vm.Directory_t) *Process {
	top, stack := s.allocKernelStack()
	p := &Process{
		Pid:              s.next,
		SyscallRegisters: -1,
		waiters:          make(map[defs.Pid_t]struct{}),
		done:             make(chan struct{}),
		runGate:          make(chan struct{}, 1),
	}
	p.spawned = p.Accounting.Now()
	p.Thread.Stack = top
	p.Thread.KernelStack = stack
	p.Thread.PageDirectory = dir
	p.note.State = p // lets processOf recover the Process from tinfo.Current()
	s.next++

	s.table.Set(int32(p.Pid), p)
	return p
}

func (s *Scheduler) lookup(pid defs.Pid_t) *Process {
	v, ok := s.table.Get(int32(pid))
	if !ok {
		return nil
	}
	return v.(*Process)
}

// Lookup resolves a pid to its process record, or nil if none exists —
// the primitive any getpid()/wait()-style syscall dispatcher built on
// top of this core needs to turn a pid argument into a *Process.
func (s *Scheduler) Lookup(pid defs.Pid_t) *Process {
	return s.lookup(pid)
}

// ProcessAvailable reports whether at least one process besides init
// exists in the table — the bootstrap scenario S1 checks this after a
// second spawn.
func (s *Scheduler) ProcessAvailable() bool {
	return s.table.Size() > 1
}
