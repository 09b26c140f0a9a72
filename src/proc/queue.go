package proc

import "tinfo"

// processOf recovers the Process a thread note belongs to (spawnProcess
// stashes it in Tnote_t.State — tinfo only knows about threads, not
// processes, so this is where the two meet).
func processOf(t *tinfo.Tnote_t) *Process {
	return t.State.(*Process)
}

// makeReady is make_process_ready: append to the ready queue and mark
// the process's queue membership (I3).
func (s *Scheduler) makeReady(p *Process) {
	p.mu.Lock()
	p.qstate = stateReady
	p.mu.Unlock()

	s.readyMu.Lock()
	s.ready = append(s.ready, p)
	s.readyCv.Signal()
	s.readyMu.Unlock()
}

// nextReadyProcess is next_ready_process: pop the head of the ready
// queue, blocking if it is currently empty. A real single-CPU kernel
// would instead idle with interrupts enabled waiting for the next tick
// (switch_from_cross_thread_lock does exactly that); blocking here is
// the goroutine-model equivalent; it never blocks forever in practice
// because pid 0 (init) is never exited and is always re-enqueued.
func (s *Scheduler) nextReadyProcess() *Process {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	for len(s.ready) == 0 {
		s.readyCv.Wait()
	}
	p := s.ready[0]
	s.ready = s.ready[1:]
	p.mu.Lock()
	p.qstate = stateRunning
	p.mu.Unlock()
	return p
}

// hasOtherRunnable reports whether some process other than self is
// ready — switch_task's B4 early-exit ("does not yield to itself").
func (s *Scheduler) hasOtherRunnable(self *Process) bool {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	for _, p := range s.ready {
		if p.Pid != self.Pid {
			return true
		}
	}
	return false
}

// makeReapable is make_process_reapable: move a finished process onto
// the reapable queue (I3: finished processes appear only here).
func (s *Scheduler) makeReapable(p *Process) {
	p.mu.Lock()
	p.qstate = stateReapable
	p.mu.Unlock()

	s.reapableMu.Lock()
	s.reapable = append(s.reapable, p)
	s.reapableMu.Unlock()
}

// nextReapableProcess is next_reapable_process: pop one reapable
// process, or nil if none are pending (should_reap's non-blocking
// query, folded into the pop rather than kept as a separate check).
func (s *Scheduler) nextReapableProcess() *Process {
	s.reapableMu.Lock()
	defer s.reapableMu.Unlock()
	if len(s.reapable) == 0 {
		return nil
	}
	p := s.reapable[0]
	s.reapable = s.reapable[1:]
	return p
}

// addWaiter registers waiter as blocked on target's completion — the
// weak-reference-by-pid membership spec.md §9's Design Notes describe.
func (s *Scheduler) addWaiter(target, waiter *Process) {
	target.mu.Lock()
	defer target.mu.Unlock()
	target.waiters[waiter.Pid] = struct{}{}
}
