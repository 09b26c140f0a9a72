package proc

import (
	"fmt"

	"caller"
	"defs"
	"tinfo"
)

// assertKernelText is I5: a ready process's saved eip must lie within
// the kernel text segment. Every ready process in this package carries
// the same resumeEip (see process.go), so this assertion is really
// guarding against a corrupted Process rather than a varied one — which
// is exactly the role it plays in the original: catching scheduler or
// stack-relocation bugs, not routing control flow. caller.Callerdump
// prints who called switch_next before the panic unwinds the stack,
// the same diagnostic the teacher reaches for on any fatal assertion.
func (s *Scheduler) assertKernelText(eip uint32) {
	if eip < codeStart || eip >= codeEnd {
		caller.Callerdump(1)
		panic(fmt.Sprintf("switch_next: eip %#x outside kernel text [%#x,%#x)", eip, codeStart, codeEnd))
	}
}

// onResume is the sentinel arm of switch_task (spec.md §4.D): "if eip
// equals the literal resumption sentinel... opportunistically drain the
// reapable queue... then return." In this goroutine model every
// resumption is the same event (unblocking on runGate), so the sentinel
// comparison collapses to "this always runs right after a process is
// handed the CPU" — onResume is called exactly once per switch-in (P8),
// which is what sentinelHits counts for tests.
func (s *Scheduler) onResume(self *Process) {
	if self.resumeMarker != defs.ResumeSentinel {
		panic("switch_next: resumed without observing the resumption sentinel")
	}
	self.resumeMarker = 0
	s.sentinelHits++
	for {
		r := s.nextReapableProcess()
		if r == nil {
			break
		}
		s.reapProcess(r)
	}
}

// switchNext is switch_next: pop the next ready process, install its
// page directory (the CR3 reload P7 checks), and hand it the CPU by
// signaling its runGate. Real hardware performs "load ebp/esp, load
// CR3, jump to eip" as one uninterruptible block; the equivalent
// indivisible step here is picking next and installing currentDir
// before any other goroutine can observe a half-updated scheduler —
// queue/current-process state is protected by readyMu/reapableMu/tinfo's
// own lock, not by irqLock, precisely because the caller that is about
// to suspend cannot go on holding irqLock across the suspension: the
// incoming task needs to be able to take it right back (e.g. to exit).
//
// Unless the caller is exiting, switchNext then blocks on self's own
// runGate until some later switch hands the CPU back — this blocking
// receive is the suspension point itself, and must happen without any
// lock held.
func (s *Scheduler) switchNext(exiting bool, self *Process) {
	next := s.nextReadyProcess()
	s.assertKernelText(next.Thread.Eip)

	tinfo.ClearCurrent()
	s.currentDir = next.Thread.PageDirectory
	tinfo.SetCurrent(&next.note)

	next.resumeMarker = defs.ResumeSentinel
	next.runGate <- struct{}{}

	if !exiting {
		<-self.runGate
		s.onResume(self)
	}
}

// SwitchTask is switch_task(reschedule): the cooperative/timer-driven
// yield point. Early-exits per B3/B4 if tasking hasn't been installed
// yet or no other process is runnable; otherwise saves self's
// continuation, optionally re-enqueues it as ready, and switches. The
// checks and the re-enqueue run under irqLock, modeling "disable
// interrupts for the duration" (spec.md §5) of that decision — but
// irqLock is released before switchNext's blocking receive, since that
// receive is exactly the period during which a different task runs with
// interrupts of its own.
func (s *Scheduler) SwitchTask(self *Process, reschedule bool) {
	s.irqLock.Lock()
	if !s.installed {
		s.irqLock.Unlock()
		return // B3
	}
	if !s.hasOtherRunnable(self) {
		s.irqLock.Unlock()
		return // B4
	}

	self.Thread.Eip = resumeEip
	if reschedule {
		s.makeReady(self)
	}
	s.irqLock.Unlock()

	s.switchNext(false, self)
}

// SwitchFromCrossThreadLock yields, same as SwitchTask(true), except
// that if no other process is runnable it releases interrupts and lets
// the next timer tick make progress instead of spinning with them
// disabled — spec.md §6's distinguishing feature of this entry point.
// The goroutine model has no interrupts to spin with, so "release and
// wait for the next tick" becomes simply returning; the caller resumes
// on its own schedule, which is the only kind of "next tick" this model
// has.
func (s *Scheduler) SwitchFromCrossThreadLock(self *Process) {
	s.irqLock.Lock()
	if !s.installed || !s.hasOtherRunnable(self) {
		s.irqLock.Unlock()
		return
	}
	s.irqLock.Unlock()
	s.SwitchTask(self, true)
}
