package proc

import "defs"

// Wait blocks self until childPid finishes, returning its exit status.
// This is the consumer side of the wait_queue spec.md §3 models as part
// of the process record: Fork/Clone publish the child pid, and whatever
// collaborator implements an actual wait() syscall on top of this core
// calls Wait to block on it (S4's "parent blocked on child's wait queue
// wakes with status == 7"). Accounting.Sleep_time attributes the block
// to the parent's own usage the same way accnt.Accnt_t already supports.
func (s *Scheduler) Wait(self *Process, childPid defs.Pid_t) (int, error) {
	child := s.lookup(childPid)
	if child == nil {
		return 0, errNoSuchChild(childPid)
	}
	s.addWaiter(child, self)

	since := self.Accounting.Now()
	<-child.Done()
	self.Accounting.Sleep_time(since)

	status, _ := child.Status()
	return status, nil
}

type errNoSuchChild defs.Pid_t

func (e errNoSuchChild) Error() string {
	return "proc: no such child process"
}
