// Command tasking-demo exercises the multitasking core end to end:
// tasking_install, a fork, a timer-driven switch, task_exit, and the
// parent reaping the child's status through wait. It plays the role the
// teacher's own cmd/ tools play for their subsystems — a small, runnable
// sanity check rather than a production entry point.
package main

import (
	"fmt"
	"time"

	"defs"
	"mem"
	"proc"
)

func main() {
	mem.Physmem.Init(256)

	s := proc.NewScheduler()
	initPid := s.Install()
	init := s.Lookup(initPid)
	fmt.Printf("installed: init pid=%d\n", initPid)

	// childPid is filled in right after Fork returns, before the child
	// goroutine ever gets a chance to run childEntry — see switch.go.
	var childPid defs.Pid_t
	childPid, err := s.Fork(init, func() {
		fmt.Println("child: running")
		s.TaskExit(s.Lookup(childPid), 7)
	})
	if err != nil {
		fmt.Println("fork failed:", err)
		return
	}
	fmt.Printf("parent: forked child pid=%d\n", childPid)

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				s.SwitchTask(init, true)
				time.Sleep(time.Millisecond)
			}
		}
	}()

	status, err := s.Wait(init, childPid)
	close(stop)
	if err != nil {
		fmt.Println("wait failed:", err)
		return
	}
	fmt.Printf("parent: child exited with status=%d\n", status)
}
