// Package tinfo tracks per-thread runtime state and the identity of
// whichever process currently holds the single virtual CPU (spec.md §5:
// "single CPU ... at most one process executes kernel or user code").
//
// The teacher's copy answers "who is current?" with runtime.Gptr/Setgptr,
// a pair of hooks grafted onto a private fork of the Go runtime so each
// OS thread can stash a pointer the scheduler never has to look up. That
// hook doesn't exist in stock Go, and this subsystem doesn't need it: the
// single-CPU rule already means only one goroutine is ever "the CPU" at a
// time, so a plain mutex-guarded package variable carries the same
// information with the same exclusivity guarantee, enforced by the lock
// instead of by custom runtime support.
package tinfo

import "sync"

import "defs"

/// Tnote_t stores per-thread state used by the scheduler.
type Tnote_t struct {
	// XXX "alive" should be "terminated"
	State    interface{}
	Alive    bool
	Killed   bool
	Isdoomed bool // XXX maybe don't need doomed, but can use killed?
	// protects killed, Killnaps.Cond and Kerr, and is a leaf lock
	sync.Mutex
	Killnaps struct {
		Killch chan bool
		Cond   *sync.Cond
		Kerr   defs.Err_t
	}
}

/// Doomed reports whether the thread is marked as doomed.
func (t *Tnote_t) Doomed() bool {
	return t.Isdoomed
}

/// Threadinfo_t tracks all thread notes belonging to one process.
type Threadinfo_t struct {
	Notes map[defs.Tid_t]*Tnote_t
	sync.Mutex
}

/// Init initializes the thread info map.
func (t *Threadinfo_t) Init() {
	t.Notes = make(map[defs.Tid_t]*Tnote_t)
}

var curmu sync.Mutex
var cur *Tnote_t

/// Current returns the thread note of whoever holds the CPU. Panics if
/// nothing is current, since that can only mean a caller reached here
/// outside of switch_task/switch_next's critical section.
func Current() *Tnote_t {
	curmu.Lock()
	defer curmu.Unlock()
	if cur == nil {
		panic("nuts")
	}
	return cur
}

/// SetCurrent installs p as the thread holding the CPU. Called by
/// tasking_install for init and by switch_next for the process it is
/// about to hand the CPU to; panics if another thread is still current.
func SetCurrent(p *Tnote_t) {
	curmu.Lock()
	defer curmu.Unlock()
	if p == nil {
		panic("nuts")
	}
	if cur != nil {
		panic("nuts")
	}
	cur = p
}

/// ClearCurrent releases the CPU before handing it to the next process.
func ClearCurrent() {
	curmu.Lock()
	defer curmu.Unlock()
	if cur == nil {
		panic("nuts")
	}
	cur = nil
}
