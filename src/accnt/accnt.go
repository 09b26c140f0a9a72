// Package accnt tracks per-process CPU time. The tasking core (package
// proc) embeds one Accnt_t per process record and calls Finish when the
// process is reaped. The totals stay in the record; wait returns only the
// exit status, not the usage.
package accnt

import "sync/atomic"
import "time"

/**
 * Accnt_t accumulates per-process accounting information.
 *
 * Sysns stores runtime in nanoseconds. The teacher's copy also tracks
 * Userns (time spent executing user-mode code) and exposes both as a
 * getrusage()-style rusage buffer; this kernel never actually runs user
 * code (component F's trampoline only constructs the entry frame, it
 * never hands control to it), so there is no user time to charge and no
 * getrusage() syscall to serve — both are dropped rather than kept unused.
 */
type Accnt_t struct {
	/// Nanoseconds of system (kernel) time consumed.
	Sysns int64
}

/// Systadd adds delta nanoseconds to the system-time counter.
///
/// @param delta Amount to add in nanoseconds.
func (a *Accnt_t) Systadd(delta int) {
	atomic.AddInt64(&a.Sysns, int64(delta))
}

/// Now returns the current time in nanoseconds.
///
/// @return Current time since Unix epoch in nanoseconds.
func (a *Accnt_t) Now() int {
	return int(time.Now().UnixNano())
}

/// Sleep_time removes time spent blocked on a wait queue from system
/// time. The scheduler calls this when a process wakes, passing the
/// timestamp it recorded when the process joined the queue (spec.md's
/// wait_queue, component D) — this kernel has no separate I/O subsystem,
/// so blocking on a wait queue is the only "sleep" this accounts for.
///
/// @param since Timestamp when the wait began, in nanoseconds.
func (a *Accnt_t) Sleep_time(since int) {
	d := a.Now() - since
	a.Systadd(-d)
}

/// Finish finalizes accounting by adding time since @p inttime to system
/// time — called exactly once, by reap_process, with the timestamp the
/// process was constructed at, giving the reap a total lifetime-to-reap
/// accounting of its kernel time.
///
/// @param inttime Start time for measuring final system usage in nanoseconds.
func (a *Accnt_t) Finish(inttime int) {
	a.Systadd(a.Now() - inttime)
}
