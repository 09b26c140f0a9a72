// Package fdops defines the interface a process's open file descriptors
// satisfy. The teacher leaves this package empty — Fdops_i lives in a
// larger fork of biscuit that ships file, pipe, and socket backends this
// retrieval pack doesn't include — so only the subset fd.Copyfd and
// fd.Close_panic actually call is defined here.
package fdops

import "defs"

/// Fdops_i is implemented by whatever backs an open file descriptor.
/// Fork and Clone duplicate a process's descriptor table by calling
/// Reopen on each entry (spec.md's Process.Fds), and reap_process closes
/// every surviving entry via Close.
type Fdops_i interface {
	/// Reopen is called when a descriptor is duplicated across fork/clone;
	/// implementations bump whatever refcount backs them.
	Reopen() defs.Err_t
	/// Close releases the descriptor's resources.
	Close() defs.Err_t
}
