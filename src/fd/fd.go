// Package fd holds the per-process open file descriptor table that Fork
// and Clone duplicate. The teacher's copy also carries Cwd_t, a
// working-directory tracker built on the bpath/ustr path packages; this
// kernel has no file system or path-resolution component, so Cwd_t and
// that dependency are dropped — only the descriptor table itself, which
// the fork/clone data model in spec.md §3 (Process.Fds) needs, is kept.
package fd

import "defs"
import "fdops"

/// File descriptor permission bits.
const (
	FD_READ    = 0x1 /// read permission
	FD_WRITE   = 0x2 /// write permission
	FD_CLOEXEC = 0x4 /// close-on-exec flag
)

/// Fd_t represents an open file descriptor.
type Fd_t struct {
	// Fops is an interface implemented via a "pointer receiver", thus Fops
	// is a reference, not a value
	Fops  fdops.Fdops_i /// descriptor operations
	Perms int           /// permission bits
}

/// Copyfd duplicates an open file descriptor by reopening it. Fork and
/// Clone call this once per live entry in the parent's descriptor table.
func Copyfd(fd *Fd_t) (*Fd_t, defs.Err_t) {
	nfd := &Fd_t{}
	*nfd = *fd
	err := nfd.Fops.Reopen()
	if err != 0 {
		return nil, err
	}
	return nfd, 0
}

/// Close_panic closes the descriptor and panics on failure; reap_process
/// calls this for every surviving descriptor, since a failed close at
/// teardown indicates a collaborator bug rather than a recoverable error.
func Close_panic(f *Fd_t) {
	if f.Fops.Close() != 0 {
		panic("must succeed")
	}
}
