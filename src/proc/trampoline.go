package proc

import "defs"

// UserFrame is the argument frame enter_user_jmp constructs on the user
// stack before the ring-3 transition (spec.md §4.F, tested by S5): from
// the top, the magic value the userland entry stub checks first, argc,
// argv, and a null terminator below them.
type UserFrame struct {
	Magic uint32
	Argc  uint32
	Argv  uint32
	Null  uint32
}

// UserEntry describes where and how a process lands in ring 3 after
// EnterUserJmp — there is no real ring transition to perform here, so
// this is the trampoline's testable artifact: the constructed frame plus
// the selectors and flag state the original's iret would establish.
type UserEntry struct {
	Entry     uint32
	StackTop  uint32
	Frame     UserFrame
	DataSel   uint16
	CodeSel   uint16
	FlagsIF   bool
}

// EnterUserJmp is enter_user_jmp(entry, argc, argv, stack_top): builds
// the argument frame at the top of the user stack and records the
// segment/flag state a real iret would load. It returns that UserEntry
// to its caller: the calling goroutine is not ended (unlike TaskExit),
// and no "user mode" code is run for this process.
func (s *Scheduler) EnterUserJmp(self *Process, entry, argc, argv, stackTop uint32) UserEntry {
	s.irqLock.Lock()
	defer s.irqLock.Unlock()

	return UserEntry{
		Entry:    entry,
		StackTop: stackTop,
		Frame: UserFrame{
			Magic: defs.UserEntryMagic,
			Argc:  argc,
			Argv:  argv,
			Null:  0,
		},
		DataSel: defs.UserDataSelector,
		CodeSel: defs.UserCodeSelector,
		FlagsIF: true,
	}
}
