// Package caller prints a call stack for a fatal-assertion diagnostic —
// proc.assertKernelText calls Callerdump right before it panics, so a
// corrupted scheduler's panic comes with the call chain that reached it.
package caller

import (
	"fmt"
	"runtime"
)

// Callerdump prints the call stack starting at the given depth.
//
// Parameters:
//
//	start - stack frame to begin printing.
func Callerdump(start int) {
	i := start
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d\n", f, l)
		} else {
			s += fmt.Sprintf("\t<-%s:%d\n", f, l)
		}
	}
	fmt.Printf("%s", s)
}
