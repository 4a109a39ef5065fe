package interp

import "github.com/daimatz/rexvm/pkg/heap"

// ThrownException carries a live Throwable instance up through the
// interpreter's marked_throw discipline (spec §4.5): rather than using
// Go's own panic/recover or threading an error return through every
// opcode handler, a thrown exception is recorded on the Frame and the
// dispatch loop checks it after every instruction, exactly mirroring
// daimatz-gojvm/pkg/vm/exception.go's JavaException-as-Go-error approach
// but keyed off frame state instead of a returned error so exception
// tables can be consulted before unwinding the frame, not after.
type ThrownException struct {
	Oop *heap.Oop
}

func (t *ThrownException) Error() string {
	if t == nil || t.Oop == nil {
		return "interp: nil throwable"
	}
	return "interp: uncaught " + t.Oop.Class.Name
}

// findHandler searches this frame's method's exception table (JVMS
// 2.10) for a handler whose range covers pc and whose catch type is
// assignable from thrown's runtime class (catch-all handlers, used for
// finally blocks, have a nil CatchType and match anything).
func findHandler(f *Frame, pc int, thrown *heap.Oop) (int, bool) {
	for _, h := range f.Method.ExceptionHandlers {
		if pc < int(h.StartPC) || pc >= int(h.EndPC) {
			continue
		}
		if h.CatchType == nil || h.CatchType.IsAssignableFrom(thrown.Class) {
			return int(h.HandlerPC), true
		}
	}
	return 0, false
}
