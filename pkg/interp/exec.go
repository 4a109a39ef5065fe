package interp

import (
	"fmt"

	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/slot"
)

// Run executes frame to completion: a normal return (value, nil, nil), an
// exception that unwound past frame entirely (zero value, the escaping
// Throwable, nil), or a VM-internal fault such as malformed bytecode
// (zero value, nil, error). Grounded on daimatz-gojvm/pkg/vm/vm.go's
// Execute, whose top-level loop is "for { op := code[pc]; switch op { ... } }";
// kept as the same shape, extended with the safepoint poll on backward
// branches and a per-pc resolved-reference cache.
func Run(ctx Context, f *Frame) (slot.Slot, *heap.Oop, error) {
	ctx.Safepoint()
	ctx.PushFrame(f)
	defer ctx.PopFrame()
	for {
		if f.PC >= len(f.Method.Code) {
			return slot.Slot{}, nil, fmt.Errorf("interp: %s.%s%s: pc %d ran off the end of code (len %d)",
				f.Class.Name, f.Method.Name, f.Method.Descriptor, f.PC, len(f.Method.Code))
		}
		startPC := f.PC
		op := f.Method.Code[f.PC]
		f.PC++

		err := step(ctx, f, op)

		if f.markedThrow != nil {
			handlerPC, ok := findHandler(f, startPC, f.markedThrow.Oop)
			if ok {
				f.sp = 0
				f.Push(slot.Reference(f.markedThrow.Oop))
				f.PC = handlerPC
				f.markedThrow = nil
				continue
			}
			escaping := f.markedThrow.Oop
			f.markedThrow = nil
			return slot.Slot{}, escaping, nil
		}
		if err != nil {
			return slot.Slot{}, nil, err
		}
		if f.markedReturn {
			return f.returnValue, nil, nil
		}
	}
}
