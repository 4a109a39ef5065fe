package interp

import (
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

// Frame is one activation record: a method, its local-variable slots, its
// operand stack, and the program counter. Grounded on
// daimatz-gojvm/pkg/vm/frame.go's Frame (method + locals []Value + stack
// []Value + pc), extended with a caller link, a resolved-reference cache
// and the marked_return/marked_throw discipline spec §4.5 names (the
// teacher instead returns a (Value, error) pair straight out of Execute,
// which cannot distinguish "returned normally with a null value" from
// "about to propagate an exception" as cheaply once invoke chains get
// deep — the marked-state fields make that distinction an explicit frame
// field instead of relying on Go's call stack to carry it).
//
// Unlike original_source/frame.hpp, this Frame does not overlay its
// locals onto the caller's operand stack tail; each frame owns an
// independent locals slice. That memory-layout trick saves one copy per
// call in a native stack-machine implementation, but Go's escape
// analysis and GC already make a freshly allocated slice per call cheap,
// and overlaying slices would fight Go's ownership model for no benefit.
type Frame struct {
	Method *rclass.Method
	Class  *rclass.Class // Method.DeclaringClass, kept alongside for quick constant-pool access

	Locals []slot.Slot
	Stack  []slot.Slot
	sp     int
	PC     int

	Caller *Frame
	Level  int // recursion depth, Caller.Level+1; used for StackOverflowError

	cache resolvedCache

	// Exchange fields the dispatch loop in exec.go consults after a
	// handler call returns control to Run's outer loop.
	markedReturn bool
	returnValue  slot.Slot
	markedThrow  *ThrownException
}

// NewFrame allocates a fresh activation record for method, called with
// its arguments (including an implicit `this` for instance methods,
// already slotted by the caller) pre-populated into the leading locals.
func NewFrame(method *rclass.Method, caller *Frame) *Frame {
	level := 0
	if caller != nil {
		level = caller.Level + 1
	}
	return &Frame{
		Method: method,
		Class:  method.DeclaringClass,
		Locals: make([]slot.Slot, method.MaxLocals),
		Stack:  make([]slot.Slot, method.MaxStack),
		Caller: caller,
		Level:  level,
	}
}

func (f *Frame) Push(v slot.Slot) { f.Stack[f.sp] = v; f.sp++ }
func (f *Frame) Pop() slot.Slot   { f.sp--; return f.Stack[f.sp] }
func (f *Frame) PopN(n int) []slot.Slot {
	f.sp -= n
	out := make([]slot.Slot, n)
	copy(out, f.Stack[f.sp:f.sp+n])
	return out
}
func (f *Frame) Peek() slot.Slot { return f.Stack[f.sp-1] }
func (f *Frame) PushInt(v int32)     { f.Push(slot.Int(v)) }
func (f *Frame) PushLong(v int64)    { f.Push(slot.Long(v)) }
func (f *Frame) PushFloat(v float32) { f.Push(slot.Float(v)) }
func (f *Frame) PushDouble(v float64) { f.Push(slot.Double(v)) }
func (f *Frame) PushRef(v interface{}) { f.Push(slot.Reference(v)) }

// wordPair is what the dup2/pop2 family of opcodes (JVMS 6.5) actually
// operate on: two "words" of operand-stack state, which is either a
// single category-2 value (long/double, slot.Width()==2) or two
// category-1 values stacked on top of each other. The operand stack
// here stores one physical slot per value regardless of category, so
// popWordPair inspects the top slot's width to tell which case applies
// rather than always popping two physical slots.
type wordPair struct {
	wide bool
	hi   slot.Slot // nearer the top; the only value when wide
	lo   slot.Slot // further from the top; zero value when wide
}

func popWordPair(f *Frame) wordPair {
	if f.Peek().Width() == 2 {
		return wordPair{wide: true, hi: f.Pop()}
	}
	hi := f.Pop()
	lo := f.Pop()
	return wordPair{hi: hi, lo: lo}
}

// push re-pushes the pair in its original order: lo then hi (a no-op
// for the wide case, which only ever has hi).
func (p wordPair) push(f *Frame) {
	if !p.wide {
		f.Push(p.lo)
	}
	f.Push(p.hi)
}

// roots appends every reference currently reachable through this frame's
// locals and live operand stack into out, returning the extended slice;
// used by vmthread.VMThread.GCRoots to walk its whole call chain.
func (f *Frame) roots(out []slot.Slot) []slot.Slot {
	for _, s := range f.Locals {
		if s.Type == slot.Ref {
			out = append(out, s)
		}
	}
	for i := 0; i < f.sp; i++ {
		if f.Stack[i].Type == slot.Ref {
			out = append(out, f.Stack[i])
		}
	}
	return out
}

// Roots walks the caller chain starting at f, collecting every reachable
// reference. Exported so pkg/vmthread can implement heap.RootProvider by
// calling this on a thread's current top frame.
func (f *Frame) Roots() []slot.Slot {
	var out []slot.Slot
	for cur := f; cur != nil; cur = cur.Caller {
		out = cur.roots(out)
	}
	return out
}
