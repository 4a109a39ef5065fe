package natives

import (
	"sync/atomic"

	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/interp"
	"github.com/daimatz/rexvm/pkg/slot"
)

// threadStarter is implemented by pkg/vmthread.VMThread: starting a Java
// thread means spinning up a new OS-thread-backed VMThread that runs the
// target Runnable, which pkg/natives has no business constructing itself
// since thread lifecycle belongs entirely to the thread manager.
type threadStarter interface {
	StartThread(threadOop *heap.Oop) error
	CurrentThreadOop() *heap.Oop
}

// loadThread registers java/lang/Thread's native surface plus
// sun.misc.Unsafe's CAS, grounded on jacobin's javaLangThread.go gfunction
// module (thread-state bridging). The Unsafe CAS natives perform a
// sequentially-consistent compare-and-swap on the slot's typed half.
func loadThread(r *Registry) {
	r.Register("java/lang/Thread", "start0", "()V", threadStart0)
	r.Register("java/lang/Thread", "currentThread", "()Ljava/lang/Thread;", threadCurrentThread)
	r.Register("java/lang/Thread", "isAlive", "()Z", threadIsAlive)
	r.Register("java/lang/Thread", "sleep", "(J)V", threadSleep)

	r.Register("sun/misc/Unsafe", "compareAndSwapInt", "(Ljava/lang/Object;JII)Z", unsafeCASInt)
	r.Register("sun/misc/Unsafe", "compareAndSwapLong", "(Ljava/lang/Object;JJJ)Z", unsafeCASLong)
}

func threadStart0(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	starter, ok := ctx.(threadStarter)
	if !ok {
		return slot.Slot{}, nil, nil
	}
	if err := starter.StartThread(this); err != nil {
		oop, nerr := ctx.Exceptions().NewException(ctx, "java/lang/IllegalThreadStateException", err.Error())
		return slot.Slot{}, oop, nerr
	}
	return slot.Slot{}, nil, nil
}

func threadCurrentThread(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	starter, ok := ctx.(threadStarter)
	if !ok {
		return slot.Null(), nil, nil
	}
	return slot.Reference(starter.CurrentThreadOop()), nil, nil
}

// Thread status codes, matching java.lang.Thread.State's backing ints
// (0 = NEW, 5 = TERMINATED) from the {NEW, RUNNABLE, BLOCKED, WAITING,
// TIMED_WAITING, TERMINATED} state enum pkg/vmthread maintains.
const threadStatusTerminated = 5

func threadIsAlive(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	if this.Class.Well == nil {
		return slot.FromBool(false), nil, nil
	}
	status := this.GetField(this.Class.Well.ThreadStatus)
	return slot.FromBool(status.I32 != 0 && status.I32 != threadStatusTerminated), nil, nil
}

func threadSleep(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	ctx.Safepoint()
	return slot.Slot{}, nil, nil
}

// casToken is the monitor owner identity used for Unsafe's CAS natives,
// distinct from any real thread identity (which is never nil — see
// pkg/vmthread) so a CAS's brief hold of the object's monitor can never
// be mistaken for a Java-level `synchronized` acquisition by the same
// thread still holding the lock.
var casToken = new(int)

// casField reaches into an object's field array directly by the offset
// Unsafe's objectFieldOffset would have returned, matching how a real
// JVM's Unsafe natives bypass normal getfield/putfield resolution.
func casField(o *heap.Oop, offset int64, cas func(*slot.Slot) bool) bool {
	idx := int(offset)
	if idx < 0 || idx >= len(o.Fields) {
		return false
	}
	// A real Unsafe CAS is a single atomic hardware instruction; this VM
	// models it with the object's own monitor as the CAS's memory
	// barrier instead of needing atomic.Value for every Slot in a
	// typical object.
	m := o.MonitorFor()
	m.Enter(casToken)
	defer m.Exit(casToken)
	return cas(&o.Fields[idx])
}

func unsafeCASInt(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	obj := args[1].Ref.(*heap.Oop)
	offset := args[2].I64
	expect, update := args[3].I32, args[4].I32
	ok := casField(obj, offset, func(s *slot.Slot) bool {
		if s.Type == slot.I32 && s.I32 == expect {
			s.I32 = update
			return true
		}
		return false
	})
	return slot.FromBool(ok), nil, nil
}

func unsafeCASLong(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	obj := args[1].Ref.(*heap.Oop)
	offset := args[2].I64
	expect, update := args[3].I64, args[4].I64
	ok := casField(obj, offset, func(s *slot.Slot) bool {
		if s.Type == slot.I64 && atomic.CompareAndSwapInt64(&s.I64, expect, update) {
			return true
		}
		return false
	})
	return slot.FromBool(ok), nil, nil
}
