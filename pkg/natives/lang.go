package natives

import (
	"fmt"
	"time"

	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/interp"
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

// loadLang registers the java.lang core: Object, Class, System, Runtime,
// Shutdown, Throwable, mirroring the file-per-class split the original
// native/core/*.hpp sources used.
func loadLang(r *Registry) {
	r.Register("java/lang/Object", "hashCode", "()I", objectHashCode)
	r.Register("java/lang/Object", "getClass", "()Ljava/lang/Class;", objectGetClass)
	r.Register("java/lang/Object", "clone", "()Ljava/lang/Object;", objectClone)
	r.Register("java/lang/Object", "notify", "()V", objectNotify)
	r.Register("java/lang/Object", "notifyAll", "()V", objectNotifyAll)
	r.Register("java/lang/Object", "wait", "(J)V", objectWait)

	r.Register("java/lang/Class", "getName", "()Ljava/lang/String;", classGetName)
	r.Register("java/lang/Class", "isInterface", "()Z", classIsInterface)
	r.Register("java/lang/Class", "isArray", "()Z", classIsArray)
	r.Register("java/lang/Class", "isPrimitive", "()Z", classIsPrimitive)
	r.Register("java/lang/Class", "getSuperclass", "()Ljava/lang/Class;", classGetSuperclass)

	r.Register("java/lang/System", "currentTimeMillis", "()J", systemCurrentTimeMillis)
	r.Register("java/lang/System", "nanoTime", "()J", systemNanoTime)
	r.Register("java/lang/System", "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", systemArraycopy)
	r.Register("java/lang/System", "identityHashCode", "(Ljava/lang/Object;)I", func(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
		return objectHashCode(ctx, args)
	})

	r.Register("java/lang/Runtime", "availableProcessors", "()I", runtimeAvailableProcessors)
	r.Register("java/lang/Runtime", "gc", "()V", runtimeGC)

	r.Register("java/lang/Shutdown", "halt0", "(I)V", shutdownHalt0)

	r.Register("java/lang/Throwable", "fillInStackTrace", "(I)Ljava/lang/Throwable;", throwableFillInStackTrace)
	r.Register("java/lang/Throwable", "getStackTraceDepth", "()I", throwableStackTraceDepth)
}

func objectHashCode(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this, ok := args[0].Ref.(*heap.Oop)
	if !ok || this == nil {
		return slot.Int(0), nil, nil
	}
	// Identity hash: the heap address is not stable/meaningful in Go, so
	// a pointer-derived integer stands in for HotSpot's biased-lock-word
	// identity hash — a 31-multiplier hash of the pointer's text, stable
	// for the object's lifetime since Go's collector does not move
	// objects; two distinct objects may hash to the same value.
	return slot.Int(pointerHash(this)), nil, nil
}

func pointerHash(o *heap.Oop) int32 {
	p := fmt.Sprintf("%p", o)
	var h int32
	for i := 0; i < len(p); i++ {
		h = h*31 + int32(p[i])
	}
	return h
}

func objectGetClass(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	mirror, err := ctx.WellKnown().MirrorFor(this.Class)
	if err != nil {
		return slot.Slot{}, nil, err
	}
	return slot.Reference(mirror), nil, nil
}

func objectClone(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	switch {
	case this.IsArray():
		elems := append([]slot.Slot(nil), this.Elements...)
		clone := &heap.Oop{Kind: this.Kind, Class: this.Class, Elements: elems}
		return slot.Reference(clone), nil, nil
	default:
		fields := append([]slot.Slot(nil), this.Fields...)
		clone := &heap.Oop{Kind: this.Kind, Class: this.Class, Fields: fields}
		return slot.Reference(clone), nil, nil
	}
}

func objectNotify(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	this.MonitorFor().Notify()
	return slot.Slot{}, nil, nil
}

func objectNotifyAll(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	this.MonitorFor().NotifyAll()
	return slot.Slot{}, nil, nil
}

func objectWait(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	timeout := args[1].I64
	if err := this.MonitorFor().Wait(ctx.ThreadID(), timeout); err != nil {
		oop, nerr := ctx.Exceptions().NewException(ctx, "java/lang/IllegalMonitorStateException", err.Error())
		if nerr != nil {
			return slot.Slot{}, nil, nerr
		}
		return slot.Slot{}, oop, nil
	}
	return slot.Slot{}, nil, nil
}

func classGetName(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	target := this.Mirror.Class
	name := target.Name
	if target.Kind == rclass.KindInstance {
		name = dotted(name)
	}
	alloc := ctx.Allocator()
	str, err := alloc.NewJavaString(name, ctx.WellKnown().StringClass(), ctx.WellKnown().CharArrayClass())
	if err != nil {
		return slot.Slot{}, nil, err
	}
	return slot.Reference(str), nil, nil
}

func dotted(internal string) string {
	out := []byte(internal)
	for i, c := range out {
		if c == '/' {
			out[i] = '.'
		}
	}
	return string(out)
}

func classIsInterface(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	return slot.FromBool(this.Mirror.Class.IsInterface()), nil, nil
}

func classIsArray(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	return slot.FromBool(this.Mirror.Class.IsArray()), nil, nil
}

func classIsPrimitive(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	return slot.FromBool(this.Mirror.Class.IsPrimitive()), nil, nil
}

func classGetSuperclass(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	this := args[0].Ref.(*heap.Oop)
	super := this.Mirror.Class.Super
	if super == nil {
		return slot.Null(), nil, nil
	}
	mirror, err := ctx.WellKnown().MirrorFor(super)
	if err != nil {
		return slot.Slot{}, nil, err
	}
	return slot.Reference(mirror), nil, nil
}

func systemCurrentTimeMillis(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	return slot.Long(time.Now().UnixMilli()), nil, nil
}

func systemNanoTime(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	return slot.Long(time.Now().UnixNano()), nil, nil
}

func systemArraycopy(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	src, srcPos, dst, dstPos, length := args[0], args[1].I32, args[2], args[3].I32, args[4].I32
	if src.IsNull() || dst.IsNull() {
		oop, err := ctx.Exceptions().NewException(ctx, "java/lang/NullPointerException", "")
		return slot.Slot{}, oop, err
	}
	srcArr := src.Ref.(*heap.Oop)
	dstArr := dst.Ref.(*heap.Oop)
	if srcPos < 0 || dstPos < 0 || length < 0 ||
		int(srcPos+length) > srcArr.Length() || int(dstPos+length) > dstArr.Length() {
		oop, err := ctx.Exceptions().NewException(ctx, "java/lang/ArrayIndexOutOfBoundsException", "")
		return slot.Slot{}, oop, err
	}
	copy(dstArr.Elements[dstPos:dstPos+length], srcArr.Elements[srcPos:srcPos+length])
	return slot.Slot{}, nil, nil
}

func runtimeAvailableProcessors(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	return slot.Int(1), nil, nil
}

func runtimeGC(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	if gc, ok := ctx.(interface{ RequestGC() }); ok {
		gc.RequestGC()
	}
	return slot.Slot{}, nil, nil
}

func shutdownHalt0(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	if h, ok := ctx.(interface{ Halt(int) }); ok {
		h.Halt(int(args[0].I32))
	}
	return slot.Slot{}, nil, nil
}

func throwableFillInStackTrace(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	// Finalization and full reflective stack walking are out of scope
	// here; `this` is returned unmodified so Throwable(String)
	// construction still completes normally.
	return args[0], nil, nil
}

func throwableStackTraceDepth(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	return slot.Int(0), nil, nil
}
