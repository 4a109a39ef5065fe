package interp

import (
	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

// Context is everything a running Frame needs from the rest of the VM,
// supplied by the owning thread. It is an interface, not a concrete
// vmthread.VMThread pointer, for the same reason pkg/vmthread depends on
// a Safepointer interface defined here rather than interp depending on
// vmthread directly: it keeps the package graph acyclic (vmthread already
// imports interp to drive a frame; interp must not import vmthread back).
type Context interface {
	// ThreadID identifies the calling thread for monitor ownership and
	// class-initialization re-entrancy checks; any comparable value works,
	// pkg/vmthread uses *VMThread itself.
	ThreadID() interface{}

	Allocator() *heap.ThreadAllocator
	Loader() rclass.ClassLoader
	Natives() NativeInvoker
	Bootstrapper() Bootstrapper
	Exceptions() ExceptionFactory
	Heap() *heap.Heap
	WellKnown() WellKnownClasses

	// Safepoint is polled on every backward branch (loop back-edge) and
	// method entry; it blocks if a stop-the-world GC or other global
	// pause has been requested.
	Safepoint()

	// PushFrame/PopFrame let the owning thread track its own current leaf
	// frame as Run recurses into invokeMethod's callees, without pkg/interp
	// needing to know anything about how the thread stores that pointer.
	// heap.RootProvider.GCRoots walks outward from whatever frame was most
	// recently pushed, via Frame.Roots's Caller chain.
	PushFrame(f *Frame)
	PopFrame()
}

// NativeInvoker dispatches a call to a method marked ACC_NATIVE. Declared
// here so pkg/natives can implement it without interp importing natives.
type NativeInvoker interface {
	Invoke(ctx Context, method *rclass.Method, args []slot.Slot) (slot.Slot, *heap.Oop, error)
}

// CallSite is the resolution of one invokedynamic call site: which
// method actually runs, plus any values captured at lambda-creation time
// that must be prepended to the statically-provided arguments (the
// captured free variables of a lambda body, per LambdaMetafactory
// semantics).
type CallSite struct {
	Method   *rclass.Method
	Captured []slot.Slot
}

// Bootstrapper runs a call site's bootstrap method (JVMS 5.4.3.6) the
// first time an invokedynamic instruction executes, producing a CallSite
// the interpreter then invokes directly on every subsequent execution
// (cached in the frame's resolvedCache exactly like any other resolved
// reference).
type Bootstrapper interface {
	Bootstrap(ctx Context, caller *Frame, bootstrapIdx uint16, invokedName, invokedType string) (*CallSite, error)
}

// ExceptionFactory builds and initializes a built-in exception/error
// instance (NullPointerException, ArrayIndexOutOfBoundsException,
// ArithmeticException, ClassCastException, NegativeArraySizeException,
// StackOverflowError, ...) for the interpreter's own implicit throw
// sites, running the exception class's constructor the same way a user
// `throw new Foo()` would. Implemented alongside the class loader, since
// building one requires loading the exception class and knowing
// Throwable's WellKnownSlots layout — both classloader/rclass concerns
// the interpreter proper has no business duplicating.
type ExceptionFactory interface {
	NewException(ctx Context, className, message string) (*heap.Oop, error)
}

// WellKnownClasses exposes the handful of bootstrap classes ldc/new/
// checkcast-adjacent opcodes need by identity rather than by name lookup
// on every execution: String (for string-literal materialization) and
// java.lang.Class (for CONSTANT_Class mirrors, caching one mirror per
// Class so `Foo.class == Foo.class` holds).
type WellKnownClasses interface {
	StringClass() *rclass.Class
	CharArrayClass() *rclass.Class
	MirrorFor(c *rclass.Class) (*heap.Oop, error)
}
