package classpath

import (
	"fmt"

	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/interp"
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

// ExceptionFactory builds the interpreter's own implicit exceptions
// (NullPointerException, ArithmeticException, ...), implementing
// interp.ExceptionFactory. It lives next to the class loader, as
// pkg/interp's own doc comment requires, because building one exception
// instance means loading its class and knowing Throwable's
// WellKnownSlots.ThrowableDetailMessage slot — both classloader/rclass
// concerns, not interpreter ones.
type ExceptionFactory struct {
	Loader *Loader
	Alloc  *heap.ThreadAllocator
}

// NewException implements interp.ExceptionFactory. It runs the target
// class's (String) constructor exactly as a user `throw new Foo(msg)`
// would (spec §7: "all recoverable errors materialize as Java exception
// oops"), rather than poking the detail-message field directly, so a
// subclass that overrides the constructor still gets consistent
// behavior. message == "" constructs via the no-arg constructor instead.
func (ef *ExceptionFactory) NewException(ctx interp.Context, className, message string) (*heap.Oop, error) {
	class, err := ef.Loader.LoadClass(className)
	if err != nil {
		return nil, fmt.Errorf("classpath: building exception %s: %w", className, err)
	}

	oop := ef.Alloc.NewInstance(class)

	if message == "" {
		ctor, err := class.ResolveMethod("<init>", "()V")
		if err == nil && !ctor.IsAbstract() {
			if _, thrown, err := runInit(ctx, ctor, oop, nil); err != nil {
				return nil, err
			} else if thrown != nil {
				return thrown, nil
			}
			return oop, nil
		}
		// No no-arg constructor reachable (unusual for a Throwable) —
		// no constructor runs and the instance is returned with its
		// fields at their defaults, so the VM's own implicit throws
		// never hard-fail.
		return oop, nil
	}

	msgOop, err := ef.Alloc.NewJavaString(message, ef.Loader.StringClass(), ef.Loader.CharArrayClass())
	if err != nil {
		return nil, err
	}
	ctor, err := class.ResolveMethod("<init>", "(Ljava/lang/String;)V")
	if err != nil {
		if class.Well != nil {
			oop.SetField(class.Well.ThrowableDetailMessage, slot.Reference(msgOop))
		}
		return oop, nil
	}
	if _, thrown, err := runInit(ctx, ctor, oop, []slot.Slot{slot.Reference(msgOop)}); err != nil {
		return nil, err
	} else if thrown != nil {
		return thrown, nil
	}
	return oop, nil
}

// runInit invokes a resolved constructor against a freshly allocated
// instance, wiring `this` and args into a new Frame exactly as
// interp.invokeMethod would for invokespecial — duplicated in miniature
// here (rather than exported from pkg/interp) because exception
// construction happens before any caller Frame exists to invoke from.
func runInit(ctx interp.Context, ctor *rclass.Method, this *heap.Oop, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	f := interp.NewFrame(ctor, nil)
	f.Locals[0] = slot.Reference(this)
	pos := 1
	for _, a := range args {
		f.Locals[pos] = a
		pos += a.Width()
	}
	return interp.Run(ctx, f)
}
