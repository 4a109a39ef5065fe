package natives

import (
	"testing"

	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/interp"
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

func TestRegisterAndInvokeDispatchesByKey(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register("java/lang/Example", "doThing", "(I)I", func(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
		called = true
		return slot.Int(args[0].I32 + 1), nil, nil
	})

	class := rclass.NewClass(rclass.KindInstance, "java/lang/Example")
	method := &rclass.Method{DeclaringClass: class, Name: "doThing", Descriptor: "(I)I"}

	out, exc, err := r.Invoke(nil, method, []slot.Slot{slot.Int(41)})
	if err != nil || exc != nil {
		t.Fatalf("Invoke returned err=%v exc=%v, want none", err, exc)
	}
	if !called {
		t.Fatalf("registered native was not invoked")
	}
	if out.I32 != 42 {
		t.Fatalf("Invoke result = %d, want 42", out.I32)
	}
}

func TestInvokeCachesHandlerOnMethod(t *testing.T) {
	r := NewRegistry()
	r.Register("java/lang/Example", "doThing", "()V", func(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
		return slot.Slot{}, nil, nil
	})
	class := rclass.NewClass(rclass.KindInstance, "java/lang/Example")
	method := &rclass.Method{DeclaringClass: class, Name: "doThing", Descriptor: "()V"}

	if method.NativeHandler != nil {
		t.Fatalf("NativeHandler set before first Invoke")
	}
	if _, _, err := r.Invoke(nil, method, nil); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if _, ok := method.NativeHandler.(Fn); !ok {
		t.Fatalf("NativeHandler not cached as Fn after first Invoke")
	}
}

func TestLenReflectsRegistrations(t *testing.T) {
	r := NewRegistry()
	if r.Len() != 0 {
		t.Fatalf("Len() on empty registry = %d, want 0", r.Len())
	}
	r.Register("java/lang/A", "m", "()V", func(interp.Context, []slot.Slot) (slot.Slot, *heap.Oop, error) {
		return slot.Slot{}, nil, nil
	})
	r.Register("java/lang/B", "m", "()V", func(interp.Context, []slot.Slot) (slot.Slot, *heap.Oop, error) {
		return slot.Slot{}, nil, nil
	})
	if r.Len() != 2 {
		t.Fatalf("Len() after 2 registrations = %d, want 2", r.Len())
	}
}
