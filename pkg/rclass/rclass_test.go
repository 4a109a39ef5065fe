package rclass

import (
	"fmt"
	"sync"
	"testing"

	"github.com/daimatz/rexvm/pkg/classfile"
)

func TestEnsureInitializedRunsOnce(t *testing.T) {
	c := NewClass(KindInstance, "Test")
	runs := 0
	for i := 0; i < 3; i++ {
		err := c.EnsureInitialized("thread-1", func(*Class) error {
			runs++
			return nil
		})
		if err != nil {
			t.Fatalf("EnsureInitialized: unexpected error: %v", err)
		}
	}
	if runs != 1 {
		t.Errorf("init ran %d times, want 1", runs)
	}
	if c.State() != Initialized {
		t.Errorf("State(): got %v, want Initialized", c.State())
	}
}

func TestEnsureInitializedRecursiveSameThread(t *testing.T) {
	c := NewClass(KindInstance, "Test")
	var inner error
	err := c.EnsureInitialized("thread-1", func(self *Class) error {
		// Re-entrant <clinit> calling back into its own class's init,
		// e.g. a static initializer that allocates an instance of self.
		inner = self.EnsureInitialized("thread-1", func(*Class) error {
			t.Fatal("nested init should not run the initializer body again")
			return nil
		})
		return nil
	})
	if err != nil {
		t.Fatalf("outer EnsureInitialized: unexpected error: %v", err)
	}
	if inner != nil {
		t.Fatalf("inner EnsureInitialized: unexpected error: %v", inner)
	}
}

func TestEnsureInitializedFailurePropagates(t *testing.T) {
	c := NewClass(KindInstance, "Test")
	wantErr := fmt.Errorf("boom")
	err := c.EnsureInitialized("thread-1", func(*Class) error { return wantErr })
	if err == nil {
		t.Fatal("EnsureInitialized: got nil error, want non-nil")
	}
	if c.State() != Failed {
		t.Errorf("State(): got %v, want Failed", c.State())
	}
	// A second attempt reports the prior failure rather than re-running init.
	ran := false
	err2 := c.EnsureInitialized("thread-2", func(*Class) error { ran = true; return nil })
	if err2 == nil {
		t.Fatal("second EnsureInitialized: got nil error, want non-nil (prior failure)")
	}
	if ran {
		t.Error("second EnsureInitialized ran init after a prior Failed state")
	}
}

func TestEnsureInitializedSuperFirst(t *testing.T) {
	var order []string
	super := NewClass(KindInstance, "Super")
	sub := NewClass(KindInstance, "Sub")
	sub.Super = super

	init := func(c *Class) error {
		order = append(order, c.Name)
		return nil
	}
	if err := sub.EnsureInitialized("t", init); err != nil {
		t.Fatalf("EnsureInitialized: unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "Super" || order[1] != "Sub" {
		t.Errorf("init order: got %v, want [Super Sub]", order)
	}
}

func TestEnsureInitializedConcurrentBlocks(t *testing.T) {
	c := NewClass(KindInstance, "Test")
	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.EnsureInitialized("thread-1", func(*Class) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	done := make(chan struct{})
	go func() {
		c.EnsureInitialized("thread-2", func(*Class) error {
			t.Error("thread-2 ran init concurrently with thread-1")
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("thread-2's EnsureInitialized returned before thread-1 finished")
	default:
	}

	close(release)
	wg.Wait()
	<-done
}

func newTestClass(name string, super *Class) *Class {
	return &Class{Kind: KindInstance, Name: name, Super: super, state: Initialized}
}

func TestResolveMethodWalksSuperchain(t *testing.T) {
	base := NewClass(KindInstance, "Base")
	base.Methods = []*Method{{DeclaringClass: base, Name: "greet", Descriptor: "()V"}}
	derived := NewClass(KindInstance, "Derived")
	derived.Super = base

	m, err := derived.ResolveMethod("greet", "()V")
	if err != nil {
		t.Fatalf("ResolveMethod: unexpected error: %v", err)
	}
	if m.DeclaringClass != base {
		t.Errorf("ResolveMethod found method declared on %s, want Base", m.DeclaringClass.Name)
	}
}

func TestResolveMethodNotFound(t *testing.T) {
	c := NewClass(KindInstance, "Empty")
	if _, err := c.ResolveMethod("missing", "()V"); err == nil {
		t.Error("ResolveMethod: got nil error for missing method, want non-nil")
	}
}

func TestResolveMethodDefaultInterfaceMethod(t *testing.T) {
	iface := NewClass(KindInstance, "Iface")
	iface.AccessFlags = classfile.AccInterface
	iface.Methods = []*Method{{DeclaringClass: iface, Name: "run", Descriptor: "()V"}}

	impl := NewClass(KindInstance, "Impl")
	impl.Interfaces = []*Class{iface}

	m, err := impl.ResolveMethod("run", "()V")
	if err != nil {
		t.Fatalf("ResolveMethod: unexpected error: %v", err)
	}
	if m.DeclaringClass != iface {
		t.Errorf("ResolveMethod found %s, want Iface's default method", m.DeclaringClass.Name)
	}
}

func TestResolveField(t *testing.T) {
	base := NewClass(KindInstance, "Base")
	base.Fields = []*Field{{DeclaringClass: base, Name: "x", SlotIndex: 0}}
	derived := NewClass(KindInstance, "Derived")
	derived.Super = base

	f, err := derived.ResolveField("x")
	if err != nil {
		t.Fatalf("ResolveField: unexpected error: %v", err)
	}
	if f.DeclaringClass != base {
		t.Errorf("ResolveField found field on %s, want Base", f.DeclaringClass.Name)
	}

	if _, err := derived.ResolveField("missing"); err == nil {
		t.Error("ResolveField: got nil error for missing field, want non-nil")
	}
}

func TestIsAssignableFromObjectAndSuperchain(t *testing.T) {
	object := NewClass(KindInstance, "java/lang/Object")
	base := NewClass(KindInstance, "Base")
	base.Super = object
	derived := NewClass(KindInstance, "Derived")
	derived.Super = base

	if !object.IsAssignableFrom(derived) {
		t.Error("Object should be assignable from any reference type")
	}
	if !base.IsAssignableFrom(derived) {
		t.Error("Base should be assignable from Derived")
	}
	if derived.IsAssignableFrom(base) {
		t.Error("Derived should not be assignable from Base")
	}
}

func TestIsAssignableFromInterface(t *testing.T) {
	iface := NewClass(KindInstance, "Iface")
	iface.AccessFlags = classfile.AccInterface
	impl := NewClass(KindInstance, "Impl")
	impl.Interfaces = []*Class{iface}

	if !iface.IsAssignableFrom(impl) {
		t.Error("interface should be assignable from an implementing class")
	}
}

func TestIsAssignableFromArrayCovariance(t *testing.T) {
	object := NewClass(KindInstance, "java/lang/Object")
	base := NewClass(KindInstance, "Base")
	base.Super = object
	derived := NewClass(KindInstance, "Derived")
	derived.Super = base

	baseArr := NewObjectArrayClass(base, object, object, object)
	derivedArr := NewObjectArrayClass(derived, object, object, object)

	if !baseArr.IsAssignableFrom(derivedArr) {
		t.Error("Base[] should be assignable from Derived[] (array covariance)")
	}
	if derivedArr.IsAssignableFrom(baseArr) {
		t.Error("Derived[] should not be assignable from Base[]")
	}
}

func TestIsAssignableFromTypeArrayInvariance(t *testing.T) {
	object := NewClass(KindInstance, "java/lang/Object")
	intArr := NewTypeArrayClass(PrimInt, object, object, object)
	longArr := NewTypeArrayClass(PrimLong, object, object, object)

	if intArr.IsAssignableFrom(longArr) {
		t.Error("int[] should not be assignable from long[] (primitive arrays are invariant)")
	}
	if !intArr.IsAssignableFrom(intArr) {
		t.Error("int[] should be assignable from int[]")
	}
}

func TestDescriptorRendersEachKind(t *testing.T) {
	object := NewClass(KindInstance, "java/lang/Object")
	prim := NewPrimitiveClass(PrimInt)
	objArr := NewObjectArrayClass(object, object, object, object)
	typeArr := NewTypeArrayClass(PrimInt, object, object, object)

	tests := []struct {
		name string
		c    *Class
		want string
	}{
		{"instance", object, "Ljava/lang/Object;"},
		{"primitive", prim, "I"},
		{"object array", objArr, "[Ljava/lang/Object;"},
		{"type array", typeArr, "[I"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Descriptor(); got != tt.want {
				t.Errorf("Descriptor(): got %q, want %q", got, tt.want)
			}
		})
	}
}
