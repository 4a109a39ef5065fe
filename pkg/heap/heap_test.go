package heap

import (
	"sync"
	"testing"

	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

func intClass() *rclass.Class {
	c := rclass.NewClass(rclass.KindInstance, "java/lang/Object")
	c.InstanceSlotCount = 2
	return c
}

func TestNewInstanceZeroedFields(t *testing.T) {
	c := intClass()
	o := NewInstance(c)
	if o.Kind != KindInstance {
		t.Fatalf("Kind = %v, want KindInstance", o.Kind)
	}
	if len(o.Fields) != 2 {
		t.Fatalf("len(Fields) = %d, want 2", len(o.Fields))
	}
}

func TestArrayBoundsChecking(t *testing.T) {
	arr := rclass.NewClass(rclass.KindTypeArray, "[I")
	arr.ElemPrimitive = rclass.PrimInt
	o, err := NewTypeArray(arr, 3)
	if err != nil {
		t.Fatalf("NewTypeArray: %v", err)
	}
	if o.Length() != 3 {
		t.Fatalf("Length() = %d, want 3", o.Length())
	}
	if err := o.SetElement(1, slot.Int(42)); err != nil {
		t.Fatalf("SetElement(1): %v", err)
	}
	got, err := o.GetElement(1)
	if err != nil || got.I32 != 42 {
		t.Fatalf("GetElement(1) = %v, %v; want 42, nil", got, err)
	}
	if _, err := o.GetElement(3); err == nil {
		t.Fatalf("GetElement(3) on length-3 array: want out-of-bounds error, got nil")
	}
	if _, err := o.GetElement(-1); err == nil {
		t.Fatalf("GetElement(-1): want out-of-bounds error, got nil")
	}
	if _, err := NewTypeArray(arr, -1); err == nil {
		t.Fatalf("NewTypeArray(-1): want negative-length error, got nil")
	}
}

func TestLengthPanicsOnNonArray(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Length() on an instance oop: want panic, got none")
		}
	}()
	NewInstance(intClass()).Length()
}

// TestInternIdempotence exercises spec §8's intern law: intern(s) == intern(s)
// and intern(s).equals(s) for any string literal s.
func TestInternIdempotence(t *testing.T) {
	in := NewInterner()
	makes := 0
	makeString := func(s string) (*Oop, error) {
		makes++
		return &Oop{Kind: KindInstance}, nil
	}

	a, err := in.Intern("hello", makeString)
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	b, err := in.Intern("hello", makeString)
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if a != b {
		t.Fatalf("Intern(\"hello\") called twice returned different oops")
	}
	if makes != 1 {
		t.Fatalf("makeString called %d times, want 1 (second call must hit cache)", makes)
	}
	if in.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", in.Len())
	}
}

func TestInternConcurrentRaceKeepsOneWinner(t *testing.T) {
	in := NewInterner()
	var wg sync.WaitGroup
	results := make([]*Oop, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, _ := in.Intern("same", func(s string) (*Oop, error) {
				return &Oop{Kind: KindInstance}, nil
			})
			results[i] = o
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("concurrent Intern calls returned distinct oops at index %d", i)
		}
	}
}

func TestMonitorRecursiveEnterExit(t *testing.T) {
	m := newMonitor()
	tid := "thread-1"
	m.Enter(tid)
	m.Enter(tid) // re-entrant
	if !m.HeldBy(tid) {
		t.Fatalf("HeldBy(tid) = false after Enter, want true")
	}
	if err := m.Exit(tid); err != nil {
		t.Fatalf("Exit (1st): %v", err)
	}
	if !m.HeldBy(tid) {
		t.Fatalf("monitor released after only one of two Exit calls")
	}
	if err := m.Exit(tid); err != nil {
		t.Fatalf("Exit (2nd): %v", err)
	}
	if m.HeldBy(tid) {
		t.Fatalf("HeldBy(tid) = true after balanced Enter/Exit, want false")
	}
}

func TestMonitorExitByNonOwnerErrors(t *testing.T) {
	m := newMonitor()
	m.Enter("owner")
	if err := m.Exit("intruder"); err == nil {
		t.Fatalf("Exit by non-owner: want IllegalMonitorStateException-style error, got nil")
	}
}

// rootSet implements RootProvider/ClassEnumerator for the GC test below.
type rootSet struct {
	roots   []slot.Slot
	classes []*rclass.Class
	mirrors []*Oop
}

func (r rootSet) GCRoots() []slot.Slot       { return r.roots }
func (r rootSet) AllClasses() []*rclass.Class { return r.classes }
func (r rootSet) Mirrors() []*Oop             { return r.mirrors }

// TestCollectReclaimsUnreachable exercises spec §8 invariant 6: every oop
// reachable from a root survives; every unreachable oop is reclaimed.
func TestCollectReclaimsUnreachable(t *testing.T) {
	h := NewHeap()
	alloc := NewThreadAllocator(h)

	c := intClass()
	reachable := alloc.NewInstance(c)
	garbage := alloc.NewInstance(c)
	alloc.Flush()

	if h.LiveCount() != 2 {
		t.Fatalf("LiveCount() before GC = %d, want 2", h.LiveCount())
	}

	roots := rootSet{roots: []slot.Slot{slot.Reference(reachable)}}
	h.Collect([]RootProvider{roots}, nil, roots)

	if h.LiveCount() != 1 {
		t.Fatalf("LiveCount() after GC = %d, want 1", h.LiveCount())
	}
	found := false
	for o := h.head; o != nil; o = o.next {
		if o == reachable {
			found = true
		}
		if o == garbage {
			t.Fatalf("unreachable oop survived GC")
		}
	}
	if !found {
		t.Fatalf("reachable oop did not survive GC")
	}
}

// TestCollectKeepsMirrorsAsRoots exercises spec §4.6's "for each loaded
// class — emit the mirror" root-collection step: a Class mirror with no
// other live reference must still survive a GC cycle.
func TestCollectKeepsMirrorsAsRoots(t *testing.T) {
	h := NewHeap()
	alloc := NewThreadAllocator(h)

	classClass := intClass()
	target := intClass()
	mirror := alloc.NewMirror(classClass, &MirrorTarget{Kind: MirrorClass, Class: target})
	alloc.Flush()

	roots := rootSet{mirrors: []*Oop{mirror}}
	h.Collect([]RootProvider{roots}, nil, roots)

	for o := h.head; o != nil; o = o.next {
		if o == mirror {
			return
		}
	}
	t.Fatalf("mirror oop was collected despite being reported as a GC root")
}

func TestInternSweepDropsUnmarked(t *testing.T) {
	h := NewHeap()
	alloc := NewThreadAllocator(h)
	c := intClass()

	var kept *Oop
	makeString := func(s string) (*Oop, error) {
		o := alloc.NewInstance(c)
		kept = o
		return o, nil
	}
	if _, err := h.Interner.Intern("kept", makeString); err != nil {
		t.Fatalf("Intern: %v", err)
	}
	alloc.Flush()

	roots := rootSet{roots: []slot.Slot{slot.Reference(kept)}}
	h.Collect([]RootProvider{roots}, nil, roots)

	if h.Interner.Len() != 1 {
		t.Fatalf("reachable interned string was dropped by sweep")
	}

	// A second string whose oop nothing keeps alive should be pruned on
	// the next collection.
	_, _ = h.Interner.Intern("orphan", func(s string) (*Oop, error) {
		return alloc.NewInstance(c), nil
	})
	alloc.Flush()
	h.Collect([]RootProvider{roots}, nil, roots)
	if h.Interner.Len() != 1 {
		t.Fatalf("Interner.Len() = %d after sweeping unreachable entry, want 1", h.Interner.Len())
	}
}
