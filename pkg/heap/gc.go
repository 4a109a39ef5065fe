package heap

import (
	"sync/atomic"

	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

// RootProvider is implemented by pkg/vmthread.VMThread: it exposes every
// slot a running thread can reach a reference through (its interpreter
// frames' locals and operand stacks). Declared here, not in vmthread, so
// the dependency runs heap -> (interface only) rather than heap ->
// vmthread, keeping the package layering acyclic (vmthread already
// depends on heap for object allocation).
type RootProvider interface {
	GCRoots() []slot.Slot
}

// ClassEnumerator is implemented by the class loader: static fields are
// GC roots too (JLS 12.6.1), and the collector has no other way to reach
// every loaded class's Statics slice. Mirrors reports every java.lang.Class
// instance created so far (spec §4.6 root collection: "for each loaded
// class — emit the mirror"); without this, a Class mirror held by no other
// live reference would be swept even though spec §3 says mirrors live as
// long as their underlying class does.
type ClassEnumerator interface {
	AllClasses() []*rclass.Class
	Mirrors() []*Oop
}

// Collect runs a full stop-the-world mark-and-sweep pass (spec §4.6:
// "mark-and-sweep GC"). Grounded on original_source/mark_sweep.cpp's
// three phases (flush thread-local allocation buffers, mark from roots,
// sweep the allocation list), rebuilt without RexVM's char[] GC carve-out
// (see intern.go) since a Go implementation has no reason to special-case
// one array element type.
//
// threads must include every live VMThread so its buffered allocations
// are flushed and its frames scanned; callers are responsible for having
// already brought every mutator to a safepoint before calling Collect
// (pkg/vmthread owns that coordination).
func (h *Heap) Collect(threads []RootProvider, allocators []*ThreadAllocator, classes ClassEnumerator) {
	for _, a := range allocators {
		a.Flush()
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	for o := h.head; o != nil; o = o.next {
		o.mark = false
	}

	var gray []*Oop
	for _, t := range threads {
		for _, s := range t.GCRoots() {
			gray = pushRoot(gray, s)
		}
	}
	for _, c := range classes.AllClasses() {
		for _, s := range c.Statics {
			gray = pushRoot(gray, s)
		}
	}
	for _, m := range classes.Mirrors() {
		if m != nil && !m.mark {
			gray = append(gray, m)
		}
	}

	for len(gray) > 0 {
		o := gray[len(gray)-1]
		gray = gray[:len(gray)-1]
		if o == nil || o.mark {
			continue
		}
		o.mark = true
		for _, s := range o.Fields {
			gray = pushRoot(gray, s)
		}
		for _, s := range o.Elements {
			gray = pushRoot(gray, s)
		}
	}

	h.Interner.Sweep()

	var newHead *Oop
	var live int64
	for o := h.head; o != nil; {
		next := o.next
		if o.mark {
			o.next = newHead
			newHead = o
			live++
		}
		o = next
	}
	h.head = newHead
	atomic.StoreInt64(&h.live, live)
}

func pushRoot(gray []*Oop, s slot.Slot) []*Oop {
	if s.Type != slot.Ref || s.Ref == nil {
		return gray
	}
	if o, ok := s.Ref.(*Oop); ok {
		return append(gray, o)
	}
	return gray
}
