// Package heap is the object model and garbage collector: tagged Oop
// headers for instances, arrays and Class mirrors, a string intern pool,
// and a stop-the-world mark-and-sweep collector. Grounded on
// daimatz-gojvm/pkg/vm/object.go's JObject (a single struct with a
// ClassName string and map[string]Value fields, no array or mirror
// variant and no GC at all) and on jacobin's object/javaByteArray.go for
// the array-oop shape; the class-initialization-safe design and the GC
// itself have no teacher equivalent and are grounded directly on
// original_source/oop.hpp and original_source/mark_sweep.cpp semantics,
// built in the teacher's plain-struct, explicit-constructor idiom.
package heap

import (
	"fmt"
	"sync"

	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

// Kind tags the shape of an Oop's payload (spec §3: tagged Oop header,
// replacing the composite_ptr.hpp pointer-tagging trick with a Go enum,
// per SPEC_FULL.md §9 design note on dynamic_cast/virtual dispatch).
type Kind uint8

const (
	KindInstance Kind = iota
	KindObjectArray
	KindTypeArray
	KindMirror
)

// Oop is the header every heap-allocated Java object shares, regardless
// of kind. Monitor and mark are lazily/GC-owned; everything else is set
// at allocation time and immutable in shape (a Fields slice is never
// resized after allocation — only its slots mutate).
type Oop struct {
	Kind  Kind
	Class *rclass.Class

	// KindInstance payload: one slot per declared-and-inherited instance
	// field, indexed by Field.SlotIndex.
	Fields []slot.Slot

	// KindObjectArray/KindTypeArray payload.
	Elements []slot.Slot

	// KindMirror payload: what this java.lang.Class instance mirrors.
	Mirror *MirrorTarget

	monMu   sync.Mutex
	monitor *Monitor

	// GC bookkeeping. mark is the mark-and-sweep collector's "reached
	// from a root" bit; next chains every live allocation into the
	// heap's sweep list (see alloc.go) so a full sweep never needs a
	// separate index structure.
	mark bool
	next *Oop
}

// NewInstance allocates (but does not initialize; caller sets Fields to
// default values, which rclass already computed as part of the class's
// layout) a plain object of class.
func NewInstance(class *rclass.Class) *Oop {
	return &Oop{
		Kind:   KindInstance,
		Class:  class,
		Fields: make([]slot.Slot, class.InstanceSlotCount),
	}
}

// NewObjectArray allocates a reference-typed array of the given length,
// all elements initialized to null.
func NewObjectArray(arrayClass *rclass.Class, length int) (*Oop, error) {
	if length < 0 {
		return nil, fmt.Errorf("heap: negative array length %d", length)
	}
	elems := make([]slot.Slot, length)
	for i := range elems {
		elems[i] = slot.Null()
	}
	return &Oop{Kind: KindObjectArray, Class: arrayClass, Elements: elems}, nil
}

// NewTypeArray allocates a primitive array of the given length, all
// elements initialized to the primitive's default zero value.
func NewTypeArray(arrayClass *rclass.Class, length int) (*Oop, error) {
	if length < 0 {
		return nil, fmt.Errorf("heap: negative array length %d", length)
	}
	zero := defaultElement(arrayClass.ElemPrimitive)
	elems := make([]slot.Slot, length)
	for i := range elems {
		elems[i] = zero
	}
	return &Oop{Kind: KindTypeArray, Class: arrayClass, Elements: elems}, nil
}

func defaultElement(prim string) slot.Slot {
	switch prim {
	case rclass.PrimLong:
		return slot.Long(0)
	case rclass.PrimFloat:
		return slot.Float(0)
	case rclass.PrimDouble:
		return slot.Double(0)
	default:
		return slot.Int(0) // boolean/byte/char/short/int all store as i32
	}
}

// NewMirror allocates a java.lang.Class instance mirroring target.
func NewMirror(classClass *rclass.Class, target *MirrorTarget) *Oop {
	return &Oop{Kind: KindMirror, Class: classClass, Mirror: target, Fields: make([]slot.Slot, classClass.InstanceSlotCount)}
}

func (o *Oop) IsArray() bool { return o.Kind == KindObjectArray || o.Kind == KindTypeArray }

// Length returns an array oop's length; panics on a non-array, matching
// the interpreter's own contract that arraylength is only ever executed
// against a verified array reference.
func (o *Oop) Length() int {
	if !o.IsArray() {
		panic("heap: Length called on non-array oop")
	}
	return len(o.Elements)
}

// GetField/SetField read and write instance fields by resolved slot index.
func (o *Oop) GetField(idx int) slot.Slot  { return o.Fields[idx] }
func (o *Oop) SetField(idx int, v slot.Slot) { o.Fields[idx] = v }

// GetElement/SetElement read and write array elements with bounds checking.
func (o *Oop) GetElement(idx int) (slot.Slot, error) {
	if idx < 0 || idx >= len(o.Elements) {
		return slot.Slot{}, fmt.Errorf("heap: array index %d out of bounds for length %d", idx, len(o.Elements))
	}
	return o.Elements[idx], nil
}

func (o *Oop) SetElement(idx int, v slot.Slot) error {
	if idx < 0 || idx >= len(o.Elements) {
		return fmt.Errorf("heap: array index %d out of bounds for length %d", idx, len(o.Elements))
	}
	o.Elements[idx] = v
	return nil
}

// MonitorFor lazily allocates (on first synchronized use) and returns this
// object's intrinsic lock. Lazy allocation matches HotSpot's own
// inflate-on-contention strategy in spirit, and avoids giving every one
// of the millions of short-lived objects a monitor it will never use.
func (o *Oop) MonitorFor() *Monitor {
	o.monMu.Lock()
	defer o.monMu.Unlock()
	if o.monitor == nil {
		o.monitor = newMonitor()
	}
	return o.monitor
}
