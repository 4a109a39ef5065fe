package heap

import "github.com/daimatz/rexvm/pkg/rclass"

// MirrorKind tags what a java.lang.Class instance stands for.
type MirrorKind uint8

const (
	MirrorClass MirrorKind = iota
	MirrorPrimitive
)

// MirrorTarget is the payload of a KindMirror Oop: the rclass.Class or
// primitive name it reflects. Grounded on SPEC_FULL.md §3.1, which
// replaces original_source/composite_ptr.hpp's tagged-pointer trick
// (packing either a Class* or a primitive tag into one word, relying on
// pointer alignment) with a plain tagged Go struct — the trick exists in
// the original only to save one word per mirror, which is not an
// idiomatic Go concern.
type MirrorTarget struct {
	Kind      MirrorKind
	Class     *rclass.Class // set when Kind == MirrorClass
	Primitive string        // set when Kind == MirrorPrimitive, e.g. "I"
}
