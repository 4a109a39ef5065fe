// Package slot defines the tagged cell that backs every local
// variable table and operand stack in the interpreter (spec: "Slot").
package slot

// Type tags the kind of value a Slot currently holds.
type Type uint8

const (
	I32 Type = iota
	I64
	F32
	F64
	Ref
	// Pad tags the unused second slot of a wide (i64/f64) value. The
	// interpreter does not write it: a long/double local leaves the
	// following local index untouched, and the operand stack holds one
	// slot per value regardless of width.
	Pad
)

// Slot is a single typed cell. Exactly one of the numeric fields is
// meaningful, selected by Type; Ref is only valid when Type == Ref.
type Slot struct {
	Type Type
	I32  int32
	I64  int64
	F32  float32
	F64  float64
	Ref  interface{}
}

func Int(v int32) Slot    { return Slot{Type: I32, I32: v} }
func Long(v int64) Slot    { return Slot{Type: I64, I64: v} }
func Float(v float32) Slot { return Slot{Type: F32, F32: v} }
func Double(v float64) Slot { return Slot{Type: F64, F64: v} }
func Reference(v interface{}) Slot { return Slot{Type: Ref, Ref: v} }
func Null() Slot { return Slot{Type: Ref, Ref: nil} }
func PadSlot() Slot { return Slot{Type: Pad} }

// IsNull reports whether the slot holds a null reference.
func (s Slot) IsNull() bool {
	return s.Type == Ref && s.Ref == nil
}

// Width returns how many consecutive local-variable/operand-stack slots
// this value occupies: 2 for long/double, 1 otherwise.
func (s Slot) Width() int {
	if s.Type == I64 || s.Type == F64 {
		return 2
	}
	return 1
}

// Bool renders a Slot holding a JVM boolean (stored as i32 0/1) as a Go bool.
func (s Slot) Bool() bool { return s.I32 != 0 }

func FromBool(b bool) Slot {
	if b {
		return Int(1)
	}
	return Int(0)
}
