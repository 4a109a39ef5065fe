package rclass

import "github.com/daimatz/rexvm/pkg/descriptor"

// Field is a resolved, typed field member, analogous to daimatz-gojvm's
// FieldInfo but carrying a parsed descriptor.Type and a resolved slot
// index instead of a bare string descriptor the VM re-parses on every
// access.
type Field struct {
	DeclaringClass *Class
	Name           string
	Descriptor     string
	Type           descriptor.Type
	AccessFlags    uint16

	// SlotIndex is this field's index into its owning storage: the
	// class's Statics slice for a static field, or the flattened
	// instance-slot array (shared across the whole hierarchy) for an
	// instance field.
	SlotIndex int

	ConstantValue interface{} // from a ConstantValue attribute, compile-time constants only
}

func (f *Field) IsStatic() bool    { return f.AccessFlags&accStatic != 0 }
func (f *Field) IsFinal() bool     { return f.AccessFlags&accFinal != 0 }
func (f *Field) IsVolatile() bool  { return f.AccessFlags&accVolatile != 0 }

// Method is a resolved, typed method member.
type Method struct {
	DeclaringClass *Class
	Name           string
	Descriptor     string
	Params         []descriptor.Type
	Return         descriptor.Type
	AccessFlags    uint16

	MaxStack  uint16
	MaxLocals uint16
	Code      []byte
	ExceptionHandlers []ExceptionHandler
	LineNumbers []LineNumberEntry

	// ArgSlots is the number of local-variable slots occupied by the
	// method's parameters (longs/doubles count double), not including
	// an implicit `this` for instance methods — callers add 1 slot for
	// `this` themselves, matching how the interpreter lays out a new
	// frame's locals.
	ArgSlots int

	// CheckedExceptions lists declared checked exception class names
	// (informational only; the interpreter does not enforce them —
	// exception legality is a compile-time check, not a runtime one).
	CheckedExceptions []string

	// NativeHandler caches the host function an ACC_NATIVE method
	// dispatches to, set once by pkg/natives on first invocation.
	// Declared as interface{} rather than a concrete func type so rclass
	// never imports pkg/natives.
	NativeHandler interface{}
}

// ExceptionHandler mirrors classfile.ExceptionHandler, copied in rather
// than referenced so pkg/interp doesn't need to import pkg/classfile just
// to walk a resolved method's handler table.
type ExceptionHandler struct {
	StartPC, EndPC, HandlerPC uint16
	CatchType                 *Class // nil means catch-all
}

// LineNumberEntry mirrors classfile.LineNumberEntry for the same reason.
type LineNumberEntry struct {
	StartPC    uint16
	LineNumber uint16
}

func (m *Method) IsStatic() bool   { return m.AccessFlags&accStatic != 0 }
func (m *Method) IsNative() bool   { return m.AccessFlags&accNative != 0 }
func (m *Method) IsAbstract() bool { return m.AccessFlags&accAbstract != 0 }
func (m *Method) IsPrivate() bool  { return m.AccessFlags&accPrivate != 0 }
func (m *Method) IsFinal() bool    { return m.AccessFlags&accFinal != 0 }

// Access flag bits duplicated from pkg/classfile to avoid a second import
// just for bit masks; kept identical to the JVMS values.
const (
	accPublic    = 0x0001
	accPrivate   = 0x0002
	accStatic    = 0x0008
	accFinal     = 0x0010
	accVolatile  = 0x0040
	accNative    = 0x0100
	accAbstract  = 0x0400
)

// NewSyntheticNativeMethod builds a Method with no class-file backing at
// all: an ACC_NATIVE (+ ACC_STATIC, unless instance is true) member whose
// body is supplied entirely by NativeHandler. Used by pkg/methodhandle to
// give an invokedynamic call site's resolved target a Method to hang off
// of, since a CallSite only knows how to invoke a *Method, not an
// arbitrary Go closure.
func NewSyntheticNativeMethod(owner *Class, name, desc string, instance bool, handler interface{}) (*Method, error) {
	md, err := descriptor.ParseMethod(desc)
	if err != nil {
		return nil, err
	}
	flags := uint16(accPublic | accNative)
	if !instance {
		flags |= accStatic
	}
	argSlots := 0
	for _, p := range md.Params {
		argSlots += p.Slots()
	}
	return &Method{
		DeclaringClass: owner,
		Name:           name,
		Descriptor:     desc,
		Params:         md.Params,
		Return:         md.Return,
		AccessFlags:    flags,
		ArgSlots:       argSlots,
		NativeHandler:  handler,
	}, nil
}
