package rclass

import (
	"fmt"

	"github.com/daimatz/rexvm/pkg/classfile"
	"github.com/daimatz/rexvm/pkg/descriptor"
	"github.com/daimatz/rexvm/pkg/slot"
)

// Primitive type names, as they appear in a descriptor and as the Name of
// a KindPrimitive Class.
const (
	PrimBoolean = "Z"
	PrimByte    = "B"
	PrimChar    = "C"
	PrimShort   = "S"
	PrimInt     = "I"
	PrimLong    = "J"
	PrimFloat   = "F"
	PrimDouble  = "D"
	PrimVoid    = "V"
)

// NewPrimitiveClass builds the singleton runtime Class for a primitive
// type, one of the eight primitives plus void.
func NewPrimitiveClass(name string) *Class {
	return NewClass(KindPrimitive, name)
}

// NewObjectArrayClass builds the runtime Class for an array of elem (a
// reference type). Array classes have java/lang/Object as their
// superclass and implement Cloneable and java/io/Serializable, per JLS
// 10.8 — callers pass those two interface Classes in via cloneable/serializable.
func NewObjectArrayClass(elem *Class, object, cloneable, serializable *Class) *Class {
	c := NewClass(KindObjectArray, "["+elem.Descriptor())
	c.ElemClass = elem
	c.Super = object
	c.Interfaces = []*Class{cloneable, serializable}
	return c
}

// NewTypeArrayClass builds the runtime Class for an array of a primitive
// type, e.g. "[I" for int[].
func NewTypeArrayClass(elemPrimitive string, object, cloneable, serializable *Class) *Class {
	c := NewClass(KindTypeArray, "["+elemPrimitive)
	c.ElemPrimitive = elemPrimitive
	c.Super = object
	c.Interfaces = []*Class{cloneable, serializable}
	return c
}

// Link builds a runtime Class from a parsed class file plus its already-
// linked superclass and interfaces. It performs JVMS 5.4 linking's
// structural half: member resolution bookkeeping, descriptor parsing,
// and slot assignment. It does not run <clinit> — that's EnsureInitialized's job.
//
// Grounded on daimatz-gojvm's classloader.go, which folds "parse bytes"
// and "build runtime class" into one step; split here because the spec's
// Class model needs a linking pass that runs after the superclass is
// already resolved (the teacher never needs this since its VM re-reads
// field descriptors on every access instead of precomputing slot indices).
func Link(cf *classfile.ClassFile, super *Class, interfaces []*Class, loader ClassLoader) (*Class, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("rclass: link: %w", err)
	}

	c := NewClass(KindInstance, name)
	c.AccessFlags = cf.AccessFlags
	c.Super = super
	c.Interfaces = interfaces
	c.SourceFile = cf.SourceFile
	c.Signature = cf.Signature
	c.ConstantPool = cf.ConstantPool
	c.BootstrapMethods = cf.BootstrapMethods
	c.Loader = loader

	instanceBase := 0
	if super != nil {
		instanceBase = super.InstanceSlotCount
	}

	staticIdx := 0
	instanceIdx := instanceBase
	for i := range cf.Fields {
		fi := &cf.Fields[i]
		t, err := descriptor.ParseField(fi.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("rclass: %s.%s: %w", name, fi.Name, err)
		}
		f := &Field{
			DeclaringClass: c,
			Name:           fi.Name,
			Descriptor:     fi.Descriptor,
			Type:           t,
			AccessFlags:    fi.AccessFlags,
			ConstantValue:  fi.ConstantValue,
		}
		if f.IsStatic() {
			f.SlotIndex = staticIdx
			staticIdx += t.Slots()
		} else {
			f.SlotIndex = instanceIdx
			instanceIdx += t.Slots()
		}
		c.Fields = append(c.Fields, f)
	}
	c.InstanceSlotCount = instanceIdx
	c.Statics = make([]slot.Slot, staticIdx)
	for _, f := range c.Fields {
		if f.IsStatic() {
			c.Statics[f.SlotIndex] = defaultSlotFor(f.Type)
		}
	}

	for i := range cf.Methods {
		mi := &cf.Methods[i]
		md, err := descriptor.ParseMethod(mi.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("rclass: %s.%s%s: %w", name, mi.Name, mi.Descriptor, err)
		}
		m := &Method{
			DeclaringClass: c,
			Name:           mi.Name,
			Descriptor:     mi.Descriptor,
			Params:         md.Params,
			Return:         md.Return,
			AccessFlags:    mi.AccessFlags,
			CheckedExceptions: mi.Exceptions,
		}
		argSlots := 0
		for _, p := range md.Params {
			argSlots += p.Slots()
		}
		m.ArgSlots = argSlots
		if mi.Code != nil {
			m.MaxStack = mi.Code.MaxStack
			m.MaxLocals = mi.Code.MaxLocals
			m.Code = mi.Code.Code
			for _, lh := range mi.Code.LineNumbers {
				m.LineNumbers = append(m.LineNumbers, LineNumberEntry{StartPC: lh.StartPC, LineNumber: lh.LineNumber})
			}
			for _, h := range mi.Code.ExceptionHandlers {
				var catch *Class
				if h.CatchType != 0 {
					cn, err := classfile.GetClassName(cf.ConstantPool, h.CatchType)
					if err != nil {
						return nil, err
					}
					catch, err = loader.LoadClass(cn)
					if err != nil {
						return nil, fmt.Errorf("rclass: resolving exception handler catch type %s: %w", cn, err)
					}
				}
				m.ExceptionHandlers = append(m.ExceptionHandlers, ExceptionHandler{
					StartPC: h.StartPC, EndPC: h.EndPC, HandlerPC: h.HandlerPC, CatchType: catch,
				})
			}
		}
		c.Methods = append(c.Methods, m)
	}

	return c, nil
}

// defaultSlotFor returns a type's default zero value (JVMS 2.3/2.4,
// "Default Values"): 0/0L/0.0f/0.0d for numerics, null for references.
func defaultSlotFor(t descriptor.Type) slot.Slot {
	switch t.Kind {
	case descriptor.Long:
		return slot.Long(0)
	case descriptor.Float:
		return slot.Float(0)
	case descriptor.Double:
		return slot.Double(0)
	case descriptor.Object, descriptor.Array:
		return slot.Null()
	default:
		return slot.Int(0)
	}
}
