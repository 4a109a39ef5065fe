package interp

import (
	"fmt"

	"github.com/daimatz/rexvm/pkg/classfile"
	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

// resolveClassRef resolves a CONSTANT_Class entry at cp index idx within
// f's own constant pool to a linked runtime Class, caching the result at
// the instruction's own pc.
func resolveClassRef(ctx Context, f *Frame, idx uint16) (*rclass.Class, error) {
	pc := f.PC - 3 // opcode + 2-byte operand already consumed
	if cached, ok := f.cache.get(pc); ok {
		return cached.(resolvedClass).Class, nil
	}
	name, err := classfile.GetClassName(f.Class.ConstantPool, idx)
	if err != nil {
		return nil, err
	}
	c, err := ctx.Loader().LoadClass(name)
	if err != nil {
		return nil, err
	}
	f.cache.put(pc, resolvedClass{Class: c})
	return c, nil
}

// EnsureInit runs a class's <clinit> (if any) under JLS 5.5's
// initialization protocol, a no-op if already initialized. Exported so
// pkg/vmthread can trigger it for the main class before calling main(),
// exactly as opNew/getstatic/putstatic/invokestatic trigger it on their
// own resolved classes.
func EnsureInit(ctx Context, c *rclass.Class) error {
	return c.EnsureInitialized(ctx.ThreadID(), func(c *rclass.Class) error {
		if err := applyConstantValues(ctx, c); err != nil {
			return err
		}
		for _, m := range c.Methods {
			if m.Name == "<clinit>" && m.Descriptor == "()V" {
				clinitFrame := NewFrame(m, nil)
				_, thrown, err := Run(ctx, clinitFrame)
				if err != nil {
					return err
				}
				if thrown != nil {
					return fmt.Errorf("interp: %s.<clinit> threw %s", c.Name, thrown.Class.Name)
				}
			}
		}
		return nil
	})
}

// applyConstantValues pre-populates static final fields that carry a
// ConstantValue attribute (JVMS 5.5: these are set from the constant
// pool as part of preparation, before <clinit> runs, rather than by
// clinit bytecode — javac typically emits no clinit code for them at
// all). String-valued constants go through the same intern pool as ldc.
func applyConstantValues(ctx Context, c *rclass.Class) error {
	for _, f := range c.Fields {
		if !f.IsStatic() || !f.IsFinal() || f.ConstantValue == nil {
			continue
		}
		switch v := f.ConstantValue.(type) {
		case int32:
			c.Statics[f.SlotIndex] = slot.Int(v)
		case int64:
			c.Statics[f.SlotIndex] = slot.Long(v)
		case float32:
			c.Statics[f.SlotIndex] = slot.Float(v)
		case float64:
			c.Statics[f.SlotIndex] = slot.Double(v)
		case string:
			oop, err := internString(ctx, v)
			if err != nil {
				return err
			}
			c.Statics[f.SlotIndex] = slot.Reference(oop)
		}
	}
	return nil
}

func getstatic(ctx Context, f *Frame) error {
	rf, err := resolveFieldRef(ctx, f)
	if err != nil {
		return err
	}
	if err := EnsureInit(ctx, rf.Owner); err != nil {
		return err
	}
	f.Push(rf.Owner.Statics[rf.Field.SlotIndex])
	return nil
}

func putstatic(ctx Context, f *Frame) error {
	rf, err := resolveFieldRef(ctx, f)
	if err != nil {
		return err
	}
	if err := EnsureInit(ctx, rf.Owner); err != nil {
		return err
	}
	rf.Owner.Statics[rf.Field.SlotIndex] = f.Pop()
	return nil
}

func getfield(ctx Context, f *Frame) error {
	rf, err := resolveFieldRef(ctx, f)
	if err != nil {
		return err
	}
	ref := f.Pop()
	if ref.IsNull() {
		return throwBuiltin(ctx, f, "java/lang/NullPointerException", "")
	}
	obj := ref.Ref.(*heap.Oop)
	f.Push(obj.GetField(rf.Field.SlotIndex))
	return nil
}

func putfield(ctx Context, f *Frame) error {
	rf, err := resolveFieldRef(ctx, f)
	if err != nil {
		return err
	}
	v := f.Pop()
	ref := f.Pop()
	if ref.IsNull() {
		return throwBuiltin(ctx, f, "java/lang/NullPointerException", "")
	}
	obj := ref.Ref.(*heap.Oop)
	obj.SetField(rf.Field.SlotIndex, v)
	return nil
}

func resolveFieldRef(ctx Context, f *Frame) (resolvedField, error) {
	pc := f.PC - 1
	idx := f.u2()
	if cached, ok := f.cache.get(pc); ok {
		return cached.(resolvedField), nil
	}
	ref, err := classfile.GetFieldref(f.Class.ConstantPool, idx)
	if err != nil {
		return resolvedField{}, err
	}
	owner, err := ctx.Loader().LoadClass(ref.ClassName)
	if err != nil {
		return resolvedField{}, err
	}
	field, err := owner.ResolveField(ref.Name)
	if err != nil {
		return resolvedField{}, err
	}
	rf := resolvedField{Field: field, Owner: field.DeclaringClass}
	f.cache.put(pc, rf)
	return rf, nil
}

func loadConstant(ctx Context, f *Frame, idx uint16) error {
	entry, err := classfile.LoadableConstant(f.Class.ConstantPool, idx)
	if err != nil {
		return err
	}
	switch v := entry.(type) {
	case *classfile.ConstantInteger:
		f.PushInt(v.Value)
	case *classfile.ConstantFloat:
		f.PushFloat(v.Value)
	case *classfile.ConstantLong:
		f.PushLong(v.Value)
	case *classfile.ConstantDouble:
		f.PushDouble(v.Value)
	case *classfile.ConstantString:
		s, err := classfile.GetUtf8(f.Class.ConstantPool, v.StringIndex)
		if err != nil {
			return err
		}
		oop, err := internString(ctx, s)
		if err != nil {
			return err
		}
		f.PushRef(oop)
	case *classfile.ConstantClass:
		name, err := classfile.GetUtf8(f.Class.ConstantPool, v.NameIndex)
		if err != nil {
			return err
		}
		c, err := ctx.Loader().LoadClass(name)
		if err != nil {
			return err
		}
		mirror, err := classMirror(ctx, c)
		if err != nil {
			return err
		}
		f.PushRef(mirror)
	default:
		return fmt.Errorf("interp: ldc of unsupported constant pool tag %d", entry.Tag())
	}
	return nil
}

func internString(ctx Context, s string) (*heap.Oop, error) {
	return ctx.Heap().Interner.Intern(s, func(str string) (*heap.Oop, error) {
		return ctx.Allocator().NewJavaString(str, ctx.WellKnown().StringClass(), ctx.WellKnown().CharArrayClass())
	})
}

func classMirror(ctx Context, c *rclass.Class) (*heap.Oop, error) {
	return ctx.WellKnown().MirrorFor(c)
}

func opNew(ctx Context, f *Frame) error {
	c, err := resolveClassRef(ctx, f, f.u2())
	if err != nil {
		return err
	}
	if c.IsInterface() || c.IsAbstract() {
		return fmt.Errorf("interp: cannot instantiate %s (InstantiationError)", c.Name)
	}
	if err := EnsureInit(ctx, c); err != nil {
		return err
	}
	f.PushRef(ctx.Allocator().NewInstance(c))
	return nil
}

func opCheckcast(ctx Context, f *Frame) error {
	c, err := resolveClassRef(ctx, f, f.u2())
	if err != nil {
		return err
	}
	v := f.Peek()
	if v.IsNull() {
		return nil
	}
	obj := v.Ref.(*heap.Oop)
	if !c.IsAssignableFrom(obj.Class) {
		return throwBuiltin(ctx, f, "java/lang/ClassCastException",
			fmt.Sprintf("class %s cannot be cast to class %s", obj.Class.Name, c.Name))
	}
	return nil
}

func opInstanceof(ctx Context, f *Frame) error {
	c, err := resolveClassRef(ctx, f, f.u2())
	if err != nil {
		return err
	}
	v := f.Pop()
	if v.IsNull() {
		f.PushInt(0)
		return nil
	}
	obj := v.Ref.(*heap.Oop)
	f.Push(slot.FromBool(c.IsAssignableFrom(obj.Class)))
	return nil
}

func opAthrow(ctx Context, f *Frame) error {
	v := f.Pop()
	if v.IsNull() {
		return throwBuiltin(ctx, f, "java/lang/NullPointerException", "")
	}
	f.markedThrow = &ThrownException{Oop: v.Ref.(*heap.Oop)}
	return nil
}

func opMonitorenter(ctx Context, f *Frame) error {
	v := f.Pop()
	if v.IsNull() {
		return throwBuiltin(ctx, f, "java/lang/NullPointerException", "")
	}
	v.Ref.(*heap.Oop).MonitorFor().Enter(ctx.ThreadID())
	return nil
}

func opMonitorexit(ctx Context, f *Frame) error {
	v := f.Pop()
	if v.IsNull() {
		return throwBuiltin(ctx, f, "java/lang/NullPointerException", "")
	}
	if err := v.Ref.(*heap.Oop).MonitorFor().Exit(ctx.ThreadID()); err != nil {
		return throwBuiltin(ctx, f, "java/lang/IllegalMonitorStateException", err.Error())
	}
	return nil
}
