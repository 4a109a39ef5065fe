package interp

import (
	"fmt"

	"github.com/daimatz/rexvm/pkg/classfile"
	"github.com/daimatz/rexvm/pkg/descriptor"
	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

// The five invoke-opcode variants (spec §4.4.1) differ only in how they
// resolve which Method actually runs; once resolved, invocation itself
// (popping args, building a frame or calling a native, propagating the
// result) is identical, so they all funnel into invokeMethod.

func invokeVirtual(ctx Context, f *Frame) error {
	pc := f.PC - 1
	idx := f.u2()
	sig, err := resolveMethodSignature(ctx, f, pc, idx, false)
	if err != nil {
		return err
	}
	args, receiver, err := popArgs(f, sig.Method, true)
	if err != nil {
		return err
	}
	if receiver.IsNull() {
		return throwBuiltin(ctx, f, "java/lang/NullPointerException", "")
	}
	recvObj := receiver.Ref.(*heap.Oop)
	target, err := recvObj.Class.ResolveVirtual(sig.Method.Name, sig.Method.Descriptor)
	if err != nil {
		return err
	}
	return invokeMethod(ctx, f, target, receiver, args)
}

func invokeSpecial(ctx Context, f *Frame) error {
	pc := f.PC - 1
	idx := f.u2()
	sig, err := resolveMethodSignature(ctx, f, pc, idx, false)
	if err != nil {
		return err
	}
	args, receiver, err := popArgs(f, sig.Method, true)
	if err != nil {
		return err
	}
	if receiver.IsNull() {
		return throwBuiltin(ctx, f, "java/lang/NullPointerException", "")
	}
	// invokespecial never dispatches virtually: constructors, private
	// methods and explicit superclass calls all run exactly the
	// statically resolved method (JVMS 6.5.invokespecial).
	return invokeMethod(ctx, f, sig.Method, receiver, args)
}

func invokeStatic(ctx Context, f *Frame) error {
	pc := f.PC - 1
	idx := f.u2()
	sig, err := resolveMethodSignature(ctx, f, pc, idx, false)
	if err != nil {
		return err
	}
	if err := EnsureInit(ctx, sig.Owner); err != nil {
		return err
	}
	args, _, err := popArgs(f, sig.Method, false)
	if err != nil {
		return err
	}
	return invokeMethod(ctx, f, sig.Method, slot.Slot{}, args)
}

func invokeInterface(ctx Context, f *Frame) error {
	pc := f.PC - 1
	idx := f.u2()
	f.u1() // count, historical/redundant — derivable from the descriptor
	f.u1() // must be zero
	sig, err := resolveMethodSignature(ctx, f, pc, idx, true)
	if err != nil {
		return err
	}
	args, receiver, err := popArgs(f, sig.Method, true)
	if err != nil {
		return err
	}
	if receiver.IsNull() {
		return throwBuiltin(ctx, f, "java/lang/NullPointerException", "")
	}
	recvObj := receiver.Ref.(*heap.Oop)
	target, err := recvObj.Class.ResolveVirtual(sig.Method.Name, sig.Method.Descriptor)
	if err != nil {
		return err
	}
	return invokeMethod(ctx, f, target, receiver, args)
}

func invokeDynamic(ctx Context, f *Frame) error {
	pc := f.PC - 1
	idx := f.u2()
	f.u2() // two reserved zero bytes
	if cached, ok := f.cache.get(pc); ok {
		cs := cached.(*CallSite)
		return invokeCallSite(ctx, f, cs)
	}
	bootstrapIdx, name, descriptor, err := classfile.GetInvokeDynamic(f.Class.ConstantPool, idx)
	if err != nil {
		return err
	}
	cs, err := ctx.Bootstrapper().Bootstrap(ctx, f, bootstrapIdx, name, descriptor)
	if err != nil {
		return err
	}
	f.cache.put(pc, cs)
	return invokeCallSite(ctx, f, cs)
}

func invokeCallSite(ctx Context, f *Frame, cs *CallSite) error {
	args, _, err := popArgs(f, cs.Method, false)
	if err != nil {
		return err
	}
	full := append(append([]slot.Slot{}, cs.Captured...), args...)
	return invokeMethod(ctx, f, cs.Method, slot.Slot{}, full)
}

type methodSig struct {
	Method *rclass.Method
	Owner  *rclass.Class
}

// resolveMethodSignature resolves and caches the method named by a
// Methodref/InterfaceMethodref constant-pool entry — for invokevirtual/
// invokeinterface this gives the statically declared signature only;
// the caller still dispatches virtually against the receiver's actual class.
func resolveMethodSignature(ctx Context, f *Frame, pc int, idx uint16, iface bool) (methodSig, error) {
	if cached, ok := f.cache.get(pc); ok {
		return cached.(methodSig), nil
	}
	var ref classfile.RefInfo
	var err error
	if iface {
		ref, err = classfile.GetInterfaceMethodref(f.Class.ConstantPool, idx)
	} else {
		ref, err = classfile.GetMethodref(f.Class.ConstantPool, idx)
	}
	if err != nil {
		return methodSig{}, err
	}
	owner, err := ctx.Loader().LoadClass(ref.ClassName)
	if err != nil {
		return methodSig{}, err
	}
	method, err := owner.ResolveMethod(ref.Name, ref.Descriptor)
	if err != nil {
		return methodSig{}, err
	}
	sig := methodSig{Method: method, Owner: owner}
	f.cache.put(pc, sig)
	return sig, nil
}

// popArgs pops a method's arguments (and, if withReceiver, the receiver
// beneath them) off f's operand stack, left-to-right in the order the
// descriptor declares them.
func popArgs(f *Frame, m *rclass.Method, withReceiver bool) ([]slot.Slot, slot.Slot, error) {
	n := len(m.Params)
	raw := make([]slot.Slot, n)
	for i := n - 1; i >= 0; i-- {
		raw[i] = f.Pop()
	}
	if withReceiver {
		return raw, f.Pop(), nil
	}
	return raw, slot.Slot{}, nil
}

// invokeMethod runs method (native or bytecoded) with receiver (the zero
// Slot for static calls) and args, leaving its result — if any — pushed
// onto the caller frame f, or marking f.markedThrow on an exception.
func invokeMethod(ctx Context, f *Frame, method *rclass.Method, receiver slot.Slot, args []slot.Slot) error {
	if method.IsAbstract() {
		return fmt.Errorf("interp: %s.%s%s is abstract (AbstractMethodError)", method.DeclaringClass.Name, method.Name, method.Descriptor)
	}

	if f.Level > 2000 {
		return throwBuiltin(ctx, f, "java/lang/StackOverflowError", "")
	}

	var result slot.Slot
	var thrown *heap.Oop
	var err error

	if method.IsNative() {
		callArgs := args
		if !method.IsStatic() {
			callArgs = append([]slot.Slot{receiver}, args...)
		}
		result, thrown, err = ctx.Natives().Invoke(ctx, method, callArgs)
	} else {
		callee := NewFrame(method, f)
		pos := 0
		if !method.IsStatic() {
			callee.Locals[0] = receiver
			pos = 1
		}
		for _, a := range args {
			callee.Locals[pos] = a
			pos += a.Width()
		}
		result, thrown, err = Run(ctx, callee)
	}

	if err != nil {
		return err
	}
	if thrown != nil {
		f.markedThrow = &ThrownException{Oop: thrown}
		return nil
	}
	if method.Return.Kind != descriptor.Void {
		f.Push(result)
	}
	return nil
}
