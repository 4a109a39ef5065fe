package methodhandle

import (
	"fmt"

	"github.com/daimatz/rexvm/pkg/classfile"
	"github.com/daimatz/rexvm/pkg/descriptor"
	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/interp"
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

// Linker implements interp.Bootstrapper. It recognizes exactly the two
// bootstrap methods every javac >= 9 class file can carry
// (LambdaMetafactory.metafactory for lambda expressions and method
// references, StringConcatFactory.makeConcatWithConstants for
// invokedynamic-based string concatenation); any other bootstrap method
// is reported as unsupported rather than attempting a generic
// MethodHandleNatives.linkCallSiteImpl walk, since nothing in
// original_source's minimum-viable-bootstrap set needs one.
type Linker struct {
	Loader rclass.ClassLoader
}

func (l *Linker) Bootstrap(ctx interp.Context, caller *interp.Frame, bootstrapIdx uint16, invokedName, invokedType string) (*interp.CallSite, error) {
	cls := caller.Class
	if int(bootstrapIdx) >= len(cls.BootstrapMethods) {
		return nil, fmt.Errorf("methodhandle: %s: bootstrap method index %d out of range", cls.Name, bootstrapIdx)
	}
	bsm := cls.BootstrapMethods[bootstrapIdx]

	mh, err := classfile.GetMethodHandle(cls.ConstantPool, bsm.MethodRef)
	if err != nil {
		return nil, err
	}
	// The bootstrap method itself is identified straight off the constant
	// pool entry it points at, without loading java/lang/invoke's own
	// classes: both recognized bootstraps are VM-native behavior here,
	// not bytecode this VM ever executes.
	ref, err := classfile.GetMethodref(cls.ConstantPool, mh.ReferenceIndex)
	if err != nil {
		return nil, err
	}

	siteType, err := descriptor.ParseMethod(invokedType)
	if err != nil {
		return nil, err
	}

	switch {
	case ref.ClassName == "java/lang/invoke/StringConcatFactory" && ref.Name == "makeConcatWithConstants":
		return l.bootstrapStringConcat(ctx, cls, bsm, invokedType, siteType)
	case ref.ClassName == "java/lang/invoke/LambdaMetafactory" && (ref.Name == "metafactory" || ref.Name == "altMetafactory"):
		return l.bootstrapLambda(ctx, cls, bsm, invokedName, siteType)
	default:
		return nil, fmt.Errorf("methodhandle: unsupported bootstrap method %s.%s%s", ref.ClassName, ref.Name, ref.Descriptor)
	}
}

// constantString reads a CONSTANT_String's backing UTF-8 text straight
// off the constant pool.
func constantString(pool []classfile.ConstantPoolEntry, idx uint16) (string, error) {
	entry, err := classfile.LoadableConstant(pool, idx)
	if err != nil {
		return "", err
	}
	cs, ok := entry.(*classfile.ConstantString)
	if !ok {
		return "", fmt.Errorf("methodhandle: constant pool index %d is not a String", idx)
	}
	return classfile.GetUtf8(pool, cs.StringIndex)
}

// callMethod runs a resolved Method (native or bytecoded) with receiver
// (the zero Slot for a static call) and args, mirroring pkg/interp's own
// invokeMethod but usable from outside the interpreter loop: a lambda
// proxy's native SAM body and a freshly-built implementation call both
// need to re-enter arbitrary target methods without an enclosing Frame to
// push results onto.
func callMethod(ctx interp.Context, m *rclass.Method, receiver slot.Slot, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	if m.IsNative() {
		callArgs := args
		if !m.IsStatic() {
			callArgs = append([]slot.Slot{receiver}, args...)
		}
		return ctx.Natives().Invoke(ctx, m, callArgs)
	}
	f := interp.NewFrame(m, nil)
	pos := 0
	if !m.IsStatic() {
		f.Locals[0] = receiver
		pos = 1
	}
	for _, a := range args {
		f.Locals[pos] = a
		pos += a.Width()
	}
	return interp.Run(ctx, f)
}
