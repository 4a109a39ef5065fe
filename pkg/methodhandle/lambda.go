package methodhandle

import (
	"fmt"
	"sync"

	"github.com/daimatz/rexvm/pkg/classfile"
	"github.com/daimatz/rexvm/pkg/descriptor"
	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/interp"
	"github.com/daimatz/rexvm/pkg/natives"
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

// lambdaState is the per-instance payload a lambda proxy's single
// abstract method consults on each call: which handle to forward to, and
// which free variables were captured when the indy call site ran.
// Carried alongside the oop instead of as extra hidden fields on the
// synthetic proxy class, since rclass.Class has no facility for adding
// fields outside the normal class-file-driven slot layout.
type lambdaState struct {
	handle   *Handle
	captured []slot.Slot
}

var lambdaStates sync.Map // *heap.Oop -> *lambdaState

type proxyKey struct {
	iface   *rclass.Class
	samName string
}

var proxyClasses sync.Map // proxyKey -> *rclass.Class

// bootstrapLambda implements LambdaMetafactory.metafactory/altMetafactory:
// BootstrapArguments are [interfaceMethodType, implementation,
// dynamicMethodType, ...extra altMetafactory flags, ignored here]. Only
// the implementation handle (index 1) is needed to build the proxy;
// interfaceMethodType/dynamicMethodType are the erased and instantiated
// generic signatures, which this VM's type-erased runtime has no separate
// use for beyond what invokedType and the interface's own abstract method
// descriptor already supply.
func (l *Linker) bootstrapLambda(ctx interp.Context, cls *rclass.Class, bsm classfile.BootstrapMethod, invokedName string, siteType descriptor.Method) (*interp.CallSite, error) {
	if len(bsm.BootstrapArguments) < 2 {
		return nil, fmt.Errorf("methodhandle: metafactory: expected at least 2 static arguments, got %d", len(bsm.BootstrapArguments))
	}
	implMH, err := classfile.GetMethodHandle(cls.ConstantPool, bsm.BootstrapArguments[1])
	if err != nil {
		return nil, err
	}
	implHandle, err := resolveHandleRef(l.Loader, cls.ConstantPool, implMH)
	if err != nil {
		return nil, err
	}

	if siteType.Return.Kind != descriptor.Object {
		return nil, fmt.Errorf("methodhandle: metafactory: call site must return a reference type, got %s", siteType.Return.String())
	}
	iface, err := l.Loader.LoadClass(siteType.Return.ClassName)
	if err != nil {
		return nil, err
	}
	sam, err := findAbstractMethod(iface, invokedName)
	if err != nil {
		return nil, err
	}
	proxyClass, err := l.proxyClassFor(iface, sam)
	if err != nil {
		return nil, err
	}

	factoryMethod, err := rclass.NewSyntheticNativeMethod(cls, "lambda$factory", siteType.String(), false, nil)
	if err != nil {
		return nil, err
	}
	factoryMethod.NativeHandler = natives.Fn(func(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
		oop := ctx.Allocator().NewInstance(proxyClass)
		lambdaStates.Store(oop, &lambdaState{handle: implHandle, captured: append([]slot.Slot{}, args...)})
		return slot.Reference(oop), nil, nil
	})

	return &interp.CallSite{Method: factoryMethod}, nil
}

func findAbstractMethod(c *rclass.Class, name string) (*rclass.Method, error) {
	for _, m := range c.Methods {
		if m.Name == name && m.IsAbstract() {
			return m, nil
		}
	}
	for _, iface := range c.Interfaces {
		if m, err := findAbstractMethod(iface, name); err == nil {
			return m, nil
		}
	}
	return nil, fmt.Errorf("methodhandle: %s: no abstract method named %s", c.Name, name)
}

// proxyClassFor lazily builds (and caches by interface+method name) the
// synthetic class a lambda/method-reference instance of iface's SAM
// belongs to. One proxy class serves every call site targeting the same
// interface method; the actual bound implementation and captured
// variables live in lambdaStates, keyed per instance, not per class.
func (l *Linker) proxyClassFor(iface *rclass.Class, sam *rclass.Method) (*rclass.Class, error) {
	key := proxyKey{iface: iface, samName: sam.Name}
	if v, ok := proxyClasses.Load(key); ok {
		return v.(*rclass.Class), nil
	}
	object, err := l.Loader.LoadClass("java/lang/Object")
	if err != nil {
		return nil, err
	}
	proxy := rclass.NewClass(rclass.KindInstance, "rexvm$Lambda$"+iface.Name+"$"+sam.Name)
	proxy.Super = object
	proxy.Interfaces = []*rclass.Class{iface}

	impl, err := rclass.NewSyntheticNativeMethod(proxy, sam.Name, sam.Descriptor, true, nil)
	if err != nil {
		return nil, err
	}
	impl.NativeHandler = natives.Fn(func(ctx interp.Context, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
		this := args[0].Ref.(*heap.Oop)
		v, ok := lambdaStates.Load(this)
		if !ok {
			return slot.Slot{}, nil, fmt.Errorf("methodhandle: lambda proxy invoked with no captured state")
		}
		st := v.(*lambdaState)
		combined := append(append([]slot.Slot{}, st.captured...), args[1:]...)
		return invokeHandle(ctx, st.handle, combined)
	})
	proxy.Methods = []*rclass.Method{impl}

	actual, _ := proxyClasses.LoadOrStore(key, proxy)
	return actual.(*rclass.Class), nil
}

// invokeHandle dispatches a resolved Handle the way its reference-kind
// demands: a static handle takes args as-is, a constructor handle
// (REF_newInvokeSpecial) allocates the instance and returns it rather
// than the <init> call's void result, and the three instance-method kinds
// take args[0] as the receiver — virtual/interface kinds still dispatch
// dynamically off the receiver's actual class, since a method reference
// like `Object::toString` must honor overrides exactly like invokevirtual does.
func invokeHandle(ctx interp.Context, h *Handle, args []slot.Slot) (slot.Slot, *heap.Oop, error) {
	switch h.Kind {
	case RefInvokeStatic:
		return callMethod(ctx, h.Method, slot.Slot{}, args)
	case RefNewInvokeSpecial:
		oop := ctx.Allocator().NewInstance(h.Owner)
		_, thrown, err := callMethod(ctx, h.Method, slot.Reference(oop), args)
		if err != nil || thrown != nil {
			return slot.Slot{}, thrown, err
		}
		return slot.Reference(oop), nil, nil
	default: // RefInvokeVirtual, RefInvokeSpecial, RefInvokeInterface
		if len(args) == 0 {
			return slot.Slot{}, nil, fmt.Errorf("methodhandle: instance method handle invoked with no receiver")
		}
		receiver := args[0]
		target := h.Method
		if h.Kind == RefInvokeVirtual || h.Kind == RefInvokeInterface {
			if obj, ok := receiver.Ref.(*heap.Oop); ok && obj != nil {
				if m, err := obj.Class.ResolveVirtual(h.Method.Name, h.Method.Descriptor); err == nil {
					target = m
				}
			}
		}
		return callMethod(ctx, target, receiver, args[1:])
	}
}
